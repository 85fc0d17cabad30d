package app

// Config holds runtime wiring options for building the client.
type Config struct {
	RelayAddr string // relay address, e.g. 192.168.1.10:5555
	Username  string // identity to register, 3-20 word characters
	LogLevel  string // DEBUG..ERROR; empty means NOTICE
	LogFile   string // empty logs to stdout
}
