package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cryptex/internal/app"
	"cryptex/internal/domain"
)

// consoleEvents renders core events on stdout. It is called from the
// session's receive loop, which is fine for a line-oriented console.
type consoleEvents struct{}

func (consoleEvents) OnMessage(sender domain.Username, plaintext []byte) {
	fmt.Printf("\r%s: %s\n> ", sender, plaintext)
}

func (consoleEvents) OnDirectoryChanged(identities []domain.Username) {
	names := make([]string, len(identities))
	for i, id := range identities {
		names[i] = id.String()
	}
	fmt.Printf("\r[online: %s]\n> ", strings.Join(names, ", "))
}

func (consoleEvents) OnConnectionState(connected bool, reason string) {
	if connected {
		fmt.Printf("\r[%s]\n", reason)
	} else {
		fmt.Printf("\r[disconnected: %s]\n", reason)
	}
}

func (consoleEvents) OnError(msg string) {
	fmt.Printf("\r[error: %s]\n> ", msg)
}

// chat: connect, then read lines from stdin. Plain lines broadcast;
// "/msg <peer> <text>" sends a direct message; "/quit" exits.
func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Connect to the relay and chat interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("username required (-u)")
			}

			w, err := app.NewWire(app.Config{
				RelayAddr: relayAddr,
				Username:  username,
				LogLevel:  logLevel,
			}, consoleEvents{})
			if err != nil {
				return err
			}
			defer w.Close()

			fmt.Println("Connected. Plain lines broadcast; /msg <peer> <text> for direct; /quit to exit.")
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("> ")
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				switch {
				case line == "":
				case line == "/quit":
					return nil
				case strings.HasPrefix(line, "/msg "):
					rest := strings.TrimPrefix(line, "/msg ")
					peer, text, ok := strings.Cut(rest, " ")
					if !ok {
						fmt.Println("usage: /msg <peer> <text>")
						break
					}
					if err := w.Session.Send(domain.Username(peer), []byte(text)); err != nil {
						fmt.Printf("[send failed: %v]\n", err)
					}
				default:
					if err := w.Session.Send(domain.Broadcast, []byte(line)); err != nil {
						fmt.Printf("[send failed: %v]\n", err)
					}
				}
				fmt.Print("> ")
			}
			return scanner.Err()
		},
	}
}
