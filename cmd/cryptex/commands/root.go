package commands

import (
	"github.com/spf13/cobra"
)

var (
	relayAddr string
	username  string
	logLevel  string
)

// Execute runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:   "cryptex",
		Short: "End-to-end encrypted LAN chat client",
	}

	root.PersistentFlags().StringVar(&relayAddr, "relay", "127.0.0.1:5555", "relay address (host:port)")
	root.PersistentFlags().StringVarP(&username, "username", "u", "", "identity to register with the relay")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "NOTICE", "log level (DEBUG, INFO, NOTICE, WARNING, ERROR)")

	root.AddCommand(chatCmd(), versionCmd())
	return root.Execute()
}
