// Package app wires configuration, logging and the relay session together
// for the CLI.
package app
