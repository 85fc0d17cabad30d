// Package commands contains the cobra command tree for the cryptex client.
package commands
