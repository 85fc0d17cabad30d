// Command relay runs the Cryptex relay daemon: it authenticates clients,
// distributes public keys and forwards encrypted payloads it cannot read.
package main
