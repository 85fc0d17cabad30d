// Package wire defines the relay protocol's envelope codec and the stream
// framer that reassembles envelopes from a TCP byte stream.
//
// The wire format is UTF-8 text: a type tag and its fields joined by the
// reserved separator "||", each envelope terminated by the reserved
// delimiter "\n###MSG###\n". Splitting is capped at the per-type field
// count so a trailing payload field may carry arbitrary ciphertext bytes.
package wire
