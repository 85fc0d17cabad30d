package domain

import (
	"fmt"
	"regexp"
)

// Username represents a relay-registered identity.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// Broadcast is the reserved recipient meaning "every registered peer". The
// name is rejected at registration so it can never shadow a real identity.
const Broadcast Username = "ALL"

const (
	usernameMinLen = 3
	usernameMaxLen = 20
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Validate checks the username against the protocol rules: 3-20 characters,
// letters, digits and underscores only, and not the broadcast sentinel.
func (u Username) Validate() error {
	switch {
	case len(u) < usernameMinLen:
		return fmt.Errorf("username %q: shorter than %d characters", u, usernameMinLen)
	case len(u) > usernameMaxLen:
		return fmt.Errorf("username %q: longer than %d characters", u, usernameMaxLen)
	case !usernamePattern.MatchString(string(u)):
		return fmt.Errorf("username %q: only letters, digits and underscores allowed", u)
	case u == Broadcast:
		return fmt.Errorf("username %q: reserved for broadcast addressing", u)
	}
	return nil
}
