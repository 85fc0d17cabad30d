package wire

import (
	"strings"

	"cryptex/internal/domain"
)

// Protocol constants shared by relay and clients. Both tokens are reserved:
// no field may contain the separator except the final payload field, and no
// encoded envelope may contain the delimiter.
const (
	Separator = "||"
	Delimiter = "\n###MSG###\n"
)

// Auth replies are bare delimiter-terminated lines, not envelopes.
const (
	AuthOK        = "SUCCESS"
	AuthErrPrefix = "ERROR: "
)

// Type tags one envelope. The set is closed; unknown tags are rejected at
// decode time.
type Type string

const (
	TypeAuth        Type = "AUTH"
	TypeKeyExchange Type = "KEY_EXCHANGE"
	TypeMessage     Type = "MESSAGE"
	TypeBroadcast   Type = "BROADCAST"
	TypeUserList    Type = "USER_LIST"
	TypeDisconnect  Type = "DISCONNECT"
)

// maxFields is the per-type field count, used to cap splitting so the final
// field (a ciphertext payload or PEM block) may contain the separator
// verbatim. Broadcast is listed with its widest shape (sender + payload on
// the server-to-client leg); the one-field client-to-server leg still
// decodes under the same cap.
var maxFields = map[Type]int{
	TypeAuth:        2,
	TypeKeyExchange: 2,
	TypeMessage:     2,
	TypeBroadcast:   2,
	TypeUserList:    1,
	TypeDisconnect:  0,
}

// Envelope is one discrete protocol unit: a type tag and its ordered fields.
// Envelopes are immutable once constructed.
type Envelope struct {
	Type   Type
	Fields []string
}

// New constructs an envelope.
func New(t Type, fields ...string) Envelope {
	return Envelope{Type: t, Fields: fields}
}

// Encode renders the envelope for the wire, delimiter included.
func (e Envelope) Encode() []byte {
	parts := make([]string, 0, len(e.Fields)+1)
	parts = append(parts, string(e.Type))
	parts = append(parts, e.Fields...)
	return []byte(strings.Join(parts, Separator) + Delimiter)
}

// Decode parses one delimiter-stripped frame. Unknown type tags yield
// ErrUnknownType; a shape with too few fields yields ErrBadFieldCount.
func Decode(frame []byte) (Envelope, error) {
	s := string(frame)
	head, rest, hasRest := strings.Cut(s, Separator)
	t := Type(head)
	n, ok := maxFields[t]
	if !ok {
		return Envelope{}, domain.ErrUnknownType
	}
	if !hasRest {
		if n > 0 {
			return Envelope{}, domain.ErrBadFieldCount
		}
		return Envelope{Type: t}, nil
	}
	if n == 0 {
		return Envelope{}, domain.ErrBadFieldCount
	}
	fields := strings.SplitN(rest, Separator, n)
	return Envelope{Type: t, Fields: fields}, nil
}
