package relay

import (
	"crypto/rsa"
	"net"
	"sync"

	"cryptex/internal/domain"
)

// Entry is one registered session as seen by the router.
type Entry struct {
	Identity  domain.Username
	Conn      net.Conn
	PublicKey *rsa.PublicKey
	// PublicKeyPEM is kept verbatim so key-exchange fan-out forwards exactly
	// the bytes the owner exported.
	PublicKeyPEM string
	RemoteAddr   string

	writeMu sync.Mutex
}

// Directory is the authoritative map of connected identities. Every
// operation runs under one mutex so concurrent registrations, removals and
// snapshots never interleave partially. At most one entry per identity
// exists at any observable instant.
type Directory struct {
	mu      sync.Mutex
	entries map[domain.Username]*Entry
	order   []domain.Username
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{entries: make(map[domain.Username]*Entry)}
}

// TryRegister atomically checks and inserts. A duplicate identity returns
// ErrNameTaken and never evicts the existing entry.
func (d *Directory) TryRegister(e *Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[e.Identity]; ok {
		return domain.ErrNameTaken
	}
	d.entries[e.Identity] = e
	d.order = append(d.order, e.Identity)
	return nil
}

// Remove deletes the identity. Removing an absent identity is a no-op.
func (d *Directory) Remove(identity domain.Username) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[identity]; !ok {
		return
	}
	delete(d.entries, identity)
	for i, name := range d.order {
		if name == identity {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Lookup returns the entry for identity, if registered.
func (d *Directory) Lookup(identity domain.Username) (*Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[identity]
	return e, ok
}

// Snapshot returns a consistent copy of all entries in registration order.
// Fan-out over the copy may race a disconnect; a failed send to a stale
// entry is treated as that peer's disconnect by the caller.
func (d *Directory) Snapshot() []*Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Entry, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.entries[name])
	}
	return out
}

// Identities returns the online identity list in registration order.
func (d *Directory) Identities() []domain.Username {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Username, len(d.order))
	copy(out, d.order)
	return out
}

// PublicKeysExcluding returns every registered entry except the named one,
// for key-exchange fan-out to a newcomer.
func (d *Directory) PublicKeysExcluding(identity domain.Username) []*Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Entry, 0, len(d.order))
	for _, name := range d.order {
		if name == identity {
			continue
		}
		out = append(out, d.entries[name])
	}
	return out
}

// Len reports the number of registered identities.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
