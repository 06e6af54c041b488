// Package symtab implements the truncated-MD5 function name table shared
// by every profile reader: it maps the first eight bytes of MD5(name),
// interpreted as a little- or big-endian uint64, back to the original
// function name.
package symtab

import (
	"crypto/md5"
	"encoding/binary"
)

// Table maps a truncated-MD5 function hash to its name.
type Table struct {
	names map[uint64]string
}

// New returns an empty Table.
func New() *Table {
	return &Table{names: make(map[uint64]string)}
}

// Hash computes the truncated-MD5 hash LLVM uses to identify name, under
// the given byte order. Exported so callers that need to test a name
// against a hash (merge's "try both endiannesses" rule) don't have to
// duplicate the digest-then-truncate dance.
func Hash(name string, order binary.ByteOrder) uint64 {
	sum := md5.Sum([]byte(name))
	return order.Uint64(sum[:8])
}

// Add stores name under its truncated-MD5 hash, computed using order
// (little-endian for profiles produced on a little-endian host, the
// default; big-endian profiles hash their names big-endian).
func (t *Table) Add(name string, order binary.ByteOrder) uint64 {
	h := Hash(name, order)
	t.names[h] = name
	return h
}

// AddLE is a convenience wrapper for the common little-endian case.
func (t *Table) AddLE(name string) uint64 {
	return t.Add(name, binary.LittleEndian)
}

// Lookup returns the name registered for hash, if any.
func (t *Table) Lookup(hash uint64) (string, bool) {
	name, ok := t.names[hash]
	return name, ok
}

// Len reports the number of distinct hashes registered.
func (t *Table) Len() int { return len(t.names) }

// Merge copies every entry of other into t that t doesn't already have.
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	for h, n := range other.names {
		if _, ok := t.names[h]; !ok {
			t.names[h] = n
		}
	}
}

// Names returns a snapshot of the hash->name map. Intended for read-only
// iteration (reporting, testing); mutating the result does not affect t.
func (t *Table) Names() map[uint64]string {
	out := make(map[uint64]string, len(t.names))
	for h, n := range t.names {
		out[h] = n
	}
	return out
}
