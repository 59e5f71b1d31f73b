// Package oid implements the content-addressed commit identifier used
// throughout unstacked: an opaque 20-byte hash with a lowercase 40-hex
// textual form, matching the object ids produced by the git subprocess
// that backs internal/repo.
package oid

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

const (
	// Size is the number of bytes in an Oid.
	Size = 20
	// HexSize is the number of hex characters in an Oid's textual form.
	HexSize = Size * 2
)

// Oid is a content-addressed object identifier.
type Oid [Size]byte

// Zero is the zero-value Oid, used to mean "no commit" (e.g. an empty
// parent list boundary).
var Zero Oid

// New decodes a 40-character hex string into an Oid. Malformed input
// yields the zero Oid; use NewEx to detect that case.
func New(s string) Oid {
	var h Oid
	b, _ := hex.DecodeString(s)
	copy(h[:], b)
	return h
}

// NewEx decodes a 40-character hex string into an Oid, rejecting anything
// that is not exactly HexSize valid hex characters.
func NewEx(s string) (Oid, error) {
	if !Valid(s) {
		return Zero, fmt.Errorf("oid: %q is not a valid object id", s)
	}
	return New(s), nil
}

// Valid reports whether s is a syntactically valid Oid hex string.
func Valid(s string) bool {
	if len(s) != HexSize {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// IsZero reports whether h is the zero Oid.
func (h Oid) IsZero() bool {
	return h == Zero
}

// String returns the lowercase hex representation of h.
func (h Oid) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first n hex characters of h's textual form, clamped
// to HexSize.
func (h Oid) Short(n int) string {
	if n > HexSize {
		n = HexSize
	}
	return h.String()[:n]
}

// MarshalJSON encodes h as a JSON string, per the 40-hex-character
// convention used for every persisted reference.
func (h Oid) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes h from a JSON string.
func (h *Oid) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Zero
		return nil
	}
	decoded, err := NewEx(s)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// MarshalText implements encoding.TextMarshaler, used by TOML config
// decoding and other text-based formats.
func (h Oid) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Oid) UnmarshalText(text []byte) error {
	decoded, err := NewEx(string(text))
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// Sort sorts a slice of Oids in increasing lexicographic order.
func Sort(a []Oid) {
	sort.Sort(Slice(a))
}

// Slice attaches sort.Interface to []Oid, in increasing order.
type Slice []Oid

func (p Slice) Len() int           { return len(p) }
func (p Slice) Less(i, j int) bool { return bytes.Compare(p[i][:], p[j][:]) < 0 }
func (p Slice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
