// Package component provides the checksummed snapshot the introspection
// surface serves for a registered component.
package component

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/st-keller/event-counter/schema"
)

// Snapshot is a point-in-time view of one component: its descriptor and the
// values of the attributes the descriptor lists. The checksum covers both, so
// clients can skip unchanged snapshots.
type Snapshot struct {
	Name       string             `json:"name"`
	Type       string             `json:"type"`
	Checksum   string             `json:"checksum"`
	Descriptor *schema.Descriptor `json:"descriptor"`
	Values     map[string]any     `json:"values"`
}

type payload struct {
	Descriptor *schema.Descriptor `json:"descriptor"`
	Values     map[string]any     `json:"values"`
}

// Encode returns the canonical JSON a snapshot's checksum is computed over.
func Encode(desc *schema.Descriptor, values map[string]any) ([]byte, error) {
	return json.Marshal(payload{Descriptor: desc, Values: values})
}

// Checksum returns the hex sha256 of raw.
func Checksum(raw []byte) string {
	hash := sha256.Sum256(raw)
	return hex.EncodeToString(hash[:])
}

// New creates a Snapshot with its checksum computed from the encoded payload.
func New(name string, desc *schema.Descriptor, values map[string]any) (Snapshot, error) {
	raw, err := Encode(desc, values)
	if err != nil {
		return Snapshot{}, err
	}
	return FromEncoded(name, desc, values, raw), nil
}

// FromEncoded creates a Snapshot when the caller already holds the encoded payload.
func FromEncoded(name string, desc *schema.Descriptor, values map[string]any, raw []byte) Snapshot {
	typ := name
	if desc != nil && desc.Component != "" {
		typ = desc.Component
	}
	return Snapshot{
		Name:       name,
		Type:       typ,
		Checksum:   Checksum(raw),
		Descriptor: desc,
		Values:     values,
	}
}
