// Package schema describes the attributes and operations a component exposes
// to the introspection surface, and caches that description between changes.
package schema

import "sort"

// Attribute types understood by the introspection surface.
const (
	TypeInt64  = "int64"
	TypeString = "string"
)

// Attribute describes one named attribute.
type Attribute struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Readable    bool   `json:"readable"`
	Writable    bool   `json:"writable"`
}

// Param describes one operation parameter.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Operation describes one invocable operation.
type Operation struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Params      []Param `json:"params,omitempty"`
	Returns     string  `json:"returns"`
}

// Descriptor is an immutable manifest of a component's attributes and
// operations. Callers must not modify a Descriptor once it is published.
type Descriptor struct {
	Component   string      `json:"component"`
	Description string      `json:"description,omitempty"`
	Attributes  []Attribute `json:"attributes"`
	Operations  []Operation `json:"operations"`
}

// New builds a Descriptor with attributes sorted by name.
func New(component, description string, attrs []Attribute, ops []Operation) *Descriptor {
	sorted := make([]Attribute, len(attrs))
	copy(sorted, attrs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	opsCopy := make([]Operation, len(ops))
	copy(opsCopy, ops)

	return &Descriptor{
		Component:   component,
		Description: description,
		Attributes:  sorted,
		Operations:  opsCopy,
	}
}

// Counters builds one read-only int64 attribute per key.
func Counters(keys []string, description string) []Attribute {
	attrs := make([]Attribute, 0, len(keys))
	for _, key := range keys {
		attrs = append(attrs, Attribute{
			Name:        key,
			Type:        TypeInt64,
			Description: description,
			Readable:    true,
		})
	}
	return attrs
}

// Attribute looks up an attribute by name.
func (d *Descriptor) Attribute(name string) (Attribute, bool) {
	if d == nil {
		return Attribute{}, false
	}
	i := sort.Search(len(d.Attributes), func(i int) bool { return d.Attributes[i].Name >= name })
	if i < len(d.Attributes) && d.Attributes[i].Name == name {
		return d.Attributes[i], true
	}
	return Attribute{}, false
}

// AttributeNames returns the attribute names in order.
func (d *Descriptor) AttributeNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, 0, len(d.Attributes))
	for _, a := range d.Attributes {
		names = append(names, a.Name)
	}
	return names
}

// Operation looks up an operation by name.
func (d *Descriptor) Operation(name string) (Operation, bool) {
	if d == nil {
		return Operation{}, false
	}
	for _, op := range d.Operations {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}
