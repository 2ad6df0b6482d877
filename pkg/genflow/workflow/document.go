// Package workflow defines the workflow document model and its schema
// validation rules.
//
// A workflow document is the node/connection graph produced by the
// generation pipeline. Documents arrive as free-form JSON from the model
// provider, so the package keeps the raw decoded object intact and layers
// typed accessors and validation on top. Fields the schema doesn't know
// about pass through untouched.
package workflow

import (
	"encoding/json"
	"fmt"
)

// Node is the typed view of a single workflow node.
type Node struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	TypeVersion int            `json:"typeVersion,omitempty"`
	Position    []float64      `json:"position"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Document is a parsed workflow document.
//
// The zero value is not usable; create documents with Parse.
type Document struct {
	raw map[string]any
}

// Parse decodes a JSON object into a Document.
// The full object is retained, including fields outside the schema.
func Parse(data []byte) (*Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	return &Document{raw: raw}, nil
}

// Raw returns the underlying decoded object.
// The returned map should not be modified.
func (d *Document) Raw() map[string]any {
	return d.raw
}

// MarshalJSON encodes the full document, preserving unknown fields.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.raw)
}

// UnmarshalJSON decodes a document in place.
func (d *Document) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.raw)
}

// NodeCount returns the number of entries in the nodes array,
// or 0 if the field is missing or not an array.
func (d *Document) NodeCount() int {
	nodes, ok := d.raw["nodes"].([]any)
	if !ok {
		return 0
	}
	return len(nodes)
}

// Nodes returns the typed view of the nodes array.
// Entries that don't decode into the Node shape are skipped.
func (d *Document) Nodes() []Node {
	rawNodes, ok := d.raw["nodes"].([]any)
	if !ok {
		return nil
	}
	nodes := make([]Node, 0, len(rawNodes))
	for _, rn := range rawNodes {
		data, err := json.Marshal(rn)
		if err != nil {
			continue
		}
		var n Node
		if err := json.Unmarshal(data, &n); err != nil {
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes
}
