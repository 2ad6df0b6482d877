package workflow

import "fmt"

// Node count bounds enforced by Validate.
const (
	MinNodes = 5
	MaxNodes = 15
)

// Validation is the outcome of validating a document.
type Validation struct {
	Valid  bool
	Errors []string
}

// Validate checks a document against the workflow schema rules.
// It is pure and deterministic: the same document always yields the
// same result, and all violations accumulate rather than short-circuit.
//
// Rules:
//   - "nodes" must be present and be an array
//   - "connections" must be present and be an object
//   - the nodes array must hold between MinNodes and MaxNodes entries
//   - every node needs a non-empty id, name, and type, and a position
//     that is exactly a 2-element numeric pair
//   - node ids must be unique within the document
//
// Connection endpoints are deliberately not checked against the node id
// set; documents with dangling connection references are accepted.
func Validate(doc *Document) Validation {
	var errs []string

	raw := doc.Raw()

	nodes, nodesOK := raw["nodes"].([]any)
	if !nodesOK {
		errs = append(errs, `Workflow must have a "nodes" array`)
	}

	if _, ok := raw["connections"].(map[string]any); !ok {
		errs = append(errs, `Workflow must have a "connections" object`)
	}

	if nodesOK {
		if len(nodes) < MinNodes || len(nodes) > MaxNodes {
			errs = append(errs, fmt.Sprintf("Workflow must have between %d and %d nodes", MinNodes, MaxNodes))
		}

		for i, rn := range nodes {
			node, ok := rn.(map[string]any)
			if !ok {
				errs = append(errs, fmt.Sprintf("Node at index %d is not an object", i))
				continue
			}
			if !hasValue(node, "id") {
				errs = append(errs, fmt.Sprintf(`Node at index %d is missing "id"`, i))
			}
			if !hasValue(node, "name") {
				errs = append(errs, fmt.Sprintf(`Node at index %d is missing "name"`, i))
			}
			if !hasValue(node, "type") {
				errs = append(errs, fmt.Sprintf(`Node at index %d is missing "type"`, i))
			}
			if !hasPosition(node) {
				errs = append(errs, fmt.Sprintf(`Node at index %d has invalid "position"`, i))
			}
		}

		if hasDuplicateIDs(nodes) {
			errs = append(errs, "Workflow has duplicate node IDs")
		}
	}

	return Validation{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}

// hasValue reports whether the node carries a usable value for key.
// Empty strings count as missing; non-string values are accepted as-is.
func hasValue(node map[string]any, key string) bool {
	v, ok := node[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return false
	}
	return true
}

// hasPosition reports whether the node's position is exactly a
// 2-element numeric pair.
func hasPosition(node map[string]any) bool {
	pos, ok := node["position"].([]any)
	if !ok || len(pos) != 2 {
		return false
	}
	for _, p := range pos {
		if _, ok := p.(float64); !ok {
			return false
		}
	}
	return true
}

// hasDuplicateIDs reports whether two nodes share an id value.
func hasDuplicateIDs(nodes []any) bool {
	seen := make(map[string]bool, len(nodes))
	for _, rn := range nodes {
		node, ok := rn.(map[string]any)
		if !ok {
			continue
		}
		v, ok := node["id"]
		if !ok || v == nil {
			continue
		}
		key := fmt.Sprint(v)
		if seen[key] {
			return true
		}
		seen[key] = true
	}
	return false
}
