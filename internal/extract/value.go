package extract

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind discriminates the tagged value variants of a parsed YAML tree.
type Kind int

const (
	KindScalar Kind = iota
	KindMapping
	KindSequence
)

// Value is one node of a decrypted YAML document. An explicit tagged variant
// keeps the flattening algorithm honest instead of switching on interface{}.
type Value struct {
	Kind Kind

	// Scalar fields, valid when Kind == KindScalar.
	Scalar string // canonical textual form
	Null   bool

	// Mapping fields, valid when Kind == KindMapping. Keys preserves the
	// document order so extraction output is deterministic.
	Keys []string
	Map  map[string]*Value

	// Sequence field, valid when Kind == KindSequence.
	Seq []*Value
}

// Parse decodes YAML bytes into a Value tree. The document root must be a
// mapping, matching the shape of Ansible variable files.
func Parse(data []byte) (*Value, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		// Empty document
		return &Value{Kind: KindMapping, Map: map[string]*Value{}}, nil
	}

	doc := root.Content[0]
	val, err := fromNode(doc)
	if err != nil {
		return nil, err
	}
	if val.Kind != KindMapping {
		return nil, fmt.Errorf("expected a top-level mapping, got %s", kindName(val.Kind))
	}
	return val, nil
}

func fromNode(node *yaml.Node) (*Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return scalarValue(node), nil

	case yaml.MappingNode:
		val := &Value{Kind: KindMapping, Map: make(map[string]*Value, len(node.Content)/2)}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			child, err := fromNode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			if _, dup := val.Map[key]; !dup {
				val.Keys = append(val.Keys, key)
			}
			val.Map[key] = child
		}
		return val, nil

	case yaml.SequenceNode:
		val := &Value{Kind: KindSequence}
		for _, item := range node.Content {
			child, err := fromNode(item)
			if err != nil {
				return nil, err
			}
			val.Seq = append(val.Seq, child)
		}
		return val, nil

	case yaml.AliasNode:
		return fromNode(node.Alias)

	default:
		return nil, fmt.Errorf("unsupported YAML node kind %d", node.Kind)
	}
}

// scalarValue canonicalizes a scalar node: booleans become true/false,
// numbers their base-10 form, everything else passes through unchanged.
func scalarValue(node *yaml.Node) *Value {
	switch node.Tag {
	case "!!null":
		return &Value{Kind: KindScalar, Null: true}
	case "!!bool":
		b := strings.EqualFold(node.Value, "true")
		return &Value{Kind: KindScalar, Scalar: strconv.FormatBool(b)}
	case "!!int":
		if n, err := strconv.ParseInt(node.Value, 0, 64); err == nil {
			return &Value{Kind: KindScalar, Scalar: strconv.FormatInt(n, 10)}
		}
	case "!!float":
		if f, err := strconv.ParseFloat(node.Value, 64); err == nil {
			return &Value{Kind: KindScalar, Scalar: strconv.FormatFloat(f, 'g', -1, 64)}
		}
	}
	return &Value{Kind: KindScalar, Scalar: node.Value}
}

// ToInterface converts the tree into plain Go values for JSON serialization.
// Scalars keep their textual canonical form; distinguishing numeric types is
// unnecessary because the JSON blob exists only to be stored verbatim.
func (v *Value) ToInterface() interface{} {
	switch v.Kind {
	case KindScalar:
		if v.Null {
			return nil
		}
		return v.Scalar
	case KindMapping:
		out := make(map[string]interface{}, len(v.Keys))
		for _, key := range v.Keys {
			out[key] = v.Map[key].ToInterface()
		}
		return out
	case KindSequence:
		out := make([]interface{}, len(v.Seq))
		for i, item := range v.Seq {
			out[i] = item.ToInterface()
		}
		return out
	}
	return nil
}

func kindName(k Kind) string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	}
	return "unknown"
}
