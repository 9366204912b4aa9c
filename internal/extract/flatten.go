// Package extract parses decrypted YAML into a flat list of dotted-path
// keyed string values ready for migration.
package extract

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Secret is one extracted key/value pair. The value never appears in logs
// or reports; callers must treat it accordingly.
type Secret struct {
	Key   string
	Value string
}

// Extractor flattens parsed YAML trees.
//
// Two legitimate input shapes exist in vault files. "Select sensitive
// variables" files hold individually named secrets (conventionally prefixed
// vault_) and are flattened per leaf. "Entire file is the secret" files hold
// one config blob under an unprefixed top-level key; that subtree is
// serialized once as a JSON string instead of being exploded.
type Extractor struct {
	// flattenPrefix is the variable-name convention marking individually
	// flattened top-level keys. Empty disables the opaque-blob rule.
	flattenPrefix string
}

// NewExtractor creates an extractor with the given convention prefix.
func NewExtractor(flattenPrefix string) *Extractor {
	return &Extractor{flattenPrefix: flattenPrefix}
}

// Extract parses YAML bytes and returns secrets in document order.
// Null-valued keys (disabled entries) are excluded, not emitted empty.
func (e *Extractor) Extract(yamlBytes []byte) ([]Secret, error) {
	root, err := Parse(yamlBytes)
	if err != nil {
		return nil, err
	}

	var secrets []Secret
	for _, key := range root.Keys {
		val := root.Map[key]

		if val.Kind != KindScalar && e.isOpaque(key) {
			blob, err := json.Marshal(val.ToInterface())
			if err != nil {
				return nil, err
			}
			secrets = append(secrets, Secret{Key: key, Value: string(blob)})
			continue
		}

		secrets = appendFlattened(secrets, key, val)
	}
	return secrets, nil
}

// isOpaque reports whether a non-scalar top-level value should be stored as
// a single JSON blob rather than flattened.
func (e *Extractor) isOpaque(key string) bool {
	if e.flattenPrefix == "" {
		return false
	}
	return !strings.HasPrefix(key, e.flattenPrefix)
}

func appendFlattened(secrets []Secret, path string, val *Value) []Secret {
	switch val.Kind {
	case KindScalar:
		if val.Null {
			return secrets
		}
		return append(secrets, Secret{Key: path, Value: val.Scalar})

	case KindMapping:
		for _, key := range val.Keys {
			secrets = appendFlattened(secrets, path+"."+key, val.Map[key])
		}
		return secrets

	case KindSequence:
		for i, item := range val.Seq {
			secrets = appendFlattened(secrets, path+"."+strconv.Itoa(i), item)
		}
		return secrets
	}
	return secrets
}
