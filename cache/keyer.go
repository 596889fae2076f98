package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// DefaultNamespace prefixes keys and scopes Clear when none is configured.
const DefaultNamespace = "marketcache"

// Keyer derives cache keys from a resource name and its query parameters.
//
// Contract:
// - Determinism: same inputs produce the same key regardless of map order.
// - Sensitivity: any differing parameter value produces a different key.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(resource string, params any) (string, error)
}

// DefaultKeyer builds "<namespace>:<resource>:<hash>" where hash is the first
// 16 hex characters of SHA-256 over the canonical JSON of params.
type DefaultKeyer struct {
	Namespace string
}

// NewKeyer returns a DefaultKeyer for namespace.
func NewKeyer(namespace string) *DefaultKeyer {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &DefaultKeyer{Namespace: namespace}
}

// Key generates a deterministic cache key.
func (k *DefaultKeyer) Key(resource string, params any) (string, error) {
	if strings.TrimSpace(resource) == "" {
		return "", fmt.Errorf("%w: empty resource", ErrInvalidKey)
	}
	canonical, err := Canonicalize(params)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize params: %w", err)
	}

	sum := sha256.Sum256(canonical)
	ns := k.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	return ns + ":" + resource + ":" + hex.EncodeToString(sum[:8]), nil
}

// Canonicalize renders v as JSON with object keys sorted at every level.
// Array order is preserved.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

var _ Keyer = (*DefaultKeyer)(nil)
