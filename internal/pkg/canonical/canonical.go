// Package canonical produces order-independent JSON encodings and content hashes.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bytedance/sonic"
)

var api = sonic.Config{
	SortMapKeys: true,
	UseNumber:   true,
}.Froze()

// Marshal encodes v with object keys sorted at every depth and no insignificant whitespace.
// Structs are first flattened to generic maps so field declaration order does not matter.
func Marshal(v any) ([]byte, error) {
	raw, err := api.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	var generic any
	if err := api.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("canonical normalize: %w", err)
	}
	out, err := api.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	return out, nil
}

// Hash returns the lowercase hex SHA-256 of Marshal(v).
func Hash(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
