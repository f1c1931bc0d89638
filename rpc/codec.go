// Package rpc holds the Connect wiring of the code services: procedure
// names, handler constructors and typed clients for plain Go request
// structs carried as JSON.
package rpc

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// Codec marshals plain structs as JSON under the "json" codec name, so
// Connect clients posting application/json reach these handlers.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal into %T: %w", v, err)
	}
	return nil
}
