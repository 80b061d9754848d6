package dispatch

import (
	"encoding/json"
	"fmt"
)

// Binder deserializes a message body into a Go value. Implement this for
// custom wire formats (protobuf, avro, ...).
type Binder interface {
	Bind(data []byte, v any) error
}

// JSONBinder binds JSON message bodies. It is the default for every
// Dispatcher.
type JSONBinder struct{}

func (JSONBinder) Bind(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rdymux/dispatch: json bind: %w", err)
	}
	return nil
}
