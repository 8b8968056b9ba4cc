package kafka

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// UnwrapPayload memudahkan decode payload spesifik dari Envelope.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, errors.Wrap(err, "decode payload")
	}
	return t, nil
}
