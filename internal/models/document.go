package models

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// decodeDocument maps a backend document onto a model. Backends disagree on
// numeric types (Firestore returns int64, JSONB returns float64), so input is
// weakly typed.
func decodeDocument(doc map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ZeroFields:       true,
	})
	if err != nil {
		return fmt.Errorf("failed to build document decoder: %w", err)
	}
	if err := dec.Decode(doc); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}
