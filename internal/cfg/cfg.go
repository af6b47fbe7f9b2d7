// Package cfg decodes loosely-typed configuration maps into settings structs.
// Driver sections in the TOML file (cache drivers, store drivers) arrive as
// map[string]any; this package turns them into typed settings.
package cfg

import (
	"github.com/mitchellh/mapstructure"
)

// Setter is implemented by settings structs that want defaults applied
// after decoding.
type Setter interface {
	ApplyDefaults()
}

// Decode decodes the raw input map into the target pointer c.
// If c implements Setter, ApplyDefaults is called after a successful decode.
func Decode(input map[string]any, c any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  c,
		TagName: "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return err
	}

	if s, ok := c.(Setter); ok {
		s.ApplyDefaults()
	}
	return nil
}
