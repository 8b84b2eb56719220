package recordfmt

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "schema://bundle.json"

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

// ValidateJSON checks an encoded bundle against the record schema.
func ValidateJSON(data []byte) error {
	schema, err := compiled()
	if err != nil {
		return fmt.Errorf("compile bundle schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("bundle violates schema: %w", err)
	}
	return nil
}

// Validate checks b against the record schema.
func Validate(b *Bundle) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return ValidateJSON(data)
}
