package jsonx

import (
	"bytes"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// ParseJSON parses a JSON object into an attribute map.
// Numbers decode as float64 unless useNumber is set, in which case they decode as json.Number.
func ParseJSON(jsonData []byte, useNumber bool) (map[string]interface{}, error) {
	var attributes map[string]interface{}

	dec := json.NewDecoder(bytes.NewReader(jsonData))
	if useNumber {
		dec.UseNumber()
	}

	if err := dec.Decode(&attributes); err != nil {
		return nil, errors.WithMessage(err, "failed to parse JSON document")
	}

	return attributes, nil
}

// Marshal encodes v, annotating failures with the kind of value being encoded.
func Marshal(v any, what string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to encode %s to JSON", what)
	}

	return data, nil
}
