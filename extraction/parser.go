package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ResponseParseError is returned when no well-formed JSON payload can be
// located in the model reply.
type ResponseParseError struct {
	Reason string
}

func (e *ResponseParseError) Error() string {
	return "model response contains no JSON payload: " + e.Reason
}

// ResponseFormatError is returned when a payload was located but it is not
// a JSON object.
type ResponseFormatError struct {
	// Kind is the JSON kind found: "array", "string", "number", "bool" or "null"
	Kind string
}

func (e *ResponseFormatError) Error() string {
	return fmt.Sprintf("model response payload is a JSON %s, expected an object", e.Kind)
}

// fencePattern matches ``` or ```json code blocks, in order of appearance.
var fencePattern = regexp.MustCompile("(?s)```[ \t]*(?:[A-Za-z0-9_-]+)?[ \t]*\r?\n?(.*?)```")

// Parse locates the first well-formed JSON payload in a model reply and
// decodes it into an Intermediate.
//
// Candidates are tried in order: fenced code blocks, then JSON values
// starting at each '{' or '[' in the raw reply by position, then the whole
// trimmed reply as a scalar. The first candidate that decodes to an object
// wins, so a bracketed citation like "[1]" ahead of the payload is skipped.
// Positions inside an already decoded value are not candidates. With no
// object anywhere, the first decoded value is a ResponseFormatError.
func Parse(response string) (*Intermediate, error) {
	v, err := locatePayload(response)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ResponseFormatError{Kind: jsonKind(v)}
	}
	return FromMap(obj), nil
}

func locatePayload(response string) (any, error) {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return nil, &ResponseParseError{Reason: "empty response"}
	}

	var fallback any
	found := false
	consider := func(v any) bool {
		if _, ok := v.(map[string]any); ok {
			return true
		}
		if !found {
			fallback, found = v, true
		}
		return false
	}

	for _, m := range fencePattern.FindAllStringSubmatch(trimmed, -1) {
		if v, _, ok := decodeFirst(strings.TrimSpace(m[1])); ok && consider(v) {
			return v, nil
		}
	}

	for i := 0; i < len(trimmed); i++ {
		if c := trimmed[i]; c != '{' && c != '[' {
			continue
		}
		v, n, ok := decodeFirst(trimmed[i:])
		if !ok {
			continue
		}
		if consider(v) {
			return v, nil
		}
		i += n - 1
	}

	if found {
		return fallback, nil
	}

	var scalar any
	if err := unmarshalNumber(trimmed, &scalar); err == nil {
		return scalar, nil
	}

	return nil, &ResponseParseError{Reason: "no decodable object, array or value"}
}

// decodeFirst decodes one JSON value at the start of s and reports how many
// bytes it used. Trailing text after the value is ignored.
func decodeFirst(s string) (any, int, bool) {
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil, 0, false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, 0, false
	}
	return v, int(dec.InputOffset()), true
}

func unmarshalNumber(s string, v *any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON value")
	}
	return nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "bool"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
