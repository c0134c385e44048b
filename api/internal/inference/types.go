package inference

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Result is the inference service response. It is owned by the service:
// callers replace it wholesale and never edit it.
type Result struct {
	Label          string      `json:"label"`
	Confidence     Display     `json:"confidence"`
	AllConfidences Confidences `json:"all_confidences"`
}

// HasBreakdown reports whether the response carried an all_confidences object.
func (r Result) HasBreakdown() bool { return r.AllConfidences != nil }

// Display is a pre-formatted value such as "91.2%". Numbers are kept as their
// JSON text rather than reformatted.
type Display string

func (d *Display) UnmarshalJSON(b []byte) error {
	s, err := displayText(b)
	if err != nil {
		return err
	}
	*d = Display(s)
	return nil
}

type ClassConfidence struct {
	Label   string
	Percent Display
}

// Confidences keeps all_confidences in the order the service wrote the keys.
type Confidences []ClassConfidence

func (c *Confidences) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*c = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("all_confidences: expected object, got %v", tok)
	}
	out := Confidences{}
	seen := make(map[string]int)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := kt.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("all_confidences[%q]: %w", key, err)
		}
		val, err := displayText(raw)
		if err != nil {
			return fmt.Errorf("all_confidences[%q]: %w", key, err)
		}
		// A repeated key keeps its first position and takes the last value.
		if i, ok := seen[key]; ok {
			out[i].Percent = Display(val)
			continue
		}
		seen[key] = len(out)
		out = append(out, ClassConfidence{Label: key, Percent: Display(val)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// Get returns the display value for a class label.
func (c Confidences) Get(label string) (Display, bool) {
	for _, cc := range c {
		if cc.Label == label {
			return cc.Percent, true
		}
	}
	return "", false
}

func displayText(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return "", nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(b), nil
}
