package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Delimiter separates diagnostic noise from the probe payload in the tool's
// captured output. Everything before it is discarded; the payload after it
// must be a single JSON object.
const Delimiter = "{probe delimiter}"

// Result is the decoded probe payload.
type Result struct {
	// Environ is the environment observed inside the execution context.
	Environ map[string]string `json:"environ"`
}

// ParseError reports captured output that could not be decoded. The raw
// output is carried for diagnosis and included in the message.
type ParseError struct {
	Reason string
	Raw    []byte
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not decode probe result (%s):\n%s", e.Reason, string(e.Raw))
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseOutput scrapes the probe payload out of the overall invocation noise.
// Missing delimiter or invalid JSON after it is a hard failure, never
// silently tolerated.
func ParseOutput(output []byte) (*Result, error) {
	_, payload, found := bytes.Cut(output, []byte(Delimiter))
	if !found {
		return nil, &ParseError{Reason: "missing delimiter", Raw: output}
	}

	result := &Result{}
	if err := json.Unmarshal(payload, result); err != nil {
		return nil, &ParseError{Reason: "invalid JSON payload", Raw: payload, Err: err}
	}

	return result, nil
}
