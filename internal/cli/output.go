package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// printJSON writes v as indented JSON followed by a newline.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// parseInput decodes the JSON input argument of a command. An absent
// argument means an empty object input.
func parseInput(args []string) (any, error) {
	if len(args) == 0 {
		return map[string]any{}, nil
	}
	var input any
	if err := json.Unmarshal([]byte(args[0]), &input); err != nil {
		return nil, fmt.Errorf("parse input JSON: %w", err)
	}
	return input, nil
}
