package main

import (
	"encoding/json"
	"fmt"
	"io"
)

// output writes either human-readable text or indented JSON.
type output struct {
	w        io.Writer
	jsonMode bool
}

func newOutput(w io.Writer, jsonMode bool) *output {
	return &output{w: w, jsonMode: jsonMode}
}

// Print writes human when in text mode and data when in JSON mode.
func (o *output) Print(human string, data any) error {
	if o.jsonMode {
		return o.printJSON(data)
	}
	_, err := io.WriteString(o.w, human)
	return err
}

func (o *output) printJSON(data any) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("format JSON: %w", err)
	}
	_, err = fmt.Fprintln(o.w, string(b))
	return err
}

const bulletSymbol = "•"
