package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wesleyorama2/throttler/internal/engine"
)

// MarshalReport encodes a result as an indented JSON report.
func MarshalReport(result *engine.Result) ([]byte, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return data, nil
}

// WriteReport writes the JSON report to w.
func WriteReport(w io.Writer, result *engine.Result) error {
	data, err := MarshalReport(result)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// SaveReport writes the JSON report to path.
func SaveReport(path string, result *engine.Result) error {
	data, err := MarshalReport(result)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}
