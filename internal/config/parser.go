package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/throttler/throttle"
)

const (
	// DefaultWorkloadDuration is the unit-of-work length when none is configured.
	DefaultWorkloadDuration = 100 * time.Microsecond

	// DefaultProgressInterval is the minimum gap between progress log lines.
	DefaultProgressInterval = time.Second
)

// LoadConfig loads a run configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
//
// The raw document is checked against the embedded JSON schema before it is
// decoded.
func LoadConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*RunConfig, error) {
	doc, err := toJSONDocument(data, path)
	if err != nil {
		return nil, err
	}

	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	var config RunConfig
	if err := json.Unmarshal(doc, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// An explicit workFactor (including 0) is kept for Validate to judge.
	if !gjson.GetBytes(doc, "workFactor").Exists() {
		config.WorkFactor = throttle.MaxWorkFactor
	}

	return &config, nil
}

// toJSONDocument normalises YAML or JSON input into JSON bytes.
func toJSONDocument(data []byte, path string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		if !json.Valid(data) {
			return nil, fmt.Errorf("failed to parse JSON config: invalid JSON")
		}
		return data, nil
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		if ext == ".yaml" || ext == ".yml" || ext == "" {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		return nil, fmt.Errorf("failed to parse config (unknown format %s): %w", ext, err)
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	doc, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert YAML config: %w", err)
	}
	return doc, nil
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms", "200us"
//   - Seconds as integer: "30" (treated as 30 seconds)
func ParseDurationString(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	seconds, err := strconv.Atoi(s)
	if err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// ParseStages parses the compact stage syntax used on the command line:
// "duration:workFactor[,duration:workFactor...]", e.g. "30s:0.5,1m:0.1".
func ParseStages(s string) ([]StageConfig, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	stages := make([]StageConfig, 0, len(parts))

	for i, part := range parts {
		fields := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("stage %d: expected duration:workFactor, got %q", i+1, part)
		}

		dur, err := ParseDurationString(fields[0])
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i+1, err)
		}

		factor, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("stage %d: invalid work factor %q: %w", i+1, fields[1], err)
		}

		stages = append(stages, StageConfig{
			Duration:   Duration(dur),
			WorkFactor: factor,
		})
	}

	return stages, nil
}

// ApplyDefaults fills in unset optional fields. The work factor is not one
// of them: ParseConfig defaults it only when the document omits it.
func ApplyDefaults(c *RunConfig) {
	if c.Name == "" {
		c.Name = "throttled run"
	}
	if c.Workload.Type == "" {
		c.Workload.Type = WorkloadSpin
	}
	if c.Workload.Duration == 0 {
		c.Workload.Duration = Duration(DefaultWorkloadDuration)
	}
	if c.ProgressInterval == 0 {
		c.ProgressInterval = Duration(DefaultProgressInterval)
	}
	for i := range c.Stages {
		if c.Stages[i].Name == "" {
			c.Stages[i].Name = fmt.Sprintf("stage-%d", i+1)
		}
	}
}
