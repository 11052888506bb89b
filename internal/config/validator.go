package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wesleyorama2/throttler/throttle"
)

//go:embed schema.json
var schemaJSON string

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("schema.json", schemaJSON)
})

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateDocument checks a raw JSON document against the run configuration
// schema. Structural problems (unknown keys, wrong types) are reported here;
// semantic checks are left to Validate.
func ValidateDocument(doc []byte) error {
	schema, err := compileSchema()
	if err != nil {
		return fmt.Errorf("invalid embedded schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			errs := &ValidationErrors{}
			extractSchemaErrors(verr, errs)
			if errs.HasErrors() {
				return errs
			}
		}
		return err
	}
	return nil
}

// extractSchemaErrors flattens a schema validation error tree.
func extractSchemaErrors(err *jsonschema.ValidationError, errs *ValidationErrors) {
	if len(err.Causes) == 0 && err.Message != "" {
		field := strings.TrimPrefix(strings.ReplaceAll(err.InstanceLocation, "/", "."), ".")
		errs.Add(field, err.Message)
	}

	for _, cause := range err.Causes {
		extractSchemaErrors(cause, errs)
	}
}

// Validate validates the run configuration.
//
// Returns nil if valid, or a ValidationErrors containing all validation errors.
func (c *RunConfig) Validate() error {
	errs := &ValidationErrors{}

	validateWorkFactor("workFactor", c.WorkFactor, errs)

	if c.Duration < 0 {
		errs.Add("duration", "duration must be >= 0")
	}
	if c.Iterations < 0 {
		errs.Add("iterations", "iterations must be >= 0")
	}
	if c.Duration == 0 && c.Iterations == 0 && len(c.Stages) == 0 {
		errs.Add("duration", "run must be bounded by duration, iterations or stages")
	}
	if c.ProgressInterval < 0 {
		errs.Add("progressInterval", "progressInterval must be >= 0")
	}

	validateWorkload(&c.Workload, errs)

	for i, stage := range c.Stages {
		prefix := fmt.Sprintf("stages[%d]", i)
		if stage.Duration <= 0 {
			errs.Add(prefix+".duration", "stage duration must be > 0")
		}
		validateWorkFactor(prefix+".workFactor", stage.WorkFactor, errs)
	}

	if c.Thresholds != nil {
		validateThresholds(c.Thresholds, errs)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateWorkFactor(field string, f float64, errs *ValidationErrors) {
	if f < throttle.MinWorkFactor || f > throttle.MaxWorkFactor || math.IsNaN(f) {
		errs.Add(field, fmt.Sprintf("work factor must be within [%v, %v], got %v",
			throttle.MinWorkFactor, throttle.MaxWorkFactor, f))
	}
}

func validateWorkload(w *WorkloadConfig, errs *ValidationErrors) {
	switch w.Type {
	case WorkloadSpin, WorkloadSleep:
	case WorkloadFail:
		if w.FailEvery <= 0 {
			errs.Add("workload.failEvery", "failEvery must be > 0 for the fail workload")
		}
	default:
		errs.Add("workload.type", fmt.Sprintf("unknown workload type: %s", w.Type))
	}

	if w.Duration <= 0 {
		errs.Add("workload.duration", "workload duration must be > 0")
	}
}

func validateThresholds(t *ThresholdsConfig, errs *ValidationErrors) {
	if t.MaxRatioError < 0 || t.MaxRatioError > 1 {
		errs.Add("thresholds.maxRatioError", "maxRatioError must be within [0, 1]")
	}
	if t.MaxFailureRate != nil && (*t.MaxFailureRate < 0 || *t.MaxFailureRate > 1) {
		errs.Add("thresholds.maxFailureRate", "maxFailureRate must be within [0, 1]")
	}
}
