package output

import (
	"errors"
	"math"

	"github.com/tidwall/gjson"
)

// ErrInvalidReport is returned when a report is not valid JSON.
var ErrInvalidReport = errors.New("invalid report")

// Comparison is the change of one report metric against a baseline.
type Comparison struct {
	Metric    string  `json:"metric"`
	Baseline  float64 `json:"baseline"`
	Current   float64 `json:"current"`
	Delta     float64 `json:"delta"`
	Regressed bool    `json:"regressed"`
}

type direction int

const (
	lowerIsBetter direction = iota
	higherIsBetter
)

// baselineMetrics are the report paths compared against a baseline.
// Throughput is compared relative to the baseline, ratios absolutely.
var baselineMetrics = []struct {
	path     string
	dir      direction
	relative bool
}{
	{path: "ratioError", dir: lowerIsBetter},
	{path: "metrics.failureRate", dir: lowerIsBetter},
	{path: "metrics.throughput", dir: higherIsBetter, relative: true},
}

// CompareBaseline compares a current JSON report with a baseline report.
//
// A metric regresses when it moves in the bad direction by more than
// tolerance. Metrics missing from either report are skipped.
func CompareBaseline(current, baseline []byte, tolerance float64) ([]Comparison, error) {
	if !gjson.ValidBytes(current) {
		return nil, errors.Join(ErrInvalidReport, errors.New("current report is not valid JSON"))
	}
	if !gjson.ValidBytes(baseline) {
		return nil, errors.Join(ErrInvalidReport, errors.New("baseline report is not valid JSON"))
	}

	var out []Comparison
	for _, m := range baselineMetrics {
		base := gjson.GetBytes(baseline, m.path)
		cur := gjson.GetBytes(current, m.path)
		if !base.Exists() || !cur.Exists() {
			continue
		}

		b, c := base.Float(), cur.Float()
		delta := c - b

		worse := delta
		if m.dir == higherIsBetter {
			worse = -delta
		}
		if m.relative && b != 0 {
			worse /= math.Abs(b)
		}

		out = append(out, Comparison{
			Metric:    m.path,
			Baseline:  b,
			Current:   c,
			Delta:     delta,
			Regressed: worse > tolerance,
		})
	}

	return out, nil
}

// Regressed reports whether any comparison regressed.
func Regressed(comparisons []Comparison) bool {
	for _, c := range comparisons {
		if c.Regressed {
			return true
		}
	}
	return false
}
