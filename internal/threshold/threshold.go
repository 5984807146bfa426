package threshold

import "tempstation/internal/station"

// Status is the outcome of comparing one value with its range.
type Status int

const (
	// Unchecked means no range is configured for the metric.
	Unchecked Status = iota
	InRange
	OutOfRange
)

func (s Status) String() string {
	switch s {
	case InRange:
		return "in_range"
	case OutOfRange:
		return "out_of_range"
	default:
		return "unchecked"
	}
}

// MarshalText lets verdicts render as strings in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Verdict pairs a measurement with the status it produced.
type Verdict struct {
	Measurement station.Measurement `json:"measurement"`
	Range       *station.Range      `json:"range,omitempty"`
	Status      Status              `json:"status"`
}

// Evaluate reports OutOfRange iff v < r.Min or v > r.Max.
func Evaluate(v float64, r station.Range) Status {
	if v < r.Min || v > r.Max {
		return OutOfRange
	}
	return InRange
}

// EvaluateAll produces one verdict per measurement. Metrics are judged
// independently of each other.
func EvaluateAll(ms []station.Measurement, th station.Thresholds) []Verdict {
	out := make([]Verdict, 0, len(ms))
	for _, m := range ms {
		r, ok := th[m.Metric]
		if !ok {
			out = append(out, Verdict{Measurement: m, Status: Unchecked})
			continue
		}
		out = append(out, Verdict{
			Measurement: m,
			Range:       &r,
			Status:      Evaluate(m.Value, r),
		})
	}
	return out
}

// AnyOutOfRange reports whether at least one verdict breaks its range.
func AnyOutOfRange(vs []Verdict) bool {
	for _, v := range vs {
		if v.Status == OutOfRange {
			return true
		}
	}
	return false
}
