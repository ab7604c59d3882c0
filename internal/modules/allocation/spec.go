// Package allocation resolves allocation settings into normalized target weights.
package allocation

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the allocation variant.
type Kind int

const (
	KindEqual Kind = iota
	KindExplicit
	KindFromFile
	KindFromSource
)

func (k Kind) String() string {
	switch k {
	case KindEqual:
		return "equal"
	case KindExplicit:
		return "explicit"
	case KindFromFile:
		return "file"
	case KindFromSource:
		return "source"
	default:
		return "unknown"
	}
}

// Spec is the tagged allocation variant: equal weights, an explicit ticker to
// weight mapping, a weights file, or the weights of the tickers source file.
type Spec struct {
	Kind    Kind
	Weights map[string]float64
	Path    string
}

// Equal builds the equal-weight variant.
func Equal() Spec {
	return Spec{Kind: KindEqual}
}

// Explicit builds the mapping variant.
func Explicit(weights map[string]float64) Spec {
	return Spec{Kind: KindExplicit, Weights: weights}
}

// FromFile builds the weights-file variant.
func FromFile(path string) Spec {
	return Spec{Kind: KindFromFile, Path: path}
}

// FromSource builds the variant that reads weights from the tickers source
// file, keeping only the selected universe.
func FromSource(path string) Spec {
	return Spec{Kind: KindFromSource, Path: path}
}

// WithSource links the spec to the tickers source file. A weights file that
// is the source file itself resolves as the source variant.
func (s Spec) WithSource(path string) Spec {
	if path == "" {
		return s
	}
	switch s.Kind {
	case KindFromSource:
		if s.Path == "" {
			s.Path = path
		}
	case KindFromFile:
		if samePath(s.Path, path) {
			return FromSource(s.Path)
		}
	}
	return s
}

func samePath(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

func (s Spec) String() string {
	switch s.Kind {
	case KindExplicit:
		keys := make([]string, 0, len(s.Weights))
		for k := range s.Weights {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%g", k, s.Weights[k]))
		}
		return "explicit(" + strings.Join(parts, ",") + ")"
	case KindFromFile:
		return "file(" + s.Path + ")"
	case KindFromSource:
		return "source(" + s.Path + ")"
	default:
		return s.Kind.String()
	}
}

// ParseSpec converts a decoded config value into a Spec. "equal" (or nothing)
// is equal weight, "source" takes the weights of the tickers source file, a
// map is an explicit mapping, any other string is a path.
func ParseSpec(raw interface{}) (Spec, error) {
	switch v := raw.(type) {
	case nil:
		return Equal(), nil
	case Spec:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" || strings.EqualFold(s, "equal") {
			return Equal(), nil
		}
		if strings.EqualFold(s, "source") {
			return Spec{Kind: KindFromSource}, nil
		}
		return FromFile(s), nil
	case map[string]float64:
		return Explicit(normalizeKeys(v)), nil
	case map[string]interface{}:
		weights := make(map[string]float64, len(v))
		for ticker, w := range v {
			f, err := toFloat(w)
			if err != nil {
				return Spec{}, fmt.Errorf("weight for %s: %w", ticker, err)
			}
			weights[ticker] = f
		}
		return Explicit(normalizeKeys(weights)), nil
	default:
		return Spec{}, fmt.Errorf("unsupported allocation value of type %T", raw)
	}
}

func normalizeKeys(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[NormalizeTicker(k)] = v
	}
	return out
}

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
