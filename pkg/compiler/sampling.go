package compiler

import (
	"errors"
	"math"
	"slices"
	"strings"

	"github.com/ormasoftchile/wetest/pkg/value"
)

// Sort modes of a range.
const (
	SortAscending = "true"
	SortReverse   = "reverse"
	SortFalse     = "false"
	SortRandom    = "random"
)

// RangeSpec is a decoded range block.
type RangeSpec struct {
	Start, Stop  any
	Step         any
	Lin, Geom    int
	IncludeStart bool
	IncludeStop  bool
	Sort         string
}

// ParseRange decodes a range mapping and applies its defaults: every count
// is taken as an absolute value and a range with no sampling method steps
// by one.
func ParseRange(r map[string]any) (RangeSpec, error) {
	spec := RangeSpec{IncludeStart: true, IncludeStop: true, Sort: SortAscending}

	var ok bool
	if spec.Start, ok = r["start"]; !ok || !value.IsNumber(spec.Start) {
		return spec, invalidTest("range start should be a number but got: %s", value.Stringify(r["start"]))
	}
	if spec.Stop, ok = r["stop"]; !ok || !value.IsNumber(spec.Stop) {
		return spec, invalidTest("range stop should be a number but got: %s", value.Stringify(r["stop"]))
	}

	spec.Step = 0
	if s, ok := r["step"]; ok && s != nil {
		if !value.IsNumber(s) {
			return spec, invalidTest("range step should be a number but got: %s", value.Stringify(s))
		}
		spec.Step = abs(s)
	}
	for _, c := range []struct {
		key string
		dst *int
	}{{"lin", &spec.Lin}, {"geom", &spec.Geom}} {
		raw, ok := r[c.key]
		if !ok || raw == nil {
			continue
		}
		n, isInt := raw.(int)
		if !isInt {
			return spec, invalidTest("range %s should be an integer but got: %s", c.key, value.Stringify(raw))
		}
		if n < 0 {
			n = -n
		}
		*c.dst = n
	}
	if v, ok := r["include_start"]; ok {
		spec.IncludeStart = value.Truthy(v)
	}
	if v, ok := r["include_stop"]; ok {
		spec.IncludeStop = value.Truthy(v)
	}
	if v, ok := r["sort"]; ok {
		spec.Sort = strings.ToLower(value.Stringify(v))
	}

	if isZero(spec.Step) && spec.Lin == 0 && spec.Geom == 0 {
		spec.Step = 1
	}
	// One more division keeps the spacing when start is left out.
	if !spec.IncludeStart {
		if spec.Lin != 0 {
			spec.Lin++
		}
		if spec.Geom != 0 {
			spec.Geom++
		}
	}
	return spec, nil
}

// Values samples the range, deduplicates the points and applies the
// boundary rules. The result is in generation order; see Order.
func (s RangeSpec) Values() ([]any, error) {
	start, _ := value.Float(s.Start)
	stop, _ := value.Float(s.Stop)

	set := newValueSet()
	if !isZero(s.Step) {
		for _, v := range arange(s.Start, s.Stop, s.Step) {
			set.add(v)
		}
	}
	if s.Lin != 0 {
		for _, v := range linspace(start, stop, s.Lin, s.IncludeStop) {
			set.add(v)
		}
	}
	if s.Geom != 0 {
		pts, err := geomspace(start, stop, s.Geom, s.IncludeStop)
		if err != nil {
			return nil, invalidTest("%s", err.Error())
		}
		for _, v := range pts {
			set.add(v)
		}
	}

	if s.IncludeStop {
		set.add(s.Stop)
	} else {
		set.remove(stop)
	}
	if s.IncludeStart {
		set.add(s.Start)
	} else {
		set.remove(start)
	}
	return set.values(), nil
}

// arange walks the half-open interval [start, stop) by step. Integer bounds and step give integers.
func arange(start, stop, step any) []any {
	si, ok1 := start.(int)
	ei, ok2 := stop.(int)
	pi, ok3 := step.(int)
	var out []any
	if ok1 && ok2 && ok3 && pi > 0 {
		for v := si; v < ei; v += pi {
			out = append(out, v)
		}
		return out
	}
	fs, _ := value.Float(start)
	fe, _ := value.Float(stop)
	fp, _ := value.Float(step)
	if fp == 0 || math.IsNaN(fs) || math.IsNaN(fe) {
		return nil
	}
	n := math.Ceil((fe - fs) / fp)
	if math.IsInf(n, 0) {
		return nil
	}
	for i := 0; i < int(n); i++ {
		out = append(out, fs+float64(i)*fp)
	}
	return out
}

// linspace returns num evenly spaced values from start to stop, stop
// included when endpoint is set.
func linspace(start, stop float64, num int, endpoint bool) []float64 {
	if num <= 0 {
		return nil
	}
	div := num
	if endpoint {
		div = num - 1
	}
	out := make([]float64, num)
	if div > 0 {
		step := (stop - start) / float64(div)
		for i := range out {
			out[i] = float64(i)*step + start
		}
	} else {
		out[0] = start
	}
	if endpoint && num > 1 {
		out[num-1] = stop
	}
	return out
}

// geomspace returns num values evenly spaced on a log scale. Bounds must be
// non-zero and of the same sign.
func geomspace(start, stop float64, num int, endpoint bool) ([]float64, error) {
	if start == 0 || stop == 0 {
		return nil, errors.New("geometric sequence cannot include zero")
	}
	if (start < 0) != (stop < 0) {
		return nil, errors.New("geometric sequence needs start and stop of the same sign")
	}
	sign := 1.0
	if start < 0 {
		sign, start, stop = -1, -start, -stop
	}
	exps := linspace(math.Log10(start), math.Log10(stop), num, endpoint)
	out := make([]float64, len(exps))
	for i, e := range exps {
		out[i] = sign * math.Pow(10, e)
	}
	if len(out) > 0 {
		out[0] = sign * start
		if endpoint && len(out) > 1 {
			out[len(out)-1] = sign * stop
		}
	}
	return out, nil
}

// Order arranges range points for a sort mode. ok is false for an unknown
// mode, in which case vals keeps its order.
func Order(vals []any, mode string, shuffle func(n int, swap func(i, j int))) (ok bool) {
	less := func(a, b any) int {
		fa, _ := value.Float(a)
		fb, _ := value.Float(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	switch mode {
	case SortAscending:
		slices.SortStableFunc(vals, less)
	case SortReverse:
		slices.SortStableFunc(vals, func(a, b any) int { return -less(a, b) })
	case SortFalse, SortRandom:
		shuffle(len(vals), func(i, j int) { vals[i], vals[j] = vals[j], vals[i] })
	default:
		return false
	}
	return true
}

// valueSet is an insertion ordered set of numbers keyed by numeric value,
// so 2 and 2.0 are the same point. The first representation wins.
type valueSet struct {
	keys  []float64
	items map[float64]any
}

func newValueSet() *valueSet {
	return &valueSet{items: make(map[float64]any)}
}

func (s *valueSet) add(v any) {
	f, _ := value.Float(v)
	if _, ok := s.items[f]; ok {
		return
	}
	s.items[f] = v
	s.keys = append(s.keys, f)
}

func (s *valueSet) remove(f float64) {
	if _, ok := s.items[f]; !ok {
		return
	}
	delete(s.items, f)
	s.keys = slices.DeleteFunc(s.keys, func(k float64) bool { return k == f })
}

func (s *valueSet) values() []any {
	out := make([]any, len(s.keys))
	for i, k := range s.keys {
		out[i] = s.items[k]
	}
	return out
}

func abs(v any) any {
	switch x := v.(type) {
	case int:
		if x < 0 {
			return -x
		}
		return x
	}
	f, _ := value.Float(v)
	return math.Abs(f)
}

func isZero(v any) bool {
	f, _ := value.Float(v)
	return f == 0
}
