package ops

import (
	"fmt"
	"math"

	"github.com/visionscript/vscript/pkg/value"
)

// Args are the evaluated arguments of an operation call.
type Args []value.Value

// String returns argument i if it is a string.
func (a Args) String(i int) (string, bool) {
	if i >= len(a) {
		return "", false
	}
	s, ok := a[i].(value.String)
	return s.Value, ok
}

// Float returns argument i as a float if it is numeric.
func (a Args) Float(i int) (float64, bool) {
	if i >= len(a) {
		return 0, false
	}
	return value.Number(a[i])
}

// Int returns argument i rounded to an int if it is numeric.
func (a Args) Int(i int) (int, bool) {
	f, ok := a.Float(i)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

// Strings flattens string arguments and lists of strings, in order.
func (a Args) Strings() []string {
	var out []string
	var walk func(vs []value.Value)
	walk = func(vs []value.Value) {
		for _, v := range vs {
			switch x := v.(type) {
			case value.String:
				out = append(out, x.Value)
			case value.List:
				walk(x.Items)
			}
		}
	}
	walk(a)
	return out
}

func (a Args) requireString(op string, i int, what string) (string, error) {
	s, ok := a.String(i)
	if !ok || s == "" {
		return "", fmt.Errorf("%s needs a %s", op, what)
	}
	return s, nil
}

func (a Args) requireInts(op string, n int) ([]int, error) {
	out := make([]int, n)
	for i := range out {
		v, ok := a.Int(i)
		if !ok {
			return nil, fmt.Errorf("%s needs %d numbers", op, n)
		}
		out[i] = v
	}
	return out, nil
}
