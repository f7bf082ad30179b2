// Package value defines the runtime values produced and consumed by
// VisionScript operations.
//
// An absent result is represented by a nil Value.
package value

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Value is the interface for all runtime values.
// The sealed marker method restricts implementations to this package.
type Value interface {
	value() // sealed marker
}

// Bool represents a boolean value.
type Bool struct {
	Value bool
}

func (Bool) value() {}

// Int represents an integer value.
type Int struct {
	Value int64
}

func (Int) value() {}

// Float represents a floating point value.
type Float struct {
	Value float64
}

func (Float) value() {}

// String represents a string value.
type String struct {
	Value string
}

func (String) value() {}

// List represents an ordered list of values.
type List struct {
	Items []Value
}

func (List) value() {}

// Image is a decoded image and the path it was loaded from or saved to.
// Images are compared by identity.
type Image struct {
	Path string
	Img  image.Image
}

func (*Image) value() {}

// Bounds returns the pixel bounds of the image.
func (i *Image) Bounds() image.Rectangle {
	if i == nil || i.Img == nil {
		return image.Rectangle{}
	}
	return i.Img.Bounds()
}

// Detection is one labelled region found in an image.
type Detection struct {
	Class      string          `json:"class"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"-"`
}

// Center returns the midpoint of the detection box.
func (d Detection) Center() image.Point {
	return image.Pt((d.Box.Min.X+d.Box.Max.X)/2, (d.Box.Min.Y+d.Box.Max.Y)/2)
}

// Detections is the result of a detection or segmentation pass.
type Detections struct {
	Items []Detection
}

func (Detections) value() {}

// Classes returns the distinct classes in detection order.
func (d Detections) Classes() []string {
	seen := make(map[string]bool, len(d.Items))
	var out []string
	for _, it := range d.Items {
		if !seen[it.Class] {
			seen[it.Class] = true
			out = append(out, it.Class)
		}
	}
	return out
}

// Filter returns the detections whose class is one of classes. An empty
// class list keeps everything.
func (d Detections) Filter(classes ...string) Detections {
	if len(classes) == 0 {
		return d
	}
	want := make(map[string]bool, len(classes))
	for _, c := range classes {
		want[strings.ToLower(c)] = true
	}
	var out []Detection
	for _, it := range d.Items {
		if want[strings.ToLower(it.Class)] {
			out = append(out, it)
		}
	}
	return Detections{Items: out}
}

// NewBool creates a boolean value.
func NewBool(b bool) Value {
	return Bool{Value: b}
}

// NewInt creates an integer value.
func NewInt(n int64) Value {
	return Int{Value: n}
}

// NewFloat creates a floating point value.
func NewFloat(f float64) Value {
	return Float{Value: f}
}

// NewString creates a string value.
func NewString(s string) Value {
	return String{Value: s}
}

// NewList creates a list value.
func NewList(items []Value) Value {
	return List{Items: items}
}

// TypeName returns the user-facing name of a value's type.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "none"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case List:
		return "list"
	case *Image:
		return "image"
	case Detections:
		return "detections"
	}
	return "unknown"
}

// Equal reports whether two values are equal. Numbers compare across Int
// and Float; images compare by identity.
func Equal(a, b Value) bool {
	if af, ok := number(a); ok {
		bf, ok := number(b)
		return ok && af == bf
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case Bool:
		bv, ok := b.(Bool)
		return ok && av.Value == bv.Value
	case String:
		bv, ok := b.(String)
		return ok && av.Value == bv.Value
	case List:
		bv, ok := b.(List)
		if !ok || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Equal(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	case *Image:
		bv, ok := b.(*Image)
		return ok && av == bv
	case Detections:
		bv, ok := b.(Detections)
		if !ok || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if av.Items[i] != bv.Items[i] {
				return false
			}
		}
		return true
	}
	return false
}

func number(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n.Value), true
	case Float:
		return n.Value, true
	}
	return 0, false
}

// Number extracts a numeric value as float64.
func Number(v Value) (float64, bool) {
	return number(v)
}

// Format renders a value for display.
func Format(v Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case Bool:
		if val.Value {
			return "True"
		}
		return "False"
	case Int:
		return strconv.FormatInt(val.Value, 10)
	case Float:
		return strconv.FormatFloat(val.Value, 'f', -1, 64)
	case String:
		return val.Value
	case List:
		parts := make([]string, len(val.Items))
		for i, it := range val.Items {
			parts[i] = Format(it)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Image:
		b := val.Bounds()
		if val.Path == "" {
			return fmt.Sprintf("<image %dx%d>", b.Dx(), b.Dy())
		}
		return fmt.Sprintf("<image %s %dx%d>", val.Path, b.Dx(), b.Dy())
	case Detections:
		return fmt.Sprintf("<%d detections>", len(val.Items))
	}
	return fmt.Sprintf("%v", v)
}

// Parse converts a textual input binding to a value: integers, floats and
// True/False are recognised, anything else is a string.
func Parse(s string) Value {
	switch s {
	case "True", "true":
		return NewBool(true)
	case "False", "false":
		return NewBool(false)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NewInt(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return NewFloat(f)
	}
	return NewString(s)
}
