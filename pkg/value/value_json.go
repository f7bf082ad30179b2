package value

import (
	"encoding/json"
	"math"
)

// ToJSON marshals a value to JSON bytes. Images are written as their
// path and size; detections as a list of objects with a box.
func ToJSON(v Value) ([]byte, error) {
	return json.Marshal(ToRaw(v))
}

// ToJSONString is a convenience that returns a string.
func ToJSONString(v Value) string {
	b, err := ToJSON(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

type boxJSON struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

type detectionJSON struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Box        boxJSON `json:"box"`
}

type imageJSON struct {
	Path   string `json:"path,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ToRaw converts a value to plain Go data suitable for encoding/json.
func ToRaw(v Value) any {
	switch val := v.(type) {
	case nil:
		return nil
	case Bool:
		return val.Value
	case Int:
		return val.Value
	case Float:
		if math.IsInf(val.Value, 0) || math.IsNaN(val.Value) {
			return nil
		}
		return val.Value
	case String:
		return val.Value
	case List:
		items := make([]any, len(val.Items))
		for i, it := range val.Items {
			items[i] = ToRaw(it)
		}
		return items
	case *Image:
		b := val.Bounds()
		return imageJSON{Path: val.Path, Width: b.Dx(), Height: b.Dy()}
	case Detections:
		items := make([]detectionJSON, len(val.Items))
		for i, d := range val.Items {
			items[i] = detectionJSON{
				Class:      d.Class,
				Confidence: d.Confidence,
				Box:        boxJSON{d.Box.Min.X, d.Box.Min.Y, d.Box.Max.X, d.Box.Max.Y},
			}
		}
		return map[string]any{"detections": items}
	}
	return nil
}

// FromAny converts decoded JSON or YAML data to a value. Maps are not
// representable and become their string form.
func FromAny(v any) Value {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		return NewBool(val)
	case int:
		return NewInt(int64(val))
	case int64:
		return NewInt(val)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return NewInt(int64(val))
		}
		return NewFloat(val)
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return NewInt(n)
		}
		if f, err := val.Float64(); err == nil {
			return NewFloat(f)
		}
		return NewString(val.String())
	case string:
		return NewString(val)
	case []any:
		items := make([]Value, len(val))
		for i, it := range val {
			items[i] = FromAny(it)
		}
		return NewList(items)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return NewString(string(b))
}
