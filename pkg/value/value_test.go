package value_test

import (
	"image"
	"testing"

	"github.com/visionscript/vscript/pkg/value"
)

func TestEqual(t *testing.T) {
	img := &value.Image{Path: "a.png", Img: image.NewRGBA(image.Rect(0, 0, 2, 2))}
	other := &value.Image{Path: "a.png", Img: img.Img}
	dets := value.Detections{Items: []value.Detection{{Class: "cat", Confidence: 0.9, Box: image.Rect(0, 0, 1, 1)}}}

	tests := []struct {
		name string
		a, b value.Value
		want bool
	}{
		{"int int", value.NewInt(2), value.NewInt(2), true},
		{"int float", value.NewInt(2), value.NewFloat(2), true},
		{"int string", value.NewInt(2), value.NewString("2"), false},
		{"bools", value.NewBool(true), value.NewBool(true), true},
		{"strings", value.NewString("a"), value.NewString("b"), false},
		{"nil nil", nil, nil, true},
		{"nil bool", nil, value.NewBool(false), false},
		{"lists", value.NewList([]value.Value{value.NewInt(1)}), value.NewList([]value.Value{value.NewFloat(1)}), true},
		{"list length", value.NewList(nil), value.NewList([]value.Value{value.NewInt(1)}), false},
		{"same image", img, img, true},
		{"image identity", img, other, false},
		{"detections", dets, value.Detections{Items: append([]value.Detection(nil), dets.Items...)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := value.Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		v    value.Value
		want string
	}{
		{nil, ""},
		{value.NewBool(true), "True"},
		{value.NewInt(-3), "-3"},
		{value.NewFloat(0.5), "0.5"},
		{value.NewString("hi"), "hi"},
		{value.NewList([]value.Value{value.NewString("red"), value.NewInt(1)}), "[red, 1]"},
		{&value.Image{Path: "a.png", Img: image.NewGray(image.Rect(0, 0, 4, 3))}, "<image a.png 4x3>"},
		{value.Detections{Items: make([]value.Detection, 2)}, "<2 detections>"},
	}
	for _, tt := range tests {
		if got := value.Format(tt.v); got != tt.want {
			t.Errorf("Format(%#v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want value.Value
	}{
		{"3", value.NewInt(3)},
		{"2.5", value.NewFloat(2.5)},
		{"True", value.NewBool(true)},
		{"false", value.NewBool(false)},
		{"cat.png", value.NewString("cat.png")},
	}
	for _, tt := range tests {
		if got := value.Parse(tt.in); !value.Equal(got, tt.want) || value.TypeName(got) != value.TypeName(tt.want) {
			t.Errorf("Parse(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestDetectionsFilterAndClasses(t *testing.T) {
	d := value.Detections{Items: []value.Detection{
		{Class: "cat"}, {Class: "dog"}, {Class: "Cat"}, {Class: "dog"},
	}}
	if got := len(d.Filter("cat").Items); got != 2 {
		t.Errorf("Filter(cat) kept %d, want 2", got)
	}
	if got := len(d.Filter().Items); got != 4 {
		t.Errorf("Filter() kept %d, want 4", got)
	}
	classes := d.Classes()
	if len(classes) != 3 || classes[0] != "cat" || classes[1] != "dog" {
		t.Errorf("Classes() = %v", classes)
	}
}

func TestDetectionCenter(t *testing.T) {
	d := value.Detection{Box: image.Rect(10, 20, 30, 60)}
	if c := d.Center(); c != image.Pt(20, 40) {
		t.Errorf("Center() = %v", c)
	}
}

func TestToJSON(t *testing.T) {
	tests := []struct {
		v    value.Value
		want string
	}{
		{nil, "null"},
		{value.NewInt(42), "42"},
		{value.NewFloat(1.5), "1.5"},
		{value.NewList([]value.Value{value.NewBool(false), value.NewString("x")}), `[false,"x"]`},
		{&value.Image{Path: "a.png", Img: image.NewGray(image.Rect(0, 0, 4, 3))}, `{"path":"a.png","width":4,"height":3}`},
		{
			value.Detections{Items: []value.Detection{{Class: "cat", Confidence: 0.5, Box: image.Rect(1, 2, 3, 4)}}},
			`{"detections":[{"class":"cat","confidence":0.5,"box":{"x0":1,"y0":2,"x1":3,"y1":4}}]}`,
		},
	}
	for _, tt := range tests {
		if got := value.ToJSONString(tt.v); got != tt.want {
			t.Errorf("ToJSONString = %s, want %s", got, tt.want)
		}
	}
}

func TestFromAny(t *testing.T) {
	got := value.FromAny([]any{float64(3), 2.5, "s", true, nil})
	list, ok := got.(value.List)
	if !ok || len(list.Items) != 5 {
		t.Fatalf("got %#v", got)
	}
	if _, ok := list.Items[0].(value.Int); !ok {
		t.Errorf("whole float should decode as int, got %T", list.Items[0])
	}
	if _, ok := list.Items[1].(value.Float); !ok {
		t.Errorf("got %T", list.Items[1])
	}
	if list.Items[4] != nil {
		t.Errorf("null should decode as absent, got %#v", list.Items[4])
	}
}
