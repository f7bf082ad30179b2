package fault

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/visionscript/vscript/pkg/ast"
	"github.com/visionscript/vscript/pkg/diagnostics"
)

func TestUnknownMessage(t *testing.T) {
	f := Unknown("Dteect", []string{"Detect"})
	if f.Kind != UnknownFunction {
		t.Errorf("got kind %v", f.Kind)
	}
	if f.Error() != "Function Dteect does not exist. Did you mean: Detect?" {
		t.Errorf("got %q", f.Error())
	}
	d := f.Diagnostic()
	if d.Code != diagnostics.EUnknownFn || !strings.Contains(d.Hint, "Detect") {
		t.Errorf("got %+v", d)
	}
}

func TestUnknownWithoutSuggestions(t *testing.T) {
	f := Unknown("Zzz", nil)
	if f.Error() != "Function Zzz does not exist." {
		t.Errorf("got %q", f.Error())
	}
}

func TestAsThroughWrapping(t *testing.T) {
	base := Missing("No image loaded.")
	wrapped := fmt.Errorf("while running: %w", base)
	f, ok := As(wrapped)
	if !ok || f != base {
		t.Fatalf("As failed: %v %v", f, ok)
	}
	if _, ok := As(errors.New("plain")); ok {
		t.Error("plain errors are not faults")
	}
}

func TestExternalUnwraps(t *testing.T) {
	cause := errors.New("backend down")
	f := External("detect", cause)
	if !errors.Is(f, cause) {
		t.Error("expected External to wrap its cause")
	}
	if f.Kind != ExternalOperation || f.Message != "detect: backend down" {
		t.Errorf("got %v %q", f.Kind, f.Message)
	}
}

func TestWithSpanKeepsFirst(t *testing.T) {
	first := ast.Span{StartLine: 1}
	second := ast.Span{StartLine: 9}
	f := Undefined("f").WithSpan(first).WithSpan(second)
	if f.Span.StartLine != 1 {
		t.Errorf("got line %d", f.Span.StartLine)
	}
}

func TestKindString(t *testing.T) {
	if MissingResource.String() != "MissingResourceFault" {
		t.Errorf("got %q", MissingResource.String())
	}
}
