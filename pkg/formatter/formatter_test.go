package formatter_test

import (
	"testing"

	"github.com/visionscript/vscript/pkg/formatter"
	"github.com/visionscript/vscript/pkg/parser"
)

func format(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.Parse(src, "test.vic")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return formatter.Format(prog)
}

func TestFormatCanonicalises(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"bare op gets brackets", "Show\n", "Show[]\n"},
		{"spacing", "Detect[ 'cat' ,'dog' ]", "Detect[\"cat\", \"dog\"]\n"},
		{"assignment", "n=Count[]", "n = Count[]\n"},
		{"equality", "x = Count[]==2", "x = Count[] == 2\n"},
		{"literals", "Say[1, 2.0, True, False, [1, 2]]", "Say[1, 2.0, True, False, [1, 2]]\n"},
		{"input and not", "Say[Not[Input[\"k\"]]]", "Say[Not[Input[\"k\"]]]\n"},
		{"run", "Run[\"f\"]", "Run[f]\n"},
		{"alias kept", "Find[\"cat\"]", "Find[\"cat\"]\n"},
		{"escapes", `Say["a\"b"]`, "Say[\"a\\\"b\"]\n"},
		{"trailing comment", "Load[\"a.png\"]   # first\n", "Load[\"a.png\"] # first\n"},
		{"empty", "\n\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := format(t, tt.src); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatBlocks(t *testing.T) {
	src := "In[\"dir\"]\n\tLoad[]\n\tIf[Contains[\"cat\"]]\n\t  Save[]\nMake f\n  Say[]\n"
	want := "In[\"dir\"]\n    Load[]\n    If[Contains[\"cat\"]]\n        Save[]\nMake f\n    Say[]\n"
	if got := format(t, src); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatIsIdempotent(t *testing.T) {
	src := "# pipeline\nLoad[\"a.png\"]\nDetect[\"person\"]\nIf[Count[] == 1]\n    Say[\"one\"]\nn = Count[]\n"
	once := format(t, src)
	twice := format(t, once)
	if once != twice {
		t.Errorf("formatting is not idempotent:\n%s\n---\n%s", once, twice)
	}
}
