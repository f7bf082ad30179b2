package ops

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/visionscript/vscript/pkg/fault"
	helpdocs "github.com/visionscript/vscript/pkg/help"
	"github.com/visionscript/vscript/pkg/session"
	"github.com/visionscript/vscript/pkg/value"
)

// --- helpers ---

type fakeBackend struct {
	dets    []value.Detection
	text    string
	trained string
}

func (f *fakeBackend) Detect(_ context.Context, _ image.Image, _ string, classes []string) ([]value.Detection, error) {
	return value.Detections{Items: f.dets}.Filter(classes...).Items, nil
}

func (f *fakeBackend) Segment(ctx context.Context, img image.Image, model string, classes []string) ([]value.Detection, error) {
	return f.Detect(ctx, img, model, classes)
}

func (f *fakeBackend) Classify(_ context.Context, _ image.Image, labels []string) (string, error) {
	return labels[len(labels)-1], nil
}

func (f *fakeBackend) Caption(context.Context, image.Image) (string, error)  { return f.text, nil }
func (f *fakeBackend) ReadText(context.Context, image.Image) (string, error) { return f.text, nil }
func (f *fakeBackend) ReadQR(context.Context, image.Image) (string, error)   { return f.text, nil }

// EmbedImage maps an image to its top-left pixel's red and blue levels.
func (f *fakeBackend) EmbedImage(_ context.Context, img image.Image) ([]float32, error) {
	c := color.NRGBAModel.Convert(img.At(img.Bounds().Min.X, img.Bounds().Min.Y)).(color.NRGBA)
	return []float32{float32(c.R) / 255, float32(c.B) / 255}, nil
}

func (f *fakeBackend) EmbedText(_ context.Context, text string) ([]float32, error) {
	if text == "red" {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func (f *fakeBackend) Train(_ context.Context, folder, _ string) error {
	f.trained = folder
	return nil
}

func writePNG(t *testing.T, dir, name string, col color.Color, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := imaging.Save(imaging.New(w, h, col), path); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func newContext(b *fakeBackend) (*Context, *bytes.Buffer) {
	var out bytes.Buffer
	return &Context{
		Ctx:     context.Background(),
		State:   session.New(),
		Backend: b,
		Out:     &out,
		Rand:    rand.New(rand.NewSource(1)),
	}, &out
}

func call(t *testing.T, c *Context, name string, args ...value.Value) value.Value {
	t.Helper()
	r := NewRegistry()
	RegisterDefaults(r)
	v, err := r.Dispatch(c, name, args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	c.State.LastFunctionType = name
	if v != nil {
		c.State.Last = v
	}
	return v
}

func callErr(c *Context, name string, args ...value.Value) error {
	r := NewRegistry()
	RegisterDefaults(r)
	_, err := r.Dispatch(c, name, args)
	return err
}

func str(s string) value.Value { return value.NewString(s) }
func num(n int64) value.Value  { return value.NewInt(n) }

var twoCats = []value.Detection{
	{Class: "cat", Confidence: 0.9, Box: image.Rect(0, 0, 10, 10)},
	{Class: "dog", Confidence: 0.8, Box: image.Rect(20, 20, 40, 40)},
	{Class: "cat", Confidence: 0.7, Box: image.Rect(30, 0, 50, 10)},
}

// ---------------------------------------------------------------------------
// Enum and registry
// ---------------------------------------------------------------------------

func TestParseRoundTrip(t *testing.T) {
	for op := OpLoad; op <= OpComment; op++ {
		got, ok := Parse(op.String())
		if !ok || got != op {
			t.Errorf("Parse(%q) = %v, %v", op.String(), got, ok)
		}
	}
	if _, ok := Parse("find"); ok {
		t.Error("aliases are not canonical names")
	}
	if op, ok := Parse("CountInRegion"); !ok || op != OpCountInRegion {
		t.Error("Parse should ignore case")
	}
}

func TestControlOps(t *testing.T) {
	for _, op := range []Op{OpMake, OpRun, OpIf, OpIn, OpNegate, OpEquality, OpInput, OpVar, OpComment} {
		if !op.IsControl() {
			t.Errorf("%s should be a control op", op)
		}
	}
	if OpExit.IsControl() {
		t.Error("exit is dispatched")
	}
}

func TestDefaultsCoverEveryOperation(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)
	for _, op := range Dispatchable() {
		if r.Get(op) == nil {
			t.Errorf("no handler for %s", op)
		}
		if _, ok := helpdocs.Operation(op.String()); !ok {
			t.Errorf("no help for %s", op)
		}
	}
	if len(r.All()) != len(Dispatchable()) {
		t.Errorf("got %d handlers, want %d", len(r.All()), len(Dispatchable()))
	}
}

func TestDispatchUnknown(t *testing.T) {
	c, _ := newContext(&fakeBackend{})
	for _, name := range []string{"dteect", "make", "find"} {
		err := callErr(c, name)
		f, ok := fault.As(err)
		if !ok || f.Kind != fault.UnknownFunction {
			t.Errorf("%s: got %v", name, err)
		}
	}
}

func TestRegisterOverrides(t *testing.T) {
	r := NewRegistry()
	r.Register(OpCount, HandlerFunc(func(*Context, Args) (value.Value, error) {
		return value.NewInt(7), nil
	}))
	c, _ := newContext(&fakeBackend{})
	v, err := r.Dispatch(c, "count", nil)
	if err != nil || !value.Equal(v, value.NewInt(7)) {
		t.Errorf("got %v, %v", v, err)
	}
}

// ---------------------------------------------------------------------------
// Images
// ---------------------------------------------------------------------------

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", color.White, 8, 6)
	c, _ := newContext(&fakeBackend{})

	img, ok := call(t, c, "load", str(path)).(*value.Image)
	if !ok || img.Path != path || img.Bounds().Dx() != 8 {
		t.Fatalf("got %#v", img)
	}
	if c.State.ImageCount() != 1 {
		t.Errorf("image stack = %d", c.State.ImageCount())
	}
}

func TestLoadActiveFile(t *testing.T) {
	path := writePNG(t, t.TempDir(), "a.png", color.White, 2, 2)
	c, _ := newContext(&fakeBackend{})
	c.State.Loop = &session.LoopContext{Active: path}
	img := call(t, c, "load").(*value.Image)
	if img.Path != path {
		t.Errorf("loaded %s", img.Path)
	}
}

func TestLoadMissing(t *testing.T) {
	c, _ := newContext(&fakeBackend{})
	err := callErr(c, "load", str(filepath.Join(t.TempDir(), "nope.png")))
	if f, ok := fault.As(err); !ok || f.Kind != fault.MissingResource || !strings.Contains(f.Message, "does not exist") {
		t.Errorf("got %v", err)
	}
	if f, ok := fault.As(callErr(c, "load")); !ok || f.Kind != fault.MissingResource {
		t.Error("Load[] outside a loop should be a missing resource")
	}
}

func TestImageTransformsPush(t *testing.T) {
	path := writePNG(t, t.TempDir(), "a.png", color.RGBA{200, 10, 10, 255}, 20, 10)
	c, _ := newContext(&fakeBackend{})
	call(t, c, "load", str(path))

	steps := []struct {
		name string
		args []value.Value
	}{
		{"greyscale", nil},
		{"rotate", []value.Value{num(90)}},
		{"resize", []value.Value{num(4), num(0)}},
		{"blur", nil},
		{"setbrightness", []value.Value{num(-20)}},
	}
	for i, s := range steps {
		if _, ok := call(t, c, s.name, s.args...).(*value.Image); !ok {
			t.Fatalf("%s did not return an image", s.name)
		}
		if got := c.State.ImageCount(); got != i+2 {
			t.Errorf("after %s: image stack = %d, want %d", s.name, got, i+2)
		}
	}
	cur, _ := c.State.CurrentImage()
	if b := cur.Bounds(); b.Dx() != 4 || b.Dy() != 8 {
		t.Errorf("rotated and resized image is %dx%d, want 4x8", b.Dx(), b.Dy())
	}
}

func TestResizeRejectsZeroSize(t *testing.T) {
	path := writePNG(t, t.TempDir(), "a.png", color.White, 2, 2)
	c, _ := newContext(&fakeBackend{})
	call(t, c, "load", str(path))
	if err := callErr(c, "resize", num(0), num(0)); err == nil {
		t.Error("expected error")
	}
}

func TestOperationsNeedImage(t *testing.T) {
	c, _ := newContext(&fakeBackend{})
	for _, name := range []string{"save", "show", "greyscale", "detect", "caption", "getcolours", "paste"} {
		f, ok := fault.As(callErr(c, name))
		if !ok || f.Kind != fault.MissingResource {
			t.Errorf("%s: expected missing resource fault", name)
		}
	}
}

func TestPaste(t *testing.T) {
	dir := t.TempDir()
	c, _ := newContext(&fakeBackend{})
	call(t, c, "load", str(writePNG(t, dir, "bg.png", color.White, 10, 10)))
	if f, ok := fault.As(callErr(c, "paste")); !ok || f.Kind != fault.MissingResource {
		t.Error("paste with one image should fail")
	}
	call(t, c, "load", str(writePNG(t, dir, "fg.png", color.Black, 2, 2)))

	out := call(t, c, "paste", num(3), num(4)).(*value.Image)
	if out.Bounds().Dx() != 10 {
		t.Errorf("pasted image is %v", out.Bounds())
	}
	r, _, _, _ := out.Img.At(3, 4).RGBA()
	if r != 0 {
		t.Error("foreground not pasted at (3, 4)")
	}
	call(t, c, "pasterandom")
	if c.State.ImageCount() != 4 {
		t.Errorf("image stack = %d", c.State.ImageCount())
	}
}

func TestSaveAnnotatesAfterDetect(t *testing.T) {
	dir := t.TempDir()
	c, _ := newContext(&fakeBackend{dets: twoCats})
	call(t, c, "load", str(writePNG(t, dir, "a.png", color.White, 64, 64)))

	plain := filepath.Join(dir, "plain.png")
	call(t, c, "save", str(plain))
	call(t, c, "detect")
	boxed := filepath.Join(dir, "sub", "boxed.png")
	call(t, c, "save", str(boxed))

	for path, want := range map[string]bool{plain: false, boxed: true} {
		img, err := imaging.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		r, g, _, _ := img.At(25, 20).RGBA()
		isBox := r>>8 == 0xff && g>>8 == 0x30
		if isBox != want {
			t.Errorf("%s: box edge drawn = %v, want %v", filepath.Base(path), isBox, want)
		}
	}
}

func TestShow(t *testing.T) {
	dir := t.TempDir()
	c, out := newContext(&fakeBackend{})
	call(t, c, "load", str(writePNG(t, dir, "a.png", color.White, 4, 4)))
	if err := callErr(c, "show"); err == nil {
		t.Error("show without a display should fail")
	}
	c.Display = &DirDisplay{Dir: filepath.Join(dir, "shown"), Out: out}
	call(t, c, "show")
	want := filepath.Join(dir, "shown", "show-001.png")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected %s: %v", want, err)
	}
	if !strings.Contains(out.String(), want) {
		t.Errorf("output %q", out.String())
	}
}

func TestGetColours(t *testing.T) {
	c, _ := newContext(&fakeBackend{})
	call(t, c, "load", str(writePNG(t, t.TempDir(), "a.png", color.RGBA{255, 0, 0, 255}, 8, 8)))
	v := call(t, c, "getcolours")
	if value.Format(v) != "[red]" {
		t.Errorf("got %s", value.Format(v))
	}
}

func TestDominantColoursOrder(t *testing.T) {
	img := imaging.New(10, 10, color.RGBA{0, 0, 255, 255})
	for x := 0; x < 3; x++ {
		img.Set(x, 0, color.RGBA{0, 128, 0, 255})
	}
	got := dominantColours(img, 3)
	if len(got) != 2 || got[0] != "blue" || got[1] != "green" {
		t.Errorf("got %v", got)
	}
}

// ---------------------------------------------------------------------------
// Detections
// ---------------------------------------------------------------------------

func loadedWithDetections(t *testing.T) *Context {
	t.Helper()
	c, _ := newContext(&fakeBackend{dets: twoCats})
	call(t, c, "load", str(writePNG(t, t.TempDir(), "a.png", color.White, 64, 64)))
	call(t, c, "detect")
	return c
}

func TestDetectAndCount(t *testing.T) {
	c := loadedWithDetections(t)
	if c.State.DetectionsCount() != 1 {
		t.Errorf("detections stack = %d", c.State.DetectionsCount())
	}
	if v := call(t, c, "count"); !value.Equal(v, num(3)) {
		t.Errorf("count = %v", v)
	}
	if v := call(t, c, "count", str("cat")); !value.Equal(v, num(2)) {
		t.Errorf("count cat = %v", v)
	}
	if v := call(t, c, "countinregion", num(0), num(0), num(32), num(32)); !value.Equal(v, num(2)) {
		t.Errorf("countinregion = %v", v)
	}
}

func TestDetectPassesClassesAndModel(t *testing.T) {
	c, _ := newContext(&fakeBackend{dets: twoCats})
	call(t, c, "load", str(writePNG(t, t.TempDir(), "a.png", color.White, 4, 4)))
	call(t, c, "use", str("yolov8n"))
	if c.State.ActiveModel != "yolov8n" {
		t.Errorf("active model = %q", c.State.ActiveModel)
	}
	d := call(t, c, "segment", value.NewList([]value.Value{str("dog")})).(value.Detections)
	if len(d.Items) != 1 || d.Items[0].Class != "dog" {
		t.Errorf("got %+v", d)
	}
}

func TestCountWithoutDetections(t *testing.T) {
	c, _ := newContext(&fakeBackend{})
	if f, ok := fault.As(callErr(c, "count")); !ok || f.Kind != fault.MissingResource {
		t.Error("expected missing resource fault")
	}
}

func TestSelectAndCutout(t *testing.T) {
	c := loadedWithDetections(t)
	d := call(t, c, "select", num(1)).(value.Detections)
	if len(d.Items) != 1 || d.Items[0].Class != "dog" {
		t.Errorf("select 1 = %+v", d)
	}
	if c.State.DetectionsCount() != 2 {
		t.Errorf("detections stack = %d", c.State.DetectionsCount())
	}
	img := call(t, c, "cutout").(*value.Image)
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 20 {
		t.Errorf("cutout is %v", b)
	}
	if f, ok := fault.As(callErr(c, "cutout", num(5))); !ok || f.Kind != fault.MissingResource {
		t.Error("out of range cutout should be a missing resource")
	}
	cats := call(t, c, "select", str("cat")).(value.Detections)
	if len(cats.Items) != 0 {
		t.Errorf("select on the single dog detection kept %d cats", len(cats.Items))
	}
}

func TestReplaceKnownColour(t *testing.T) {
	c := loadedWithDetections(t)
	before := c.State.ImageCount()
	if v := call(t, c, "replace", str("Blue")); v != nil {
		t.Errorf("replace returned %v", v)
	}
	if c.State.ImageCount() != before+1 {
		t.Fatal("replace should push the filled image")
	}
	img, _ := c.State.CurrentImage()
	r, g, b, _ := img.Img.At(5, 5).RGBA()
	if r != 0 || g != 0 || b>>8 != 0xff {
		t.Errorf("box not filled: %d %d %d", r, g, b)
	}
}

func TestReplaceUnknownColourContinues(t *testing.T) {
	c := loadedWithDetections(t)
	var out bytes.Buffer
	c.Out = &out
	before := c.State.ImageCount()
	v, err := func() (value.Value, error) {
		r := NewRegistry()
		RegisterDefaults(r)
		return r.Dispatch(c, "replace", Args{str("blurple")})
	}()
	if err != nil || v != nil {
		t.Fatalf("got %v, %v; want nil, nil", v, err)
	}
	if !strings.Contains(out.String(), `"blurple" not found`) {
		t.Errorf("output %q", out.String())
	}
	if c.State.ImageCount() != before {
		t.Error("unknown colour must not change the image stack")
	}
}

func TestParseColourHex(t *testing.T) {
	col, err := parseColour("#10ff20")
	if err != nil || col != (color.RGBA{0x10, 0xff, 0x20, 0xff}) {
		t.Errorf("got %v, %v", col, err)
	}
}

// ---------------------------------------------------------------------------
// Text and state
// ---------------------------------------------------------------------------

func TestReadRendersByLastFunction(t *testing.T) {
	c := loadedWithDetections(t)
	var out bytes.Buffer
	c.Out = &out
	call(t, c, "read")
	if !strings.Contains(out.String(), "cat 0.90 (0, 0, 10, 10)") {
		t.Errorf("detections rendered as %q", out.String())
	}

	out.Reset()
	call(t, c, "count")
	call(t, c, "read")
	if out.String() != "3 objects\n" {
		t.Errorf("count rendered as %q", out.String())
	}

	out.Reset()
	call(t, c, "read", str("hello"), num(2))
	if out.String() != "hello 2\n" {
		t.Errorf("args rendered as %q", out.String())
	}
}

func TestReadNothing(t *testing.T) {
	c, _ := newContext(&fakeBackend{})
	if f, ok := fault.As(callErr(c, "read")); !ok || f.Kind != fault.MissingResource {
		t.Error("expected missing resource fault")
	}
}

func TestContains(t *testing.T) {
	c := loadedWithDetections(t)
	if v := call(t, c, "contains", str("dog")); !value.Equal(v, value.NewBool(true)) {
		t.Errorf("contains dog = %v", v)
	}
	c.State.Last = str("A Dog on a sofa")
	if v := call(t, c, "contains", str("sofa")); !value.Equal(v, value.NewBool(true)) {
		t.Errorf("contains sofa = %v", v)
	}
	if v := call(t, c, "contains", str("a cat"), str("dog")); !value.Equal(v, value.NewBool(false)) {
		t.Errorf("two-argument contains = %v", v)
	}
}

func TestBackendTextOps(t *testing.T) {
	c, _ := newContext(&fakeBackend{text: "hello"})
	call(t, c, "load", str(writePNG(t, t.TempDir(), "a.png", color.White, 4, 4)))
	for _, name := range []string{"caption", "gettext", "readqr"} {
		if v := call(t, c, name); !value.Equal(v, str("hello")) {
			t.Errorf("%s = %v", name, v)
		}
	}
	if v := call(t, c, "classify", str("cat"), str("dog")); !value.Equal(v, str("dog")) {
		t.Errorf("classify = %v", v)
	}
	if err := callErr(c, "classify"); err == nil {
		t.Error("classify without labels should fail")
	}
}

func TestTrain(t *testing.T) {
	fb := &fakeBackend{}
	c, _ := newContext(fb)
	dir := t.TempDir()
	call(t, c, "train", str(dir))
	if fb.trained != dir {
		t.Errorf("trained %q", fb.trained)
	}
	if f, ok := fault.As(callErr(c, "train", str(filepath.Join(dir, "missing")))); !ok || f.Kind != fault.MissingResource {
		t.Error("missing folder should be a missing resource")
	}
}

func TestLabelWritesYOLO(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "b.png", color.White, 100, 50)
	writePNG(t, dir, "a.jpg", color.White, 100, 50)
	os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o644)
	fb := &fakeBackend{dets: []value.Detection{
		{Class: "dog", Box: image.Rect(0, 0, 50, 50)},
		{Class: "cat", Box: image.Rect(50, 0, 100, 25)},
	}}
	c, _ := newContext(fb)

	v := call(t, c, "label", str(dir), str("cat"), str("dog"))
	if !value.Equal(v, num(2)) {
		t.Errorf("labelled %v", v)
	}
	data, err := os.ReadFile(filepath.Join(dir, "b.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want := "1 0.250000 0.500000 0.500000 1.000000\n0 0.750000 0.250000 0.500000 0.500000\n"
	if string(data) != want {
		t.Errorf("label file:\n%s\nwant:\n%s", data, want)
	}
}

func TestListImagesSorted(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"c.png", "a.PNG", ".hidden.png", "b.txt"} {
		os.WriteFile(filepath.Join(dir, n), nil, 0o644)
	}
	os.Mkdir(filepath.Join(dir, "sub.png"), 0o755)
	got, err := ListImages(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || filepath.Base(got[0]) != "a.PNG" || filepath.Base(got[1]) != "c.png" {
		t.Errorf("got %v", got)
	}
	if _, err := ListImages(filepath.Join(dir, "nope")); err == nil {
		t.Error("expected error for missing folder")
	}
}

func TestSearchAndSimilarity(t *testing.T) {
	dir := t.TempDir()
	c, _ := newContext(&fakeBackend{})
	if f, ok := fault.As(callErr(c, "search", str("red"))); !ok || f.Kind != fault.MissingResource {
		t.Error("search with no images should be a missing resource")
	}
	red := writePNG(t, dir, "red.png", color.RGBA{255, 0, 0, 255}, 2, 2)
	blue := writePNG(t, dir, "blue.png", color.RGBA{0, 0, 255, 255}, 2, 2)
	call(t, c, "load", str(red))
	call(t, c, "load", str(blue))

	if v := call(t, c, "search", str("red")); !value.Equal(v, str(red)) {
		t.Errorf("search red = %v", v)
	}
	if c.State.SearchIndexCount() != 1 {
		t.Errorf("search index stack = %d", c.State.SearchIndexCount())
	}
	if v := call(t, c, "search", str("blue")); !value.Equal(v, str(blue)) {
		t.Errorf("search blue = %v", v)
	}
	if c.State.SearchIndexCount() != 1 {
		t.Error("the index is created once")
	}
	if v := call(t, c, "similarity"); !value.Equal(v, value.NewFloat(0)) {
		t.Errorf("similarity = %v", v)
	}
}

func TestResetHelpExitImport(t *testing.T) {
	c, out := newContext(&fakeBackend{})
	c.State.History = []string{"load"}
	call(t, c, "reset")
	if len(c.State.History) != 0 {
		t.Error("reset kept history")
	}

	call(t, c, "help", str("Find"))
	if !strings.HasPrefix(out.String(), `Detect["class", ...]`) {
		t.Errorf("help output %q", out.String())
	}
	out.Reset()
	call(t, c, "help")
	if !strings.Contains(out.String(), "Total:") {
		t.Errorf("help index %q", out.String())
	}

	if err := callErr(c, "exit"); !errors.Is(err, ErrExit) {
		t.Errorf("exit returned %v", err)
	}

	if err := callErr(c, "import", str("x.vic")); err == nil {
		t.Error("import without a callback should fail")
	}
	var imported string
	c.Import = func(p string) error { imported = p; return nil }
	call(t, c, "import", str("x.vic"))
	if imported != "x.vic" {
		t.Errorf("imported %q", imported)
	}
}

func TestArgs(t *testing.T) {
	a := Args{str("cat"), value.NewList([]value.Value{str("dog"), num(1)}), value.NewFloat(2.6)}
	if got := a.Strings(); len(got) != 2 || got[1] != "dog" {
		t.Errorf("Strings() = %v", got)
	}
	if n, ok := a.Int(2); !ok || n != 3 {
		t.Errorf("Int(2) = %d, %v", n, ok)
	}
	if _, ok := a.Int(0); ok {
		t.Error("Int(0) should fail on a string")
	}
	if _, ok := a.String(9); ok {
		t.Error("String out of range")
	}
}
