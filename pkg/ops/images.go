package ops

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/colornames"

	"github.com/visionscript/vscript/pkg/fault"
	"github.com/visionscript/vscript/pkg/value"
)

// DefaultSavePath is used by Save[] when no path is given.
const DefaultSavePath = "output.png"

func currentImage(c *Context) (*value.Image, error) {
	img, ok := c.State.CurrentImage()
	if !ok {
		return nil, fault.Missing("No image has been loaded.")
	}
	return img, nil
}

func push(c *Context, img image.Image, path string) value.Value {
	v := &value.Image{Path: path, Img: img}
	c.State.PushImage(v)
	return v
}

func load(c *Context, args Args) (value.Value, error) {
	path, ok := args.String(0)
	if !ok {
		path, ok = c.State.ActiveFile()
	}
	if !ok || path == "" {
		return nil, fault.Missing("No image path given and no file is active.")
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fault.Missing("File %s does not exist.", path)
	}
	if err != nil {
		return nil, err
	}
	return push(c, img, path), nil
}

func save(c *Context, args Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	path, ok := args.String(0)
	if !ok || path == "" {
		path = DefaultSavePath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return nil, imaging.Save(annotated(c, img.Img), path)
}

func show(c *Context, _ Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	if c.Display == nil {
		return nil, errors.New("no display configured")
	}
	return nil, c.Display.Show(&value.Image{Path: img.Path, Img: annotated(c, img.Img)})
}

func rotate(c *Context, args Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	deg, ok := args.Float(0)
	if !ok {
		return nil, errors.New("rotate needs an angle in degrees")
	}
	return push(c, imaging.Rotate(img.Img, deg, color.Transparent), img.Path), nil
}

func greyscale(c *Context, _ Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	return push(c, imaging.Grayscale(img.Img), img.Path), nil
}

func resize(c *Context, args Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	wh, err := args.requireInts("resize", 2)
	if err != nil {
		return nil, err
	}
	if wh[0] < 0 || wh[1] < 0 || (wh[0] == 0 && wh[1] == 0) {
		return nil, fmt.Errorf("resize: invalid size %dx%d", wh[0], wh[1])
	}
	return push(c, imaging.Resize(img.Img, wh[0], wh[1], imaging.Lanczos), img.Path), nil
}

func blur(c *Context, args Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	sigma, ok := args.Float(0)
	if !ok {
		sigma = 2
	}
	return push(c, imaging.Blur(img.Img, sigma), img.Path), nil
}

func setBrightness(c *Context, args Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	pct, ok := args.Float(0)
	if !ok {
		return nil, errors.New("setbrightness needs a percentage")
	}
	return push(c, imaging.AdjustBrightness(img.Img, pct), img.Path), nil
}

func paste(c *Context, args Args) (value.Value, error) {
	top, bg, err := topTwo(c)
	if err != nil {
		return nil, err
	}
	x, _ := args.Int(0)
	y, _ := args.Int(1)
	return push(c, imaging.Paste(bg.Img, top.Img, image.Pt(x, y)), bg.Path), nil
}

func pasteRandom(c *Context, _ Args) (value.Value, error) {
	top, bg, err := topTwo(c)
	if err != nil {
		return nil, err
	}
	span := bg.Bounds().Size().Sub(top.Bounds().Size())
	var x, y int
	if c.Rand != nil {
		if span.X > 0 {
			x = c.Rand.Intn(span.X + 1)
		}
		if span.Y > 0 {
			y = c.Rand.Intn(span.Y + 1)
		}
	}
	return push(c, imaging.Paste(bg.Img, top.Img, image.Pt(x, y)), bg.Path), nil
}

func topTwo(c *Context) (top, below *value.Image, err error) {
	top, ok := c.State.Image(0)
	if !ok {
		return nil, nil, fault.Missing("No image has been loaded.")
	}
	below, ok = c.State.Image(1)
	if !ok {
		return nil, nil, fault.Missing("Two images are needed; only one has been loaded.")
	}
	return top, below, nil
}

func cutout(c *Context, args Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	dets, err := currentDetections(c)
	if err != nil {
		return nil, err
	}
	i, _ := args.Int(0)
	if i < 0 || i >= len(dets.Items) {
		return nil, fault.Missing("Detection %d does not exist (%d available).", i, len(dets.Items))
	}
	return push(c, imaging.Crop(img.Img, dets.Items[i].Box), img.Path), nil
}

func replace(c *Context, args Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	dets, err := currentDetections(c)
	if err != nil {
		return nil, err
	}
	name, _ := args.String(0)
	col, err := parseColour(name)
	if err != nil {
		// Reported and skipped; the session carries on.
		fmt.Fprintln(c.out(), err)
		return nil, nil
	}
	dst := imaging.Clone(img.Img)
	fill := image.NewUniform(col)
	for _, d := range dets.Items {
		draw.Draw(dst, d.Box, fill, image.Point{}, draw.Src)
	}
	push(c, dst, img.Path)
	return nil, nil
}

func parseColour(name string) (color.Color, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", ""))
	if col, ok := colornames.Map[key]; ok {
		return col, nil
	}
	if strings.HasPrefix(key, "#") && len(key) == 7 {
		if n, err := strconv.ParseUint(key[1:], 16, 32); err == nil {
			return color.RGBA{uint8(n >> 16), uint8(n >> 8), uint8(n), 0xff}, nil
		}
	}
	return nil, fmt.Errorf("Color %q not found.", name)
}

type bucket struct {
	key     uint16
	n       int
	r, g, b int
}

func getColours(c *Context, args Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	k, ok := args.Int(0)
	if !ok || k < 1 {
		k = 1
	}
	names := dominantColours(img.Img, k)
	items := make([]value.Value, len(names))
	for i, n := range names {
		items[i] = value.NewString(n)
	}
	return value.NewList(items), nil
}

// dominantColours buckets pixels into a 16-level cube per channel and
// names the k most populated buckets.
func dominantColours(img image.Image, k int) []string {
	b := img.Bounds()
	step := 1
	for (b.Dx()/step)*(b.Dy()/step) > 256*256 {
		step++
	}
	buckets := make(map[uint16]*bucket)
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A < 128 {
				continue
			}
			key := uint16(c.R>>4)<<8 | uint16(c.G>>4)<<4 | uint16(c.B>>4)
			bk := buckets[key]
			if bk == nil {
				bk = &bucket{key: key}
				buckets[key] = bk
			}
			bk.n++
			bk.r += int(c.R)
			bk.g += int(c.G)
			bk.b += int(c.B)
		}
	}
	sorted := make([]*bucket, 0, len(buckets))
	for _, bk := range buckets {
		sorted = append(sorted, bk)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].n != sorted[j].n {
			return sorted[i].n > sorted[j].n
		}
		return sorted[i].key < sorted[j].key
	})

	var out []string
	seen := make(map[string]bool)
	for _, bk := range sorted {
		if len(out) == k {
			break
		}
		name := nearestColourName(color.RGBA{uint8(bk.r / bk.n), uint8(bk.g / bk.n), uint8(bk.b / bk.n), 0xff})
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func nearestColourName(c color.RGBA) string {
	best, bestDist := "", -1
	for _, name := range colornames.Names {
		n := colornames.Map[name]
		dr, dg, db := int(c.R)-int(n.R), int(c.G)-int(n.G), int(c.B)-int(n.B)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = name, d
		}
	}
	return best
}
