package ops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/visionscript/vscript/pkg/fault"
	"github.com/visionscript/vscript/pkg/searchindex"
	"github.com/visionscript/vscript/pkg/value"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

// ListImages returns the image files directly inside dir, sorted by name.
// Hidden files are skipped.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fault.Missing("Folder %s does not exist.", dir)
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !imageExts[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

func detect(c *Context, args Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	items, err := c.backend().Detect(c.ctx(), img.Img, c.State.ActiveModel, args.Strings())
	if err != nil {
		return nil, err
	}
	d := value.Detections{Items: items}
	c.State.PushDetections(d)
	return d, nil
}

func segment(c *Context, args Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	items, err := c.backend().Segment(c.ctx(), img.Img, c.State.ActiveModel, args.Strings())
	if err != nil {
		return nil, err
	}
	d := value.Detections{Items: items}
	c.State.PushDetections(d)
	return d, nil
}

func classify(c *Context, args Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	labels := args.Strings()
	if len(labels) == 0 {
		return nil, errors.New("classify needs at least one label")
	}
	s, err := c.backend().Classify(c.ctx(), img.Img, labels)
	if err != nil {
		return nil, err
	}
	return value.NewString(s), nil
}

func caption(c *Context, _ Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	s, err := c.backend().Caption(c.ctx(), img.Img)
	if err != nil {
		return nil, err
	}
	return value.NewString(s), nil
}

func getText(c *Context, _ Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	s, err := c.backend().ReadText(c.ctx(), img.Img)
	if err != nil {
		return nil, err
	}
	return value.NewString(s), nil
}

func readQR(c *Context, _ Args) (value.Value, error) {
	img, err := currentImage(c)
	if err != nil {
		return nil, err
	}
	s, err := c.backend().ReadQR(c.ctx(), img.Img)
	if err != nil {
		return nil, err
	}
	return value.NewString(s), nil
}

func train(c *Context, args Args) (value.Value, error) {
	folder, err := args.requireString("train", 0, "folder")
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(folder); errors.Is(err, os.ErrNotExist) {
		return nil, fault.Missing("Folder %s does not exist.", folder)
	}
	model, _ := args.String(1)
	return nil, c.backend().Train(c.ctx(), folder, model)
}

func use(c *Context, args Args) (value.Value, error) {
	model, err := args.requireString("use", 0, "model name")
	if err != nil {
		return nil, err
	}
	c.State.ActiveModel = model
	return nil, nil
}

// label detects objects in every image of a folder and writes a YOLO
// label file beside each one. Class ids follow the order of the given
// classes, or the order of first appearance when none are given.
func label(c *Context, args Args) (value.Value, error) {
	folder, err := args.requireString("label", 0, "folder")
	if err != nil {
		return nil, err
	}
	classes := args[1:].Strings()
	ids := make(map[string]int, len(classes))
	for i, cl := range classes {
		ids[strings.ToLower(cl)] = i
	}
	files, err := ListImages(folder)
	if err != nil {
		return nil, err
	}
	n := 0
	for _, f := range files {
		img, err := imaging.Open(f, imaging.AutoOrientation(true))
		if err != nil {
			return nil, err
		}
		dets, err := c.backend().Detect(c.ctx(), img, c.State.ActiveModel, classes)
		if err != nil {
			return nil, err
		}
		size := img.Bounds().Size()
		var b strings.Builder
		for _, d := range dets {
			key := strings.ToLower(d.Class)
			id, ok := ids[key]
			if !ok {
				if len(classes) > 0 {
					continue
				}
				id = len(ids)
				ids[key] = id
			}
			cx := float64(d.Box.Min.X+d.Box.Max.X) / 2 / float64(size.X)
			cy := float64(d.Box.Min.Y+d.Box.Max.Y) / 2 / float64(size.Y)
			w := float64(d.Box.Dx()) / float64(size.X)
			h := float64(d.Box.Dy()) / float64(size.Y)
			fmt.Fprintf(&b, "%d %.6f %.6f %.6f %.6f\n", id, cx, cy, w, h)
		}
		out := strings.TrimSuffix(f, filepath.Ext(f)) + ".txt"
		if err := os.WriteFile(out, []byte(b.String()), 0o644); err != nil {
			return nil, err
		}
		n++
	}
	return value.NewInt(int64(n)), nil
}

// search embeds every image on the stack into the current search index,
// creating the index on first use, and returns the path of the image that
// best matches the query text.
func search(c *Context, args Args) (value.Value, error) {
	query, err := args.requireString("search", 0, "query")
	if err != nil {
		return nil, err
	}
	images := c.State.Images()
	if len(images) == 0 {
		return nil, fault.Missing("No image has been loaded.")
	}
	idx, ok := c.State.CurrentSearchIndex()
	if !ok {
		idx, err = searchindex.Open(c.ctx(), c.IndexDSN)
		if err != nil {
			return nil, err
		}
		c.State.PushSearchIndex(idx)
	}
	indexed, err := idx.Len(c.ctx())
	if err != nil {
		return nil, err
	}
	for i := indexed; i < len(images); i++ {
		emb, err := c.backend().EmbedImage(c.ctx(), images[i].Img)
		if err != nil {
			return nil, err
		}
		path := images[i].Path
		if path == "" {
			path = fmt.Sprintf("image-%d", i)
		}
		if err := idx.Add(c.ctx(), path, emb); err != nil {
			return nil, err
		}
	}
	q, err := c.backend().EmbedText(c.ctx(), query)
	if err != nil {
		return nil, err
	}
	matches, err := idx.Search(c.ctx(), q, 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fault.Missing("No images match %q.", query)
	}
	return value.NewString(matches[0].Path), nil
}

func similarity(c *Context, _ Args) (value.Value, error) {
	a, b, err := topTwo(c)
	if err != nil {
		return nil, err
	}
	ea, err := c.backend().EmbedImage(c.ctx(), a.Img)
	if err != nil {
		return nil, err
	}
	eb, err := c.backend().EmbedImage(c.ctx(), b.Img)
	if err != nil {
		return nil, err
	}
	return value.NewFloat(searchindex.Cosine(ea, eb)), nil
}
