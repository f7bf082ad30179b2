package ops

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/visionscript/vscript/pkg/alias"
	"github.com/visionscript/vscript/pkg/fault"
	helpdocs "github.com/visionscript/vscript/pkg/help"
	"github.com/visionscript/vscript/pkg/value"
)

func currentDetections(c *Context) (value.Detections, error) {
	d, ok := c.State.CurrentDetections()
	if !ok {
		return value.Detections{}, fault.Missing("No detections available. Run Detect[] or Segment[] first.")
	}
	return d, nil
}

func count(c *Context, args Args) (value.Value, error) {
	d, err := currentDetections(c)
	if err != nil {
		return nil, err
	}
	return value.NewInt(int64(len(d.Filter(args.Strings()...).Items))), nil
}

func countInRegion(c *Context, args Args) (value.Value, error) {
	d, err := currentDetections(c)
	if err != nil {
		return nil, err
	}
	r, err := args.requireInts("countinregion", 4)
	if err != nil {
		return nil, err
	}
	region := image.Rect(r[0], r[1], r[2], r[3])
	n := 0
	for _, det := range d.Items {
		if det.Center().In(region) {
			n++
		}
	}
	return value.NewInt(int64(n)), nil
}

func selectDetection(c *Context, args Args) (value.Value, error) {
	d, err := currentDetections(c)
	if err != nil {
		return nil, err
	}
	var out value.Detections
	if i, ok := args.Int(0); ok {
		if i < 0 || i >= len(d.Items) {
			return nil, fault.Missing("Detection %d does not exist (%d available).", i, len(d.Items))
		}
		out = value.Detections{Items: []value.Detection{d.Items[i]}}
	} else {
		out = d.Filter(args.Strings()...)
	}
	c.State.PushDetections(out)
	return out, nil
}

// contains checks a string for a substring, or the current detections for
// a class. Contains[haystack, needle] checks haystack instead of last.
func contains(c *Context, args Args) (value.Value, error) {
	if len(args) >= 2 {
		hay, ok1 := args.String(0)
		needle, ok2 := args.String(1)
		if ok1 && ok2 {
			return value.NewBool(strings.Contains(strings.ToLower(hay), strings.ToLower(needle))), nil
		}
	}
	needle, err := args.requireString("contains", 0, "word to look for")
	if err != nil {
		return nil, err
	}
	if s, ok := c.State.Last.(value.String); ok {
		return value.NewBool(strings.Contains(strings.ToLower(s.Value), strings.ToLower(needle))), nil
	}
	d, err := currentDetections(c)
	if err != nil {
		return nil, err
	}
	return value.NewBool(len(d.Filter(needle).Items) > 0), nil
}

// read prints its arguments, or when called bare, the last result in the
// form suited to the operation that produced it.
func read(c *Context, args Args) (value.Value, error) {
	w := c.out()
	if len(args) > 0 {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = value.Format(a)
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
		return nil, nil
	}
	last := c.State.Last
	if last == nil {
		return nil, fault.Missing("Nothing to read.")
	}
	if d, ok := last.(value.Detections); ok && producesDetections[c.State.LastFunctionType] {
		if len(d.Items) == 0 {
			fmt.Fprintln(w, "No objects found.")
		}
		for _, det := range d.Items {
			b := det.Box
			fmt.Fprintf(w, "%s %.2f (%d, %d, %d, %d)\n", det.Class, det.Confidence, b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
		}
		return nil, nil
	}
	switch c.State.LastFunctionType {
	case "count", "countinregion":
		fmt.Fprintf(w, "%s objects\n", value.Format(last))
	case "getcolours":
		if l, ok := last.(value.List); ok {
			for _, it := range l.Items {
				fmt.Fprintln(w, value.Format(it))
			}
			return nil, nil
		}
		fmt.Fprintln(w, value.Format(last))
	default:
		fmt.Fprintln(w, value.Format(last))
	}
	return nil, nil
}

func reset(c *Context, _ Args) (value.Value, error) {
	return nil, c.State.Reset()
}

func help(c *Context, args Args) (value.Value, error) {
	w := c.out()
	name, ok := args.String(0)
	if !ok {
		fmt.Fprint(w, helpdocs.OperationIndex())
		return nil, nil
	}
	doc, found := helpdocs.Operation(alias.Resolve(strings.ToLower(name)))
	if !found {
		fmt.Fprintf(w, "No help for %s.\n", name)
		return nil, nil
	}
	fmt.Fprint(w, doc)
	return nil, nil
}

func exit(*Context, Args) (value.Value, error) {
	return nil, ErrExit
}

func importFile(c *Context, args Args) (value.Value, error) {
	path, err := args.requireString("import", 0, "file path")
	if err != nil {
		return nil, err
	}
	if c.Import == nil {
		return nil, errors.New("import is not available in this session")
	}
	return nil, c.Import(path)
}
