package ops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/visionscript/vscript/pkg/value"
)

// Display receives images from Show[].
type Display interface {
	Show(img *value.Image) error
}

// DirDisplay writes each shown image as a numbered PNG under Dir and
// prints its path.
type DirDisplay struct {
	Dir string
	Out io.Writer
	n   int
}

func (d *DirDisplay) Show(img *value.Image) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return err
	}
	d.n++
	path := filepath.Join(d.Dir, fmt.Sprintf("show-%03d.png", d.n))
	if err := imaging.Save(img.Img, path); err != nil {
		return err
	}
	if d.Out != nil {
		fmt.Fprintln(d.Out, path)
	}
	return nil
}
