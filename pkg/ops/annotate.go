package ops

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/visionscript/vscript/pkg/value"
)

var boxColour = color.RGBA{0xff, 0x30, 0x30, 0xff}

// producesDetections lists the operations whose result is drawn on the
// image by Save[] and Show[].
var producesDetections = map[string]bool{
	"detect":  true,
	"segment": true,
	"select":  true,
}

// annotated returns img with the current detections drawn on it when the
// previous operation produced detections, and img unchanged otherwise.
func annotated(c *Context, img image.Image) image.Image {
	if !producesDetections[c.State.LastFunctionType] {
		return img
	}
	dets, ok := c.State.CurrentDetections()
	if !ok || len(dets.Items) == 0 {
		return img
	}
	return drawDetections(img, dets)
}

func drawDetections(img image.Image, dets value.Detections) image.Image {
	dst := imaging.Clone(img)
	src := image.NewUniform(boxColour)
	const w = 2
	for _, d := range dets.Items {
		r := d.Box.Intersect(dst.Bounds())
		if r.Empty() {
			continue
		}
		edges := []image.Rectangle{
			image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w),
			image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y),
			image.Rect(r.Min.X, r.Min.Y, r.Min.X+w, r.Max.Y),
			image.Rect(r.Max.X-w, r.Min.Y, r.Max.X, r.Max.Y),
		}
		for _, e := range edges {
			draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
		}
		drawer := font.Drawer{
			Dst:  dst,
			Src:  src,
			Face: basicfont.Face7x13,
			Dot:  fixed.P(r.Min.X+w+1, r.Min.Y+w+basicfont.Face7x13.Ascent),
		}
		drawer.DrawString(d.Class)
	}
	return dst
}
