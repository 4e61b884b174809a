package backend

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ParseMatte parses a hex colour ("#fff" or "#ffffff") into an opaque
// colour suitable for flattening transparent images.
func ParseMatte(hex string) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("parse matte colour %q: %w", hex, err)
	}
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// Opaque reports whether every pixel of img is fully opaque. Images that
// cannot say are treated as possibly transparent.
func Opaque(img image.Image) bool {
	o, ok := img.(interface{ Opaque() bool })
	return ok && o.Opaque()
}

// Flatten composites img over a solid matte, producing an opaque image with
// the same bounds. Opaque inputs are returned unchanged.
func Flatten(img image.Image, matte color.Color) image.Image {
	if Opaque(img) {
		return img
	}
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, image.NewUniform(matte), image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}
