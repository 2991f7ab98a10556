package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
)

const maxImageSide = 200.0

// preparedImage is an archetype image re-encoded as opaque 8-bit PNG, the
// one flavour every backend embeds without surprises.
type preparedImage struct {
	PNG    []byte
	Width  int
	Height int
}

// fit scales the image into a maxImageSide square, never enlarging it.
func (p *preparedImage) fit() (w, h float64) {
	iw, ih := float64(p.Width), float64(p.Height)
	ratio := min(maxImageSide/iw, maxImageSide/ih, 1)
	return iw * ratio, ih * ratio
}

func loadImage(path string) (*preparedImage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ImageDrawError{Path: path, Err: err}
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &ImageDrawError{Path: path, Err: err}
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, &ImageDrawError{Path: path, Err: image.ErrFormat}
	}

	flat := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(flat, flat.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), src, b.Min, draw.Over)

	var out bytes.Buffer
	if err := png.Encode(&out, flat); err != nil {
		return nil, &ImageDrawError{Path: path, Err: err}
	}
	return &preparedImage{PNG: out.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}
