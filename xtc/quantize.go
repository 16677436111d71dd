package xtc

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/tsawler/inkpage/model"
)

// Palette index equals the stored pixel value.
var (
	palette1 = color.Palette{color.Gray{Y: 0}, color.Gray{Y: 255}}
	palette2 = color.Palette{
		color.Gray{Y: 255},
		color.Gray{Y: 85},
		color.Gray{Y: 170},
		color.Gray{Y: 0},
	}
)

// FromImage quantizes img to a 1-bit or 2-bit page bitmap, optionally with
// Floyd-Steinberg dithering.
func FromImage(img image.Image, depth int, dither bool) *model.Bitmap {
	pal := palette1
	if depth == 2 {
		pal = palette2
	} else {
		depth = 1
	}

	r := img.Bounds()
	w, h := r.Dx(), r.Dy()
	p := image.NewPaletted(image.Rect(0, 0, w, h), pal)
	if dither {
		draw.FloydSteinberg.Draw(p, p.Bounds(), img, r.Min)
	} else {
		draw.Draw(p, p.Bounds(), img, r.Min, draw.Src)
	}

	bm := &model.Bitmap{Width: w, Height: h, Depth: depth, Data: make([]byte, BitmapSize(w, h, depth))}
	if depth == 1 {
		rowBytes := (w + 7) / 8
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if p.ColorIndexAt(x, y) == 1 {
					bm.Data[y*rowBytes+x/8] |= 1 << (7 - uint(x%8))
				}
			}
		}
		return bm
	}

	plane := bm.PlaneSize()
	colBytes := (h + 7) / 8
	for y := 0; y < h; y++ {
		mask := byte(1) << (7 - uint(y%8))
		for x := 0; x < w; x++ {
			v := p.ColorIndexAt(x, y)
			if v == 0 {
				continue
			}
			off := (w-1-x)*colBytes + y/8
			if v&2 != 0 {
				bm.Data[off] |= mask
			}
			if v&1 != 0 {
				bm.Data[plane+off] |= mask
			}
		}
	}
	return bm
}
