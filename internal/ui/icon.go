package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

var iconBytes = renderIcon(32)

// renderIcon draws a play triangle on a rounded dark tile.
func renderIcon(size int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	tile := color.NRGBA{R: 0x22, G: 0x2b, B: 0x3a, A: 0xff}
	play := color.NRGBA{R: 0xf5, G: 0xa6, B: 0x23, A: 0xff}

	r := size / 6
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if inRoundedRect(x, y, size, r) {
				img.SetNRGBA(x, y, tile)
			}
		}
	}

	// Triangle pointing right, inset by a quarter of the tile.
	left, top, bottom := size*3/8, size/4, size*3/4
	right := size * 3 / 4
	for y := top; y < bottom; y++ {
		half := float64(bottom-top) / 2
		dy := float64(y-top) - half
		if dy < 0 {
			dy = -dy
		}
		width := int(float64(right-left) * (1 - dy/half))
		for x := left; x < left+width; x++ {
			img.SetNRGBA(x, y, play)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func inRoundedRect(x, y, size, r int) bool {
	cx, cy := x, y
	switch {
	case x < r:
		cx = r
	case x >= size-r:
		cx = size - r - 1
	}
	switch {
	case y < r:
		cy = r
	case y >= size-r:
		cy = size - r - 1
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r*r
}
