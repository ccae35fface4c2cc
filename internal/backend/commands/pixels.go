package commands

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

func clamp8(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// compositeOverWhite returns 8-bit RGB of c blended onto an opaque white background
func compositeOverWhite(c color.Color) (int, int, int) {
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	a := int(nc.A)
	r := clamp8((int(nc.R)*a + 255*(255-a) + 127) / 255)
	g := clamp8((int(nc.G)*a + 255*(255-a) + 127) / 255)
	b := clamp8((int(nc.B)*a + 255*(255-a) + 127) / 255)
	return r, g, b
}

// toRGBA copies img into a fresh RGBA canvas anchored at the origin
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func decodePNG(imageData []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG image: %w", err)
	}
	return img, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG image: %w", err)
	}
	return buf.Bytes(), nil
}
