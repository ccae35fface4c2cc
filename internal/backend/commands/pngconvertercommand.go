package commands

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	"github.com/jo-hoe/gophotobooth/internal/backend/commandstructure"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// hasCorrectPngSignature checks whether the provided data begins with a valid PNG signature
func hasCorrectPngSignature(data []byte) bool {
	return len(data) >= len(pngSignature) && bytes.Equal(data[:len(pngSignature)], pngSignature)
}

// PngConverterCommand normalizes captures to PNG. Webcam snapshots usually arrive as
// JPEG or WebP; uploaded venue artwork may be SVG.
type PngConverterCommand struct {
	name         string
	svgWidth     int
	svgHeight    int
	maxDimension int
}

// NewPngConverterCommand creates a new PNG converter command
func NewPngConverterCommand(params map[string]any) (commandstructure.Command, error) {
	w := commandstructure.GetIntParam(params, "svgWidth", 0)
	h := commandstructure.GetIntParam(params, "svgHeight", 0)
	if (w > 0) != (h > 0) {
		return nil, fmt.Errorf("svgWidth and svgHeight must be set together")
	}
	maxDimension := commandstructure.GetIntParam(params, "maxDimension", 8192)
	if maxDimension <= 0 {
		return nil, fmt.Errorf("maxDimension must be positive, got %d", maxDimension)
	}

	return &PngConverterCommand{
		name:         "PngConverterCommand",
		svgWidth:     w,
		svgHeight:    h,
		maxDimension: maxDimension,
	}, nil
}

// Name returns the command name
func (c *PngConverterCommand) Name() string {
	return c.name
}

func (c *PngConverterCommand) Execute(imageData []byte) ([]byte, error) {
	if hasCorrectPngSignature(imageData) {
		return imageData, nil
	}

	if isSVGData(imageData) {
		return c.convertSVG(imageData)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		slog.Error("PngConverterCommand: failed to read image header", "error", err)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width > c.maxDimension || cfg.Height > c.maxDimension {
		return nil, fmt.Errorf("image %dx%d exceeds max dimension %d", cfg.Width, cfg.Height, c.maxDimension)
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		slog.Error("PngConverterCommand: failed to decode image", "format", format, "error", err)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	slog.Debug("PngConverterCommand: decoded raster image",
		"format", format,
		"width", cfg.Width,
		"height", cfg.Height)

	return encodePNG(img)
}

func (c *PngConverterCommand) convertSVG(imageData []byte) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}

	w, h := c.svgWidth, c.svgHeight
	if w <= 0 || h <= 0 {
		w, h = int(icon.ViewBox.W), int(icon.ViewBox.H)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("SVG has no usable size; set svgWidth and svgHeight")
	}
	if w > c.maxDimension || h > c.maxDimension {
		return nil, fmt.Errorf("SVG render size %dx%d exceeds max dimension %d", w, h, c.maxDimension)
	}

	slog.Debug("PngConverterCommand: rendering SVG", "width", w, "height", h)

	icon.SetTarget(0, 0, float64(w), float64(h))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)

	return encodePNG(dst)
}

// isSVGData checks the first 4KB for an svg tag or namespace
func isSVGData(data []byte) bool {
	n := len(data)
	if n == 0 {
		return false
	}
	if n > 4096 {
		n = 4096
	}
	header := bytes.ToLower(data[:n])
	return bytes.Contains(header, []byte("<svg")) ||
		bytes.Contains(header, []byte("http://www.w3.org/2000/svg"))
}

func init() {
	commandstructure.DefaultRegistry.MustRegister("PngConverterCommand", NewPngConverterCommand)
}
