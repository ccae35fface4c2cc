package commands

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jo-hoe/gophotobooth/internal/backend/commandstructure"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const captionPadding = 8

// CaptionCommand overlays a half-transparent bar with white text along the bottom edge
type CaptionCommand struct {
	name     string
	text     string
	fontSize float64
}

// NewCaptionCommand creates a caption command; fontSize 0 derives the size from the image height
func NewCaptionCommand(params map[string]any) (commandstructure.Command, error) {
	text := strings.TrimSpace(commandstructure.GetStringParam(params, "text", ""))
	fontSize := commandstructure.GetFloatParam(params, "fontSize", 0)
	if fontSize < 0 {
		return nil, fmt.Errorf("fontSize must not be negative, got %f", fontSize)
	}
	return &CaptionCommand{
		name:     "CaptionCommand",
		text:     text,
		fontSize: fontSize,
	}, nil
}

// Name returns the command name
func (c *CaptionCommand) Name() string {
	return c.name
}

func (c *CaptionCommand) Execute(imageData []byte) ([]byte, error) {
	if c.text == "" {
		return imageData, nil
	}

	img, err := decodePNG(imageData)
	if err != nil {
		slog.Error("CaptionCommand: failed to decode PNG image", "error", err)
		return nil, err
	}
	rgba := toRGBA(img)
	bounds := rgba.Bounds()

	size := c.fontSize
	if size == 0 {
		size = float64(bounds.Dy()) / 18
		if size < 12 {
			size = 12
		}
	}
	face, err := loadCaptionFace(size)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = face.Close()
	}()

	metrics := face.Metrics()
	barHeight := metrics.Height.Ceil() + 2*captionPadding
	if barHeight > bounds.Dy() {
		barHeight = bounds.Dy()
	}
	bar := image.Rect(0, bounds.Dy()-barHeight, bounds.Dx(), bounds.Dy())
	draw.Draw(rgba, bar, &image.Uniform{C: color.RGBA{0, 0, 0, 128}}, image.Point{}, draw.Over)

	drawer := &font.Drawer{
		Dst:  rgba,
		Src:  image.NewUniform(color.White),
		Face: face,
	}
	label := fitText(drawer, c.text, bounds.Dx()-2*captionPadding)
	textWidth := drawer.MeasureString(label).Round()
	x := (bounds.Dx() - textWidth) / 2
	if x < captionPadding {
		x = captionPadding
	}
	drawer.Dot = fixed.Point26_6{
		X: fixed.I(x),
		Y: fixed.I(bar.Min.Y+captionPadding) + metrics.Ascent,
	}
	drawer.DrawString(label)

	slog.Debug("CaptionCommand: caption drawn", "chars", utf8.RuneCountInString(label), "font_size", size)

	return encodePNG(rgba)
}

// fitText shortens text with an ellipsis until it fits into maxWidth pixels
func fitText(drawer *font.Drawer, text string, maxWidth int) string {
	if drawer.MeasureString(text).Round() <= maxWidth {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := strings.TrimSpace(string(runes)) + "…"
		if drawer.MeasureString(candidate).Round() <= maxWidth {
			return candidate
		}
	}
	return ""
}

func loadCaptionFace(size float64) (font.Face, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse caption font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create caption font face: %w", err)
	}
	return face, nil
}

func init() {
	commandstructure.DefaultRegistry.MustRegister("CaptionCommand", NewCaptionCommand)
}
