package commands

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"sort"

	"github.com/jo-hoe/gophotobooth/internal/backend/commandstructure"
)

const defaultFrameWidth = 15

// photoFrames maps frame names to their border color
var photoFrames = map[string]color.RGBA{
	"classic": {R: 255, G: 255, B: 255, A: 255},
	"black":   {R: 0, G: 0, B: 0, A: 255},
	"pink":    {R: 0xf9, G: 0xa8, B: 0xd4, A: 255},
	"blue":    {R: 0x93, G: 0xc5, B: 0xfd, A: 255},
}

// FrameNames returns the supported frame names, including "none"
func FrameNames() []string {
	names := []string{"none"}
	for name := range photoFrames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FrameCommand surrounds the photo with a solid border, growing the canvas
type FrameCommand struct {
	name   string
	frame  string
	width  int
	border color.RGBA
}

// NewFrameCommand creates a frame command from the "frame" and optional "width" params
func NewFrameCommand(params map[string]any) (commandstructure.Command, error) {
	frame := commandstructure.GetStringParam(params, "frame", "none")
	if frame == "" {
		frame = "none"
	}
	width := commandstructure.GetIntParam(params, "width", defaultFrameWidth)
	if width <= 0 {
		return nil, fmt.Errorf("frame width must be positive, got %d", width)
	}

	c := &FrameCommand{
		name:  "FrameCommand",
		frame: frame,
		width: width,
	}
	if frame != "none" {
		border, ok := photoFrames[frame]
		if !ok {
			return nil, fmt.Errorf("unknown frame: %s (supported: %v)", frame, FrameNames())
		}
		c.border = border
	}
	return c, nil
}

// Name returns the command name
func (c *FrameCommand) Name() string {
	return c.name
}

// Execute draws the photo inset by the frame width on a canvas filled with the border color
func (c *FrameCommand) Execute(imageData []byte) ([]byte, error) {
	if c.frame == "none" {
		return imageData, nil
	}

	img, err := decodePNG(imageData)
	if err != nil {
		slog.Error("FrameCommand: failed to decode PNG image", "frame", c.frame, "error", err)
		return nil, err
	}

	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx()+2*c.width, b.Dy()+2*c.width))
	draw.Draw(out, out.Bounds(), &image.Uniform{C: c.border}, image.Point{}, draw.Src)
	inner := image.Rect(c.width, c.width, c.width+b.Dx(), c.width+b.Dy())
	draw.Draw(out, inner, img, b.Min, draw.Over)

	slog.Debug("FrameCommand: frame applied", "frame", c.frame, "border_px", c.width)

	return encodePNG(out)
}

func init() {
	commandstructure.DefaultRegistry.MustRegister("FrameCommand", NewFrameCommand)
}
