package commands

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/gophotobooth/internal/backend/commandstructure"
	xdraw "golang.org/x/image/draw"
)

// PixelScaleParams describes the target box. A missing side follows the
// source aspect ratio.
type PixelScaleParams struct {
	Height        *int
	Width         *int
	Interpolation string
	// MultipleOf rounds the final width down, e.g. 8 for byte-aligned raster rows.
	MultipleOf int
	// NoUpscale keeps images that already fit the box at their size.
	NoUpscale bool
}

var interpolators = map[string]xdraw.Interpolator{
	"nearest":    xdraw.NearestNeighbor,
	"bilinear":   xdraw.BiLinear,
	"catmullrom": xdraw.CatmullRom,
}

func positiveParam(params map[string]any, key string) (*int, error) {
	if _, ok := params[key]; !ok {
		return nil, nil
	}
	v := commandstructure.GetIntParam(params, key, 0)
	if v <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %d", key, v)
	}
	return &v, nil
}

// NewPixelScaleParamsFromMap reads width, height, interpolation, multipleOf
// and noUpscale. At least one of width or height is required.
func NewPixelScaleParamsFromMap(params map[string]any) (*PixelScaleParams, error) {
	width, err := positiveParam(params, "width")
	if err != nil {
		return nil, err
	}
	height, err := positiveParam(params, "height")
	if err != nil {
		return nil, err
	}
	if width == nil && height == nil {
		return nil, fmt.Errorf("at least one of 'height' or 'width' must be specified")
	}
	interpolation, err := commandstructure.GetEnumParam(params, "interpolation", "nearest", interpolators)
	if err != nil {
		return nil, err
	}
	multipleOf := commandstructure.GetIntParam(params, "multipleOf", 1)
	if multipleOf <= 0 {
		return nil, fmt.Errorf("multipleOf must be positive, got %d", multipleOf)
	}

	return &PixelScaleParams{
		Width:         width,
		Height:        height,
		Interpolation: interpolation,
		MultipleOf:    multipleOf,
		NoUpscale:     commandstructure.GetBoolParam(params, "noUpscale", false),
	}, nil
}

// targetSize returns the output size for a w×h source.
func (p *PixelScaleParams) targetSize(w, h int) (int, int) {
	tw, th := w, h
	switch {
	case p.Width != nil && p.Height != nil:
		tw, th = *p.Width, *p.Height
	case p.Width != nil:
		tw = *p.Width
		th = int(float64(h) * float64(tw) / float64(w))
	default:
		th = *p.Height
		tw = int(float64(w) * float64(th) / float64(h))
	}
	if p.NoUpscale && tw >= w && th >= h {
		tw, th = w, h
	}
	if p.MultipleOf > 1 && tw >= p.MultipleOf {
		tw -= tw % p.MultipleOf
	}
	return tw, th
}

// PixelScaleCommand fits photos to the print head width or to thumbnail size
type PixelScaleCommand struct {
	name   string
	params *PixelScaleParams
}

func NewPixelScaleCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewPixelScaleParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &PixelScaleCommand{
		name:   "PixelScaleCommand",
		params: typedParams,
	}, nil
}

func (c *PixelScaleCommand) Name() string {
	return c.name
}

func (c *PixelScaleCommand) Execute(imageData []byte) ([]byte, error) {
	img, err := decodePNG(imageData)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	tw, th := c.params.targetSize(bounds.Dx(), bounds.Dy())
	if tw <= 0 || th <= 0 {
		return nil, fmt.Errorf("computed target size %dx%d is not positive", tw, th)
	}
	if tw == bounds.Dx() && th == bounds.Dy() {
		slog.Debug("PixelScaleCommand: size unchanged", "width", tw, "height", th)
		return imageData, nil
	}

	slog.Debug("PixelScaleCommand: scaling",
		"from_width", bounds.Dx(),
		"from_height", bounds.Dy(),
		"to_width", tw,
		"to_height", th,
		"interpolation", c.params.Interpolation)

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	interpolators[c.params.Interpolation].Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	return encodePNG(dst)
}

func (c *PixelScaleCommand) GetParams() *PixelScaleParams {
	return c.params
}

func init() {
	commandstructure.DefaultRegistry.MustRegister("PixelScaleCommand", NewPixelScaleCommand)
}
