package commands

import (
	"image"
	"log/slog"

	"github.com/jo-hoe/gophotobooth/internal/backend/commandstructure"
)

// OrientationParams control how a capture is turned before printing
type OrientationParams struct {
	Orientation      string
	RotateWhenSquare bool
	Clockwise        bool
	// Mirror flips the capture horizontally, undoing the selfie preview of a
	// front-facing camera.
	Mirror bool
}

var validOrientations = map[string]bool{
	"portrait":  true,
	"landscape": true,
}

func NewOrientationParamsFromMap(params map[string]any) (*OrientationParams, error) {
	orientation, err := commandstructure.GetEnumParam(params, "orientation", "portrait", validOrientations)
	if err != nil {
		return nil, err
	}
	return &OrientationParams{
		Orientation:      orientation,
		RotateWhenSquare: commandstructure.GetBoolParam(params, "rotateWhenSquare", false),
		Clockwise:        commandstructure.GetBoolParam(params, "clockwise", true),
		Mirror:           commandstructure.GetBoolParam(params, "mirror", false),
	}, nil
}

// needsRotation reports whether a w×h image is off the target orientation.
func (p *OrientationParams) needsRotation(w, h int) bool {
	if w == h {
		return p.RotateWhenSquare
	}
	return (h > w) != (p.Orientation == "portrait")
}

// OrientationCommand turns captures so their long side runs along the paper
// feed, optionally mirroring them.
type OrientationCommand struct {
	name   string
	params *OrientationParams
}

func NewOrientationCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewOrientationParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &OrientationCommand{
		name:   "OrientationCommand",
		params: typedParams,
	}, nil
}

func (c *OrientationCommand) Name() string {
	return c.name
}

func (c *OrientationCommand) Execute(imageData []byte) ([]byte, error) {
	img, err := decodePNG(imageData)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	rotate := c.params.needsRotation(b.Dx(), b.Dy())
	slog.Debug("OrientationCommand: analyzed capture",
		"width", b.Dx(),
		"height", b.Dy(),
		"target", c.params.Orientation,
		"rotate", rotate,
		"mirror", c.params.Mirror)

	if !rotate && !c.params.Mirror {
		return imageData, nil
	}
	return encodePNG(reorient(toRGBA(img), rotate, c.params.Clockwise, c.params.Mirror))
}

// reorient applies an optional horizontal mirror followed by an optional
// quarter turn. Rows of the source are split across goroutines; each source
// pixel lands in exactly one destination pixel.
func reorient(src *image.RGBA, rotate, clockwise, mirror bool) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dw, dh := w, h
	if rotate {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	parallelFor(h, func(y int) {
		for x := 0; x < w; x++ {
			sx := x
			if mirror {
				sx = w - 1 - x
			}
			dx, dy := x, y
			if rotate {
				if clockwise {
					dx, dy = h-1-y, x
				} else {
					dx, dy = y, w-1-x
				}
			}
			si := src.PixOffset(sx, y)
			di := dst.PixOffset(dx, dy)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	})
	return dst
}

func (c *OrientationCommand) GetParams() *OrientationParams {
	return c.params
}

func init() {
	commandstructure.DefaultRegistry.MustRegister("OrientationCommand", NewOrientationCommand)
}
