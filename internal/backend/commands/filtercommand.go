package commands

import (
	"image"
	"image/color"
	"log/slog"
	"math"
	"sort"

	"github.com/jo-hoe/gophotobooth/internal/backend/commandstructure"
)

// rgbAdjust maps normalized (0..1) RGB to new normalized RGB
type rgbAdjust func(r, g, b float64) (float64, float64, float64)

func brightness(amount float64) rgbAdjust {
	return func(r, g, b float64) (float64, float64, float64) {
		return r * amount, g * amount, b * amount
	}
}

func contrast(amount float64) rgbAdjust {
	return func(r, g, b float64) (float64, float64, float64) {
		return (r-0.5)*amount + 0.5, (g-0.5)*amount + 0.5, (b-0.5)*amount + 0.5
	}
}

// saturate uses the same luminance weights as the CSS filter of the same name
func saturate(s float64) rgbAdjust {
	return func(r, g, b float64) (float64, float64, float64) {
		return (0.213+0.787*s)*r + (0.715-0.715*s)*g + (0.072-0.072*s)*b,
			(0.213-0.213*s)*r + (0.715+0.285*s)*g + (0.072-0.072*s)*b,
			(0.213-0.213*s)*r + (0.715-0.715*s)*g + (0.072+0.928*s)*b
	}
}

func sepia() rgbAdjust {
	return func(r, g, b float64) (float64, float64, float64) {
		return 0.393*r + 0.769*g + 0.189*b,
			0.349*r + 0.686*g + 0.168*b,
			0.272*r + 0.534*g + 0.131*b
	}
}

func grayscale() rgbAdjust {
	return func(r, g, b float64) (float64, float64, float64) {
		l := 0.2126*r + 0.7152*g + 0.0722*b
		return l, l, l
	}
}

// photoFilters lists the filters offered on the kiosk edit screen.
// Each chain is applied left to right, mirroring CSS filter order.
var photoFilters = map[string][]rgbAdjust{
	"none":      nil,
	"sepia":     {sepia()},
	"grayscale": {grayscale()},
	"vintage":   {brightness(0.9), contrast(1.1), saturate(0.85)},
	"fade":      {brightness(1.1), contrast(0.9), saturate(0.75)},
}

// FilterNames returns the supported filter names in sorted order
func FilterNames() []string {
	names := make([]string, 0, len(photoFilters))
	for name := range photoFilters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FilterCommand applies one of the named color filters
type FilterCommand struct {
	name   string
	filter string
	chain  []rgbAdjust
}

// NewFilterCommand creates a filter command; the "filter" param defaults to none
func NewFilterCommand(params map[string]any) (commandstructure.Command, error) {
	filter, err := commandstructure.GetEnumParam(params, "filter", "none", photoFilters)
	if err != nil {
		return nil, err
	}
	return &FilterCommand{
		name:   "FilterCommand",
		filter: filter,
		chain:  photoFilters[filter],
	}, nil
}

// Name returns the command name
func (c *FilterCommand) Name() string {
	return c.name
}

// Execute applies the filter chain to every pixel; alpha is preserved
func (c *FilterCommand) Execute(imageData []byte) ([]byte, error) {
	if len(c.chain) == 0 {
		return imageData, nil
	}

	img, err := decodePNG(imageData)
	if err != nil {
		slog.Error("FilterCommand: failed to decode PNG image", "filter", c.filter, "error", err)
		return nil, err
	}

	src := toRGBA(img)
	out := image.NewNRGBA(src.Bounds())
	width := src.Bounds().Dx()

	parallelFor(src.Bounds().Dy(), func(y int) {
		for x := 0; x < width; x++ {
			p := color.NRGBAModel.Convert(src.RGBAAt(x, y)).(color.NRGBA)
			r := float64(p.R) / 255
			g := float64(p.G) / 255
			b := float64(p.B) / 255
			for _, adjust := range c.chain {
				r, g, b = adjust(r, g, b)
			}
			out.SetNRGBA(x, y, color.NRGBA{R: unit8(r), G: unit8(g), B: unit8(b), A: p.A})
		}
	})

	slog.Debug("FilterCommand: filter applied", "filter", c.filter, "width", width, "height", src.Bounds().Dy())

	return encodePNG(out)
}

// Filter returns the configured filter name
func (c *FilterCommand) Filter() string {
	return c.filter
}

// unit8 converts a normalized channel value to a clamped byte
func unit8(v float64) uint8 {
	return uint8(clamp8(int(math.Round(v * 255))))
}

func init() {
	commandstructure.DefaultRegistry.MustRegister("FilterCommand", NewFilterCommand)
}
