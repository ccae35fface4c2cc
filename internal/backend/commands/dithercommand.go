package commands

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jo-hoe/gophotobooth/internal/backend/commandstructure"
)

// diffusionTap spreads weight/divisor of the quantization error to (x+dx, y+dy)
type diffusionTap struct {
	dx, dy, weight int
}

type diffusionKernel struct {
	divisor int
	taps    []diffusionTap
}

// Atkinson drops a quarter of the error, which keeps highlights clean on
// thermal paper.
var ditherKernels = map[string]*diffusionKernel{
	"floyd-steinberg": {divisor: 16, taps: []diffusionTap{
		{1, 0, 7}, {-1, 1, 3}, {0, 1, 5}, {1, 1, 1},
	}},
	"atkinson": {divisor: 8, taps: []diffusionTap{
		{1, 0, 1}, {2, 0, 1}, {-1, 1, 1}, {0, 1, 1}, {1, 1, 1}, {0, 2, 1},
	}},
	"threshold": nil,
}

var thermalPalette = color.Palette{
	color.RGBA{0, 0, 0, 255},
	color.RGBA{255, 255, 255, 255},
}

// DitherParams configure how a photo is reduced to the printer's palette
type DitherParams struct {
	Method   string
	Palette  color.Palette
	Strength float64
}

// NewDitherParamsFromMap reads method, palette and strength. The palette
// accepts "#rrggbb" strings or [r, g, b] lists and defaults to black and white.
func NewDitherParamsFromMap(params map[string]any) (*DitherParams, error) {
	method, err := commandstructure.GetEnumParam(params, "method", "floyd-steinberg", ditherKernels)
	if err != nil {
		return nil, err
	}

	palette := thermalPalette
	if raw, ok := params["palette"]; ok {
		palette, err = parsePalette(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid palette: %w", err)
		}
	}

	strength := commandstructure.GetFloatParam(params, "strength", 1)
	if strength < 0 || strength > 1 {
		return nil, fmt.Errorf("strength must be between 0 and 1, got %g", strength)
	}

	return &DitherParams{Method: method, Palette: palette, Strength: strength}, nil
}

func parsePalette(raw any) (color.Palette, error) {
	entries, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("palette must be a list of colors")
	}
	if len(entries) == 0 || len(entries) > 256 {
		return nil, fmt.Errorf("palette must contain between 1 and 256 colors, got %d", len(entries))
	}
	palette := make(color.Palette, 0, len(entries))
	for i, entry := range entries {
		c, err := parsePaletteColor(entry)
		if err != nil {
			return nil, fmt.Errorf("color %d: %w", i, err)
		}
		palette = append(palette, c)
	}
	return palette, nil
}

func parsePaletteColor(entry any) (color.RGBA, error) {
	switch v := entry.(type) {
	case string:
		hex := strings.TrimPrefix(strings.TrimSpace(v), "#")
		if len(hex) != 6 {
			return color.RGBA{}, fmt.Errorf("%q is not a #rrggbb color", v)
		}
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("%q is not a #rrggbb color", v)
		}
		return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 255}, nil
	case []any:
		if len(v) != 3 {
			return color.RGBA{}, fmt.Errorf("must have exactly 3 values (RGB)")
		}
		var rgb [3]uint8
		for j, component := range v {
			var n int
			switch c := component.(type) {
			case int:
				n = c
			case float64:
				n = int(c)
			default:
				return color.RGBA{}, fmt.Errorf("component %d must be a number", j)
			}
			if n < 0 || n > 255 {
				return color.RGBA{}, fmt.Errorf("component %d must be 0-255, got %d", j, n)
			}
			rgb[j] = uint8(n)
		}
		return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, nil
	default:
		return color.RGBA{}, fmt.Errorf("must be a hex string or an RGB list")
	}
}

// DitherCommand maps a photo onto a small palette by error diffusion
type DitherCommand struct {
	name   string
	params *DitherParams
}

func NewDitherCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewDitherParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &DitherCommand{
		name:   "DitherCommand",
		params: typedParams,
	}, nil
}

func (c *DitherCommand) Name() string {
	return c.name
}

// Execute composites the photo over white paper and dithers it into a
// paletted PNG.
func (c *DitherCommand) Execute(imageData []byte) ([]byte, error) {
	img, err := decodePNG(imageData)
	if err != nil {
		return nil, err
	}
	slog.Debug("DitherCommand: dithering",
		"method", c.params.Method,
		"palette_size", len(c.params.Palette),
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	return encodePNG(dither(img, c.params.Palette, ditherKernels[c.params.Method], c.params.Strength))
}

// dither walks the image in raster order. Error rows are kept in a ring
// deep enough for the kernel's furthest row.
func dither(img image.Image, palette color.Palette, kernel *diffusionKernel, strength float64) *image.Paletted {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewPaletted(image.Rect(0, 0, w, h), palette)

	depth := 1
	if kernel != nil {
		for _, tap := range kernel.taps {
			depth = max(depth, tap.dy+1)
		}
	}
	rows := make([][][3]float64, depth)
	for i := range rows {
		rows[i] = make([][3]float64, w)
	}

	for y := 0; y < h; y++ {
		cur := rows[y%depth]
		for x := 0; x < w; x++ {
			r, g, bl := compositeOverWhite(img.At(b.Min.X+x, b.Min.Y+y))
			want := [3]float64{
				float64(r) + cur[x][0],
				float64(g) + cur[x][1],
				float64(bl) + cur[x][2],
			}
			idx := nearestIndex(palette, want)
			out.SetColorIndex(x, y, uint8(idx))
			if kernel == nil {
				continue
			}

			got := palette[idx].(color.RGBA)
			diff := [3]float64{
				(want[0] - float64(got.R)) * strength,
				(want[1] - float64(got.G)) * strength,
				(want[2] - float64(got.B)) * strength,
			}
			for _, tap := range kernel.taps {
				tx, ty := x+tap.dx, y+tap.dy
				if tx < 0 || tx >= w || ty >= h {
					continue
				}
				f := float64(tap.weight) / float64(kernel.divisor)
				row := rows[ty%depth]
				row[tx][0] += diff[0] * f
				row[tx][1] += diff[1] * f
				row[tx][2] += diff[2] * f
			}
		}
		clear(cur)
	}
	return out
}

// nearestIndex picks the palette entry with the smallest squared sRGB
// distance. Targets outside 0..255 are clamped first.
func nearestIndex(palette color.Palette, want [3]float64) int {
	r := clamp8(int(want[0] + 0.5))
	g := clamp8(int(want[1] + 0.5))
	b := clamp8(int(want[2] + 0.5))
	best, bestDist := 0, -1
	for i, pc := range palette {
		c := pc.(color.RGBA)
		dr, dg, db := r-int(c.R), g-int(c.G), b-int(c.B)
		if d := dr*dr + dg*dg + db*db; bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func (c *DitherCommand) GetParams() *DitherParams {
	return c.params
}

func init() {
	commandstructure.DefaultRegistry.MustRegister("DitherCommand", NewDitherCommand)
}
