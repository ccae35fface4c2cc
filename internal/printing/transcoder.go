package printing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"strings"
)

type Encoding string

const (
	// EncodingRaw sends the decoded bytes as they are
	EncodingRaw Encoding = "raw"
	// EncodingEscPosRaster converts the image to GS v 0 raster blocks
	EncodingEscPosRaster Encoding = "escpos-raster"
)

type Alignment byte

const (
	AlignLeft   Alignment = 0
	AlignCenter Alignment = 1
	AlignRight  Alignment = 2
)

// ESC/POS control sequences
var (
	escInit      = []byte{0x1B, 0x40}
	escAlign     = []byte{0x1B, 0x61}
	escFeed      = []byte{0x1B, 0x64}
	gsCut        = []byte{0x1D, 0x56}
	gsRasterMode = []byte{0x1D, 0x76, 0x30, 0x00}
)

// rows per GS v 0 block, keeps each block inside small printer buffers
const rasterBandHeight = 255

// EscPosOptions controls the bytes placed around the payload
type EscPosOptions struct {
	Wrap       bool
	Align      Alignment
	FeedLines  int
	Cut        bool
	PartialCut bool
}

// Transcoder turns an embedded bitmap string into the bytes a device accepts
type Transcoder struct {
	Encoding Encoding
	EscPos   EscPosOptions
}

func (t Transcoder) Transcode(src string) ([]byte, error) {
	payload, _, err := DecodeDataURL(src)
	if err != nil {
		return nil, err
	}

	switch t.Encoding {
	case EncodingRaw, "":
		if !t.EscPos.Wrap {
			return payload, nil
		}
		return WrapEscPos(payload, t.EscPos), nil
	case EncodingEscPosRaster:
		img, _, err := image.Decode(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image for raster: %w", err)
		}
		return WrapEscPos(RasterEscPos(img), t.EscPos), nil
	default:
		return nil, fmt.Errorf("unknown encoding: %s", t.Encoding)
	}
}

// DecodeDataURL strips a "data:<mime>;base64," prefix when present and
// decodes the base64 payload. Bare base64 is accepted.
func DecodeDataURL(src string) ([]byte, string, error) {
	src = strings.TrimSpace(src)
	mime := ""
	if strings.HasPrefix(src, "data:") {
		header, body, ok := strings.Cut(src, ",")
		if !ok {
			return nil, "", fmt.Errorf("missing payload separator: %w", ErrMalformedBitmap)
		}
		meta := strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", fmt.Errorf("payload is not base64: %w", ErrMalformedBitmap)
		}
		mime = strings.TrimSuffix(meta, ";base64")
		src = body
	}
	if src == "" {
		return nil, mime, fmt.Errorf("empty payload: %w", ErrMalformedBitmap)
	}

	data, err := base64.StdEncoding.DecodeString(src)
	if err != nil {
		// some encoders drop the padding
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(src, "="))
		if rawErr != nil {
			return nil, mime, fmt.Errorf("%v: %w", err, ErrMalformedBitmap)
		}
	}
	return data, mime, nil
}

// EncodeDataURL is the inverse of DecodeDataURL
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// WrapEscPos prepends init and alignment and appends feed and cut
func WrapEscPos(payload []byte, opts EscPosOptions) []byte {
	out := make([]byte, 0, len(payload)+12)
	out = append(out, escInit...)
	out = append(out, escAlign...)
	out = append(out, byte(opts.Align))
	out = append(out, payload...)
	if opts.FeedLines > 0 {
		out = append(out, escFeed...)
		out = append(out, byte(min(opts.FeedLines, 255)))
	}
	if opts.Cut {
		mode := byte(0x00)
		if opts.PartialCut {
			mode = 0x01
		}
		out = append(out, gsCut...)
		out = append(out, mode)
	}
	return out
}

// RasterEscPos encodes img as GS v 0 raster blocks, one bit per pixel with
// dark pixels set. Transparent pixels count as white paper.
func RasterEscPos(img image.Image) []byte {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	rowBytes := (width + 7) / 8

	var out bytes.Buffer
	for top := 0; top < height; top += rasterBandHeight {
		band := min(rasterBandHeight, height-top)
		out.Write(gsRasterMode)
		out.WriteByte(byte(rowBytes & 0xFF))
		out.WriteByte(byte(rowBytes >> 8))
		out.WriteByte(byte(band & 0xFF))
		out.WriteByte(byte(band >> 8))

		row := make([]byte, rowBytes)
		for y := top; y < top+band; y++ {
			clear(row)
			for x := 0; x < width; x++ {
				if isDark(img.At(b.Min.X+x, b.Min.Y+y)) {
					row[x/8] |= 0x80 >> uint(x%8)
				}
			}
			out.Write(row)
		}
	}
	return out.Bytes()
}

func isDark(c color.Color) bool {
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	a := int(nc.A)
	blend := func(v uint8) int { return (int(v)*a + 255*(255-a)) / 255 }
	lum := (299*blend(nc.R) + 587*blend(nc.G) + 114*blend(nc.B)) / 1000
	return lum < 128
}
