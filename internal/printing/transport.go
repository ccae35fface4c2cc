package printing

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"golang.org/x/image/draw"
)

type TransportKind string

const (
	TransportChunked TransportKind = "chunked"
	TransportRender  TransportKind = "render"
)

// Target is the device a job goes to and a writer to its open handle
type Target struct {
	Device PrinterDevice
	Writer io.Writer
}

// Transport hands a payload to the device or host. Success means the
// payload was accepted, not that paper came out. NeedsDevice reports whether
// Send writes to a connected device handle.
type Transport interface {
	Kind() TransportKind
	NeedsDevice() bool
	Send(ctx context.Context, target Target, payload []byte) error
}

const (
	DefaultChunkSize  = 512
	DefaultChunkDelay = 20 * time.Millisecond
)

// ChunkedTransport writes the payload to the device handle in fixed-size
// chunks with a fixed pause between chunks
type ChunkedTransport struct {
	ChunkSize int
	Delay     time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewChunkedTransport(chunkSize int, delay time.Duration) *ChunkedTransport {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ChunkedTransport{ChunkSize: chunkSize, Delay: delay, sleep: sleepContext}
}

func (t *ChunkedTransport) Kind() TransportKind {
	return TransportChunked
}

func (t *ChunkedTransport) NeedsDevice() bool { return true }

func (t *ChunkedTransport) Send(ctx context.Context, target Target, payload []byte) error {
	if target.Writer == nil {
		return ErrNoActiveDevice
	}
	chunks := 0
	for offset := 0; offset < len(payload); offset += t.ChunkSize {
		if chunks > 0 && t.Delay > 0 {
			if err := t.sleep(ctx, t.Delay); err != nil {
				return err
			}
		}
		end := min(offset+t.ChunkSize, len(payload))
		if _, err := target.Writer.Write(payload[offset:end]); err != nil {
			return fmt.Errorf("chunk %d of %s rejected: %w", chunks, target.Device.ID, err)
		}
		chunks++
	}
	slog.Debug("ChunkedTransport: payload sent", "device_id", target.Device.ID, "bytes", len(payload), "chunks", chunks)
	return nil
}

// Spooler submits a rendered document to the host print system
type Spooler interface {
	Submit(ctx context.Context, destination string, document []byte) error
}

// CommandSpooler pipes documents into a spool command such as lp
type CommandSpooler struct {
	Command string
	Args    []string
}

func NewCommandSpooler(command string, args ...string) *CommandSpooler {
	if command == "" {
		command = "lp"
	}
	return &CommandSpooler{Command: command, Args: args}
}

func (s *CommandSpooler) Submit(ctx context.Context, destination string, document []byte) error {
	args := append([]string{}, s.Args...)
	if destination != "" {
		args = append(args, "-d", destination)
	}
	cmd := exec.CommandContext(ctx, s.Command, args...)
	cmd.Stdin = bytes.NewReader(document)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("spooler %s rejected job: %w (%s)", s.Command, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

// PageSize is a page in pixels at the render resolution
type PageSize struct {
	Width  int
	Height int
	Margin int
}

// 4x6 inch photo paper at 300 dpi
var DefaultPageSize = PageSize{Width: 1200, Height: 1800, Margin: 36}

// RenderTransport lays the image out on an off-screen page and hands the page
// to the host spooler. An empty destination leaves the queue choice to the
// spooler's default.
type RenderTransport struct {
	spooler     Spooler
	page        PageSize
	destination string
}

func NewRenderTransport(spooler Spooler, page PageSize, destination string) *RenderTransport {
	if page.Width <= 0 || page.Height <= 0 {
		page = DefaultPageSize
	}
	return &RenderTransport{spooler: spooler, page: page, destination: destination}
}

func (t *RenderTransport) Kind() TransportKind {
	return TransportRender
}

func (t *RenderTransport) NeedsDevice() bool { return false }

func (t *RenderTransport) Send(ctx context.Context, target Target, payload []byte) error {
	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to decode image for page render: %w", err)
	}
	document, err := RenderPage(img, t.page)
	if err != nil {
		return err
	}
	if err := t.spooler.Submit(ctx, t.destination, document); err != nil {
		return err
	}
	slog.Debug("RenderTransport: page spooled", "destination", t.destination, "bytes", len(document))
	return nil
}

// RenderPage centers img on a white page inside the margins, scaled to fit
// without changing its aspect ratio, and encodes the page as PNG
func RenderPage(img image.Image, page PageSize) ([]byte, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, page.Width, page.Height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	availW := page.Width - 2*page.Margin
	availH := page.Height - 2*page.Margin
	src := img.Bounds()
	if availW <= 0 || availH <= 0 || src.Dx() == 0 || src.Dy() == 0 {
		return nil, fmt.Errorf("image %dx%d does not fit page %dx%d", src.Dx(), src.Dy(), page.Width, page.Height)
	}

	scale := min(float64(availW)/float64(src.Dx()), float64(availH)/float64(src.Dy()))
	w := max(1, int(float64(src.Dx())*scale))
	h := max(1, int(float64(src.Dy())*scale))
	x := (page.Width - w) / 2
	y := (page.Height - h) / 2
	draw.CatmullRom.Scale(canvas, image.Rect(x, y, x+w, y+h), img, src, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode page: %w", err)
	}
	return buf.Bytes(), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
