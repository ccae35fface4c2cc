package printing

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"
)

type recordingWriter struct {
	writes  [][]byte
	failAt  int
	failErr error
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	if w.failErr != nil && len(w.writes) == w.failAt {
		return 0, w.failErr
	}
	w.writes = append(w.writes, append([]byte{}, p...))
	return len(p), nil
}

func TestChunkedTransport_Send(t *testing.T) {
	tests := []struct {
		name       string
		payload    int
		chunkSize  int
		wantChunks int
	}{
		{name: "exact multiple", payload: 1024, chunkSize: 512, wantChunks: 2},
		{name: "remainder", payload: 1030, chunkSize: 512, wantChunks: 3},
		{name: "smaller than chunk", payload: 10, chunkSize: 512, wantChunks: 1},
		{name: "empty", payload: 0, chunkSize: 512, wantChunks: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := NewChunkedTransport(tt.chunkSize, 5*time.Millisecond)
			var sleeps []time.Duration
			transport.sleep = func(_ context.Context, d time.Duration) error {
				sleeps = append(sleeps, d)
				return nil
			}

			w := &recordingWriter{}
			payload := bytes.Repeat([]byte{0x55}, tt.payload)
			if err := transport.Send(context.Background(), Target{Writer: w}, payload); err != nil {
				t.Fatalf("Send failed: %v", err)
			}
			if len(w.writes) != tt.wantChunks {
				t.Fatalf("Expected %d chunks, got %d", tt.wantChunks, len(w.writes))
			}
			if got := bytes.Join(w.writes, nil); !bytes.Equal(got, payload) {
				t.Error("Reassembled chunks differ from payload")
			}
			for _, c := range w.writes {
				if len(c) > tt.chunkSize {
					t.Errorf("Chunk of %d bytes exceeds %d", len(c), tt.chunkSize)
				}
			}
			wantSleeps := max(0, tt.wantChunks-1)
			if len(sleeps) != wantSleeps {
				t.Errorf("Expected %d inter-chunk delays, got %d", wantSleeps, len(sleeps))
			}
		})
	}
}

func TestChunkedTransport_WriteError(t *testing.T) {
	transport := NewChunkedTransport(4, 0)
	w := &recordingWriter{failAt: 1, failErr: errors.New("stalled endpoint")}
	err := transport.Send(context.Background(), Target{Writer: w}, make([]byte, 12))
	if err == nil {
		t.Fatal("Expected error")
	}
	if len(w.writes) != 1 {
		t.Errorf("Expected transfer to stop after failure, got %d writes", len(w.writes))
	}
}

func TestChunkedTransport_Cancelled(t *testing.T) {
	transport := NewChunkedTransport(4, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &recordingWriter{}
	err := transport.Send(ctx, Target{Writer: w}, make([]byte, 12))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestChunkedTransport_NoWriter(t *testing.T) {
	if err := NewChunkedTransport(0, 0).Send(context.Background(), Target{}, []byte{1}); !errors.Is(err, ErrNoActiveDevice) {
		t.Errorf("Expected ErrNoActiveDevice, got %v", err)
	}
}

type fakeSpooler struct {
	destination string
	document    []byte
	err         error
}

func (s *fakeSpooler) Submit(_ context.Context, destination string, document []byte) error {
	s.destination = destination
	s.document = document
	return s.err
}

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return buf.Bytes()
}

func TestRenderTransport_Send(t *testing.T) {
	spooler := &fakeSpooler{}
	page := PageSize{Width: 100, Height: 150, Margin: 10}
	transport := NewRenderTransport(spooler, page, "")

	target := Target{Device: PrinterDevice{Name: "EPSON_TM"}}
	if err := transport.Send(context.Background(), target, encodeTestPNG(t, 40, 20)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if spooler.destination != "" {
		t.Errorf("Expected default queue, got %q", spooler.destination)
	}

	doc, err := png.Decode(bytes.NewReader(spooler.document))
	if err != nil {
		t.Fatalf("Expected PNG page, got %v", err)
	}
	if doc.Bounds().Dx() != 100 || doc.Bounds().Dy() != 150 {
		t.Errorf("Expected page 100x150, got %v", doc.Bounds())
	}
	if r, g, b, _ := doc.At(50, 75).RGBA(); r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("Expected image at page center, got %d %d %d", r>>8, g>>8, b>>8)
	}
	if r, g, b, _ := doc.At(2, 2).RGBA(); r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("Expected white margin, got %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestRenderTransport_Errors(t *testing.T) {
	spooler := &fakeSpooler{err: errors.New("lp: no default destination")}
	transport := NewRenderTransport(spooler, PageSize{}, "booth")

	if err := transport.Send(context.Background(), Target{}, []byte("garbage")); err == nil {
		t.Error("Expected decode error")
	}
	if err := transport.Send(context.Background(), Target{}, encodeTestPNG(t, 4, 4)); err == nil {
		t.Error("Expected spooler error")
	}
	if spooler.destination != "booth" {
		t.Errorf("Expected configured destination, got %q", spooler.destination)
	}
}

func TestCommandSpooler_Submit(t *testing.T) {
	if err := NewCommandSpooler("true").Submit(context.Background(), "", []byte("page")); err != nil {
		t.Errorf("Expected spooler to accept job, got %v", err)
	}
	if err := NewCommandSpooler("false").Submit(context.Background(), "x", []byte("page")); err == nil {
		t.Error("Expected rejected job")
	}
}
