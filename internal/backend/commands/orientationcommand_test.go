package commands

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/jo-hoe/gophotobooth/internal/backend/commandstructure"
)

// makeCornerPNG marks the top-left pixel red and the top-right pixel green
func makeCornerPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{128, 128, 128, 255})
		}
	}
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	img.SetRGBA(width-1, 0, color.RGBA{0, 255, 0, 255})
	data, err := encodePNG(img)
	if err != nil {
		t.Fatalf("failed to build test PNG: %v", err)
	}
	return data
}

func TestNewOrientationParamsFromMap(t *testing.T) {
	tests := []struct {
		name        string
		params      map[string]any
		expected    string
		clockwise   bool
		expectError bool
	}{
		{name: "default", params: map[string]any{}, expected: "portrait", clockwise: true},
		{name: "landscape", params: map[string]any{"orientation": "landscape"}, expected: "landscape", clockwise: true},
		{name: "counterclockwise", params: map[string]any{"clockwise": false}, expected: "portrait", clockwise: false},
		{name: "invalid", params: map[string]any{"orientation": "diagonal"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := NewOrientationParamsFromMap(tt.params)
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if params.Orientation != tt.expected {
				t.Errorf("Expected orientation %s, got %s", tt.expected, params.Orientation)
			}
			if params.Clockwise != tt.clockwise {
				t.Errorf("Expected clockwise %v, got %v", tt.clockwise, params.Clockwise)
			}
		})
	}
}

func TestOrientationCommand_LandscapeToPortrait(t *testing.T) {
	data := makeCornerPNG(t, 4, 2)

	cmd, err := NewOrientationCommand(map[string]any{"orientation": "portrait"})
	if err != nil {
		t.Fatalf("failed to create command: %v", err)
	}

	out, err := cmd.Execute(data)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	img, err := decodePNG(out)
	if err != nil {
		t.Fatalf("result is not valid PNG: %v", err)
	}
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 4 {
		t.Fatalf("expected 2x4 image, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
	// clockwise with h=2: red (0,0) -> (1,0), green (3,0) -> (1,3)
	if got := color.RGBAModel.Convert(img.At(1, 0)); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("expected red at (1,0), got %v", got)
	}
	if got := color.RGBAModel.Convert(img.At(1, 3)); got != (color.RGBA{0, 255, 0, 255}) {
		t.Errorf("expected green at (1,3), got %v", got)
	}
}

func TestOrientationCommand_CounterClockwise(t *testing.T) {
	data := makeCornerPNG(t, 4, 2)

	cmd, err := NewOrientationCommand(map[string]any{"orientation": "portrait", "clockwise": false})
	if err != nil {
		t.Fatalf("failed to create command: %v", err)
	}

	out, err := cmd.Execute(data)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	img, err := decodePNG(out)
	if err != nil {
		t.Fatalf("result is not valid PNG: %v", err)
	}
	// counterclockwise with w=4: red (0,0) -> (0,3)
	if got := color.RGBAModel.Convert(img.At(0, 3)); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("expected red at (0,3), got %v", got)
	}
}

func TestOrientationCommand_NoRotationNeeded(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		params map[string]any
	}{
		{name: "already portrait", width: 2, height: 4, params: map[string]any{"orientation": "portrait"}},
		{name: "already landscape", width: 4, height: 2, params: map[string]any{"orientation": "landscape"}},
		{name: "square without rotateWhenSquare", width: 3, height: 3, params: map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := makeCornerPNG(t, tt.width, tt.height)
			cmd, err := NewOrientationCommand(tt.params)
			if err != nil {
				t.Fatalf("failed to create command: %v", err)
			}
			out, err := cmd.Execute(data)
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if !bytes.Equal(out, data) {
				t.Error("expected original bytes to be returned unchanged")
			}
		})
	}
}

func TestOrientationCommand_SquareRotates(t *testing.T) {
	data := makeCornerPNG(t, 3, 3)

	cmd, err := NewOrientationCommand(map[string]any{"rotateWhenSquare": true})
	if err != nil {
		t.Fatalf("failed to create command: %v", err)
	}
	out, err := cmd.Execute(data)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if bytes.Equal(out, data) {
		t.Fatal("expected a rotated image")
	}
}

func TestOrientationCommand_InvalidImage(t *testing.T) {
	cmd, err := commandstructure.DefaultRegistry.Create("OrientationCommand", map[string]any{"orientation": "landscape"})
	if err != nil {
		t.Fatalf("Failed to create command via registry: %v", err)
	}
	if _, err := cmd.Execute([]byte("test image data")); err == nil {
		t.Error("Expected error for invalid image data, got nil")
	}
}

func TestOrientationCommand_Mirror(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	green := color.RGBA{0, 255, 0, 255}

	tests := []struct {
		name          string
		width, height int
		params        map[string]any
		wantW, wantH  int
		redAt         image.Point
		greenAt       image.Point
	}{
		{
			name: "mirror only", width: 2, height: 4,
			params: map[string]any{"mirror": true},
			wantW:  2, wantH: 4, redAt: image.Pt(1, 0), greenAt: image.Pt(0, 0),
		},
		{
			name: "mirror then rotate clockwise", width: 4, height: 2,
			params: map[string]any{"mirror": true},
			wantW:  2, wantH: 4, redAt: image.Pt(1, 3), greenAt: image.Pt(1, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := NewOrientationCommand(tt.params)
			if err != nil {
				t.Fatalf("failed to create command: %v", err)
			}
			out, err := cmd.Execute(makeCornerPNG(t, tt.width, tt.height))
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			img, err := decodePNG(out)
			if err != nil {
				t.Fatalf("result is not valid PNG: %v", err)
			}
			if img.Bounds().Dx() != tt.wantW || img.Bounds().Dy() != tt.wantH {
				t.Fatalf("expected %dx%d, got %v", tt.wantW, tt.wantH, img.Bounds())
			}
			if got := color.RGBAModel.Convert(img.At(tt.redAt.X, tt.redAt.Y)); got != red {
				t.Errorf("expected red at %v, got %v", tt.redAt, got)
			}
			if got := color.RGBAModel.Convert(img.At(tt.greenAt.X, tt.greenAt.Y)); got != green {
				t.Errorf("expected green at %v, got %v", tt.greenAt, got)
			}
		})
	}
}
