package commands

import (
	"bytes"
	"image/color"
	"testing"
)

func TestNewFrameCommand(t *testing.T) {
	tests := []struct {
		name        string
		params      map[string]any
		expectError bool
	}{
		{name: "default none", params: map[string]any{}},
		{name: "classic", params: map[string]any{"frame": "classic"}},
		{name: "custom width", params: map[string]any{"frame": "pink", "width": 4}},
		{name: "unknown frame", params: map[string]any{"frame": "gold"}, expectError: true},
		{name: "zero width", params: map[string]any{"frame": "black", "width": 0}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrameCommand(tt.params)
			if tt.expectError && err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
		})
	}
}

func TestFrameCommand_None(t *testing.T) {
	input := makeSolidPNG(t, 5, 5, color.RGBA{1, 2, 3, 255})
	cmd, _ := NewFrameCommand(map[string]any{"frame": "none"})
	out, err := cmd.Execute(input)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Error("Expected none frame to return input unchanged")
	}
}

func TestFrameCommand_AddsBorder(t *testing.T) {
	photo := color.RGBA{10, 20, 30, 255}
	tests := []struct {
		frame  string
		border color.NRGBA
	}{
		{frame: "classic", border: color.NRGBA{255, 255, 255, 255}},
		{frame: "black", border: color.NRGBA{0, 0, 0, 255}},
		{frame: "pink", border: color.NRGBA{0xf9, 0xa8, 0xd4, 255}},
		{frame: "blue", border: color.NRGBA{0x93, 0xc5, 0xfd, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.frame, func(t *testing.T) {
			cmd, err := NewFrameCommand(map[string]any{"frame": tt.frame})
			if err != nil {
				t.Fatalf("failed to create command: %v", err)
			}
			out, err := cmd.Execute(makeSolidPNG(t, 20, 10, photo))
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}

			img, _ := decodePNG(out)
			if img.Bounds().Dx() != 20+2*defaultFrameWidth || img.Bounds().Dy() != 10+2*defaultFrameWidth {
				t.Fatalf("Expected %dx%d, got %dx%d", 20+2*defaultFrameWidth, 10+2*defaultFrameWidth, img.Bounds().Dx(), img.Bounds().Dy())
			}
			if got := pixelAt(t, out, 0, 0); got != tt.border {
				t.Errorf("Expected border %+v, got %+v", tt.border, got)
			}
			center := pixelAt(t, out, defaultFrameWidth+10, defaultFrameWidth+5)
			if center != (color.NRGBA{10, 20, 30, 255}) {
				t.Errorf("Expected photo pixel inside frame, got %+v", center)
			}
		})
	}
}
