package commands

import (
	"bytes"
	"image/color"
	"testing"
	"unicode/utf8"

	"golang.org/x/image/font"
)

func TestCaptionCommand_EmptyTextIsNoop(t *testing.T) {
	input := makeSolidPNG(t, 10, 10, color.RGBA{200, 200, 200, 255})
	for _, text := range []string{"", "   "} {
		cmd, err := NewCaptionCommand(map[string]any{"text": text})
		if err != nil {
			t.Fatalf("failed to create command: %v", err)
		}
		out, err := cmd.Execute(input)
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if !bytes.Equal(out, input) {
			t.Errorf("Expected %q caption to leave image unchanged", text)
		}
	}
}

func TestCaptionCommand_NegativeFontSize(t *testing.T) {
	if _, err := NewCaptionCommand(map[string]any{"text": "hi", "fontSize": -1.0}); err == nil {
		t.Error("Expected error for negative font size")
	}
}

func TestCaptionCommand_DrawsBar(t *testing.T) {
	white := color.RGBA{255, 255, 255, 255}
	input := makeSolidPNG(t, 200, 120, white)

	cmd, err := NewCaptionCommand(map[string]any{"text": "Summer Party", "fontSize": 14.0})
	if err != nil {
		t.Fatalf("failed to create command: %v", err)
	}
	out, err := cmd.Execute(input)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	img, _ := decodePNG(out)
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 120 {
		t.Fatalf("Expected size to be preserved, got %v", img.Bounds())
	}

	top := pixelAt(t, out, 100, 0)
	if top != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("Expected top of image untouched, got %+v", top)
	}

	// bottom-left corner lies in the bar padding, away from any glyph
	corner := pixelAt(t, out, 1, 118)
	if corner.R > 140 || corner.R < 110 {
		t.Errorf("Expected half-transparent black over white (~127), got %+v", corner)
	}
}

func TestFitText(t *testing.T) {
	face, err := loadCaptionFace(12)
	if err != nil {
		t.Fatalf("failed to load face: %v", err)
	}
	defer func() {
		_ = face.Close()
	}()
	drawer := &font.Drawer{Face: face}

	short := fitText(drawer, "Hi", 500)
	if short != "Hi" {
		t.Errorf("Expected short text unchanged, got %q", short)
	}

	long := "A caption that is much too long to fit into a tiny photo"
	fitted := fitText(drawer, long, 60)
	if utf8.RuneCountInString(fitted) >= utf8.RuneCountInString(long) {
		t.Errorf("Expected text to be shortened, got %q", fitted)
	}
	if drawer.MeasureString(fitted).Round() > 60 {
		t.Errorf("Expected fitted text within 60px, got %d", drawer.MeasureString(fitted).Round())
	}
}
