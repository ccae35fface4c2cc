package common

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type sampleRequest struct {
	Filter string `json:"filter" validate:"omitempty,oneof=none sepia"`
	Copies int    `json:"copies" validate:"min=1,max=10"`
	Color  string `json:"primaryColor" validate:"omitempty,hexcolor"`
}

func TestGenericEchoValidator(t *testing.T) {
	tests := []struct {
		name      string
		req       sampleRequest
		wantErr   bool
		wantInMsg string
	}{
		{name: "valid", req: sampleRequest{Filter: "sepia", Copies: 2}},
		{name: "bad filter", req: sampleRequest{Filter: "neon", Copies: 1}, wantErr: true, wantInMsg: "filter must be one of [none sepia]"},
		{name: "too many copies", req: sampleRequest{Copies: 11}, wantErr: true, wantInMsg: "copies must satisfy max=10"},
		{name: "bad color", req: sampleRequest{Copies: 1, Color: "blue"}, wantErr: true, wantInMsg: "primaryColor is not a valid hexcolor"},
	}

	v := NewGenericEchoValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			var httpErr *echo.HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("Expected *echo.HTTPError, got %T", err)
			}
			if httpErr.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", httpErr.Code)
			}
			msg, _ := httpErr.Message.(string)
			if !strings.Contains(msg, tt.wantInMsg) {
				t.Errorf("Expected message to contain %q, got %q", tt.wantInMsg, msg)
			}
		})
	}
}

func TestGenericEchoValidator_ZeroValue(t *testing.T) {
	v := &GenericEchoValidator{}
	if err := v.Validate(sampleRequest{Copies: 1}); err != nil {
		t.Fatalf("Expected zero-value validator to work, got %v", err)
	}
}
