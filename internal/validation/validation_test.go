package validation

import (
	"strings"
	"testing"
)

type photoInput struct {
	URL        string `validate:"required,photourl"`
	AgeBracket string `validate:"required,agebracket"`
}

func TestStructCustomTags(t *testing.T) {
	tests := []struct {
		name    string
		in      photoInput
		wantErr string
	}{
		{"https ok", photoInput{URL: "https://x/y.jpg", AgeBracket: "25-34"}, ""},
		{"data uri ok", photoInput{URL: "data:image/png;base64,AAAA", AgeBracket: "55+"}, ""},
		{"ftp rejected", photoInput{URL: "ftp://x/y.jpg", AgeBracket: "25-34"}, "URL must be a data:"},
		{"missing url", photoInput{AgeBracket: "25-34"}, "URL is required"},
		{"bad bracket", photoInput{URL: "https://x", AgeBracket: "30"}, "AgeBracket must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err == nil {
		t.Fatal("expected short password to fail")
	}
	if err := ValidatePassword("mypassword1234"); err == nil {
		t.Fatal("expected common password to fail")
	}
	if err := ValidatePassword("correct-horse-battery"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateImageBytes(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if ct, err := ValidateImageBytes(png, PhotoConstraints); err != nil || ct != "image/png" {
		t.Fatalf("png: ct=%q err=%v", ct, err)
	}
	if _, err := ValidateImageBytes([]byte("<html></html>"), PhotoConstraints); err == nil {
		t.Fatal("expected html to be rejected")
	}
}
