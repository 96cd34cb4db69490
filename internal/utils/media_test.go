package utils

import (
	"encoding/base64"
	"testing"
)

func TestSplitDataURL(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantMime    string
		wantPayload string
	}{
		{
			name:        "png data url",
			input:       "data:image/png;base64,aGVsbG8=",
			wantMime:    "image/png",
			wantPayload: "aGVsbG8=",
		},
		{
			name:        "bare base64 defaults to jpeg",
			input:       "aGVsbG8=",
			wantMime:    "image/jpeg",
			wantPayload: "aGVsbG8=",
		},
		{
			name:        "malformed data url yields empty payload",
			input:       "data:image/png,not-base64-marked",
			wantMime:    "image/jpeg",
			wantPayload: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mimeType, payload := SplitDataURL(tt.input)
			if mimeType != tt.wantMime {
				t.Errorf("mime: expected %q, got %q", tt.wantMime, mimeType)
			}
			if payload != tt.wantPayload {
				t.Errorf("payload: expected %q, got %q", tt.wantPayload, payload)
			}
		})
	}
}

func TestDecodeMediaPayload(t *testing.T) {
	pngHeader := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	encoded := base64.StdEncoding.EncodeToString(pngHeader)

	data, ext, err := DecodeMediaPayload("data:image/png;base64," + encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext != "png" {
		t.Errorf("expected png extension, got %q", ext)
	}
	if len(data) != len(pngHeader) {
		t.Errorf("expected %d bytes, got %d", len(pngHeader), len(data))
	}

	if _, _, err := DecodeMediaPayload(""); err == nil {
		t.Error("expected error for empty payload")
	}
	if _, _, err := DecodeMediaPayload("data:image/png;base64,!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestExtensionFromMime(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/png", "png"},
		{"image/jpeg", "jpg"},
		{"image/webp; charset=utf-8", "webp"},
		{"text/plain", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtensionFromMime(tt.mime); got != tt.want {
			t.Errorf("ExtensionFromMime(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}
