package api

import "testing"

func TestNormalisePublicBase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/files"},
		{"  ", "/files"},
		{"/files", "/files"},
		{"files", "/files"},
		{"/assets/", "/assets"},
		{"https://cdn.example.com/assets/", "https://cdn.example.com/assets"},
		{"http://cdn.example.com", "http://cdn.example.com"},
	}
	for _, tt := range tests {
		if got := normalisePublicBase(tt.in); got != tt.want {
			t.Errorf("normalisePublicBase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPublicResultURL(t *testing.T) {
	h := &HTTPHandler{storagePublicBase: "/files"}

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"generations/abc.png", "/files/generations/abc.png"},
		{"/generations/abc.png", "/files/generations/abc.png"},
		{"https://bucket.example.com/abc.png", "https://bucket.example.com/abc.png"},
	}
	for _, tt := range tests {
		if got := h.publicResultURL(tt.in); got != tt.want {
			t.Errorf("publicResultURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
