package token

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	key, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.HasPrefix(key, Prefix) {
		t.Errorf("key %q lacks prefix", key)
	}
	if want := len(Prefix) + base64.RawURLEncoding.EncodedLen(DefaultLength); len(key) != want {
		t.Errorf("len = %d, want %d", len(key), want)
	}
	if !IsGenerated(key) {
		t.Errorf("IsGenerated(%q) = false", key)
	}
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := Generate()
		if err != nil {
			t.Fatal(err)
		}
		if seen[key] {
			t.Fatalf("duplicate key %q", key)
		}
		seen[key] = true
	}
}

func TestGenerateWithLength(t *testing.T) {
	tests := []struct {
		length  int
		wantLen int
		wantErr bool
	}{
		{1, len(Prefix) + 2, false},
		{3, len(Prefix) + 4, false},
		{32, len(Prefix) + 43, false},
		{0, 0, true},
		{-1, 0, true},
	}

	for _, tt := range tests {
		key, err := GenerateWithLength(tt.length)
		if tt.wantErr {
			if !errors.Is(err, ErrLength) {
				t.Errorf("GenerateWithLength(%d) error = %v, want ErrLength", tt.length, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("GenerateWithLength(%d) error = %v", tt.length, err)
		}
		if len(key) != tt.wantLen {
			t.Errorf("GenerateWithLength(%d) len = %d, want %d", tt.length, len(key), tt.wantLen)
		}
	}
}

func TestIsGenerated(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"ak_AAAA", true},
		{"ak_", false},
		{"k1", false},
		{"ak_!!", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsGenerated(tt.key); got != tt.want {
			t.Errorf("IsGenerated(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}
