package services

import (
	"testing"
)

func TestNormalizeZipCode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "plain seven digits",
			input:    "1000001",
			expected: "1000001",
		},
		{
			name:     "hyphenated",
			input:    "100-0001",
			expected: "1000001",
		},
		{
			name:     "with postal mark",
			input:    "〒100-0001",
			expected: "1000001",
		},
		{
			name:     "surrounding whitespace",
			input:    "  1000001 ",
			expected: "1000001",
		},
		{
			name:    "too short",
			input:   "100-001",
			wantErr: true,
		},
		{
			name:    "too long",
			input:   "10000012",
			wantErr: true,
		},
		{
			name:    "non numeric",
			input:   "100-00AB",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NormalizeZipCode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NormalizeZipCode(%q) = %q; want error", tt.input, result)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeZipCode(%q) returned error: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("NormalizeZipCode(%q) = %q; want %q", tt.input, result, tt.expected)
			}
		})
	}
}
