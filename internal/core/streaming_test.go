package core

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestSourceReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("name,vat")...),
			expected: "name,vat",
		},
		{
			name:     "file without BOM",
			input:    []byte("name,vat"),
			expected: "name,vat",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "invalid byte replaced",
			input:    []byte{'h', 'e', 0x80, 'l', 'o'},
			expected: "he\uFFFDlo",
		},
		{
			name:     "UTF-16 with BOM",
			input:    []byte{0xFF, 0xFE, 'i', 0, 'd', 0},
			expected: "id",
		},
		{
			name:     "decomposed accents composed",
			input:    []byte("Citta\u0300"),
			expected: "Citt\u00e0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewSourceReader(bytes.NewReader(tt.input))
			result, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestCountingReader(t *testing.T) {
	input := strings.Repeat("x", 1000)
	reader := NewCountingReader(strings.NewReader(input), 0)

	buf := make([]byte, 100)
	totalRead := 0
	for {
		n, err := reader.Read(buf)
		totalRead += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if totalRead != len(input) {
		t.Errorf("total read = %d, want %d", totalRead, len(input))
	}
	if reader.BytesRead != int64(len(input)) {
		t.Errorf("BytesRead = %d, want %d", reader.BytesRead, len(input))
	}
}

func TestWrapSourceLimit(t *testing.T) {
	_, err := io.ReadAll(WrapSource(strings.NewReader(strings.Repeat("x", 64)), 10))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}

	got, err := io.ReadAll(WrapSource(strings.NewReader("name\nAlpha\n"), 1024))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "name\nAlpha\n" {
		t.Errorf("got %q", got)
	}
}
