package forge

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"
)

func TestCompress_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{"short xml", []byte("<msg>hello</msg>")},
		{"repetitive", []byte(strings.Repeat("<appmsg><title>ferry</title></appmsg>", 200))},
		{"single byte", []byte("x")},
		{"random", randomBytes(t, 1000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := Compress(tt.content)
			if err != nil {
				t.Fatalf("Compress failed: %v", err)
			}
			got, err := Decompress(block, len(tt.content))
			if err != nil {
				t.Fatalf("Decompress failed: %v", err)
			}
			if !bytes.Equal(got, tt.content) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(tt.content))
			}
		})
	}
}

func TestCompress_RepetitiveShrinks(t *testing.T) {
	content := []byte(strings.Repeat("abcdefgh", 512))
	block, err := Compress(content)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if len(block) >= len(content) {
		t.Errorf("block is %d bytes, want fewer than %d", len(block), len(content))
	}
}

func TestCompress_Empty(t *testing.T) {
	_, err := Compress(nil)
	if !errors.Is(err, ErrCompression) {
		t.Errorf("expected ErrCompression, got %v", err)
	}
	var ce *CompressionError
	if !errors.As(err, &ce) || ce.Op != "compress" {
		t.Errorf("expected *CompressionError with op compress, got %v", err)
	}
}

func TestLiteralBlock_Decodes(t *testing.T) {
	for _, n := range []int{1, 14, 15, 16, 269, 270, 1000} {
		src := randomBytes(t, n)
		block := literalBlock(src)
		dst := make([]byte, n)
		got, err := lz4.UncompressBlock(block, dst)
		if err != nil {
			t.Fatalf("n=%d: UncompressBlock failed: %v", n, err)
		}
		if !bytes.Equal(dst[:got], src) {
			t.Errorf("n=%d: literal block did not decode to its input", n)
		}
	}
}

func TestDecompress_GrowsWithoutHint(t *testing.T) {
	content := []byte(strings.Repeat("z", 10000))
	block, err := Compress(content)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	got, err := Decompress(block, 0)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("got %d bytes, want %d", len(got), len(content))
	}
}

func TestDecompress_Empty(t *testing.T) {
	if _, err := Decompress(nil, 10); !errors.Is(err, ErrCompression) {
		t.Errorf("expected ErrCompression, got %v", err)
	}
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return b
}
