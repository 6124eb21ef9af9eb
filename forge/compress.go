// Package forge sends arbitrary rich content by rewriting a stored message
// row and forwarding it.
package forge

import (
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// maxDecompressedSize bounds the buffer Decompress grows to.
const maxDecompressedSize = 16 << 20

// ErrCompression is matched by every *CompressionError.
var ErrCompression = errors.New("compression failed")

// CompressionError reports a failed block compression or decompression.
type CompressionError struct {
	Op  string
	Err error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("lz4 %s: %v", e.Op, e.Err)
}

func (e *CompressionError) Unwrap() error {
	return e.Err
}

func (e *CompressionError) Is(target error) bool {
	return target == ErrCompression
}

// Compress encodes content as a single LZ4 block without frame headers,
// the layout of the CompressContent column.
func Compress(content []byte) ([]byte, error) {
	if len(content) == 0 {
		return nil, &CompressionError{Op: "compress", Err: errors.New("empty content")}
	}

	dst := make([]byte, lz4.CompressBlockBound(len(content)))
	n, err := lz4.CompressBlock(content, dst, nil)
	if err != nil {
		return nil, &CompressionError{Op: "compress", Err: err}
	}
	if n == 0 {
		// Incompressible input.
		return literalBlock(content), nil
	}
	return dst[:n], nil
}

// literalBlock encodes src as one literal-only LZ4 sequence.
func literalBlock(src []byte) []byte {
	n := len(src)
	out := make([]byte, 0, n+n/255+2)
	if n < 15 {
		out = append(out, byte(n<<4))
	} else {
		out = append(out, 0xf0)
		rest := n - 15
		for ; rest >= 255; rest -= 255 {
			out = append(out, 255)
		}
		out = append(out, byte(rest))
	}
	return append(out, src...)
}

// Decompress decodes an LZ4 block. sizeHint is the expected decoded size;
// the buffer grows when it is too small or unknown (zero).
func Decompress(block []byte, sizeHint int) ([]byte, error) {
	if len(block) == 0 {
		return nil, &CompressionError{Op: "decompress", Err: errors.New("empty block")}
	}

	size := sizeHint
	if size <= 0 {
		size = 4*len(block) + 64
	}
	for {
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(block, dst)
		if err == nil {
			return dst[:n], nil
		}
		if size >= maxDecompressedSize {
			return nil, &CompressionError{Op: "decompress", Err: err}
		}
		size = min(size*2, maxDecompressedSize)
	}
}
