package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression is a content encoding applied to encoded payloads.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ParseCompression parses a compression from its name. An empty name
// means CompressionNone.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionGzip:
		return CompressionGzip, nil
	case CompressionZstd:
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("unknown compression: %q", name)
	}
}

// SniffCompression detects a gzip or zstd stream from its leading bytes.
// Anything else is reported as CompressionNone.
func SniffCompression(data []byte) Compression {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/gzip"):
		return CompressionGzip
	case mt.Is("application/zstd"):
		return CompressionZstd
	}
	return CompressionNone
}

// ContentEncoding returns the HTTP Content-Encoding value, empty for none.
func (c Compression) ContentEncoding() string {
	if c == CompressionNone {
		return ""
	}
	return string(c)
}

// Compress encodes data with c.
func (c Compression) Compress(data []byte) ([]byte, error) {
	switch c {
	case CompressionNone, "":
		return data, nil
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		w, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer w.Close()
		return w.EncodeAll(data, make([]byte, 0, len(data))), nil
	default:
		return nil, fmt.Errorf("unknown compression: %q", string(c))
	}
}

// Decompress reverses Compress, reading at most limit decoded bytes.
// Larger inputs fail with ErrPayloadTooLarge.
func (c Compression) Decompress(data []byte, limit int) ([]byte, error) {
	var r io.Reader
	switch c {
	case CompressionNone, "":
		if len(data) > limit {
			return nil, ErrPayloadTooLarge
		}
		return data, nil
	case CompressionGzip:
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		r = gr
	case CompressionZstd:
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("unknown compression: %q", string(c))
	}

	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		return nil, ErrPayloadTooLarge
	}
	return out, nil
}
