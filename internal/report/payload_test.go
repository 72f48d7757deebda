package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() *Event {
	ev := NewEvent(LevelError)
	ev.Timestamp = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev.Message = "<boom> & more"
	ev.SetTag("env", "test")
	ev.SetExtra("detail", map[string]any{"attempt": "3"})
	return ev
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codecs := []Codec{JSONCodec{}, CBORCodec{}}
	compressions := []Compression{CompressionNone, CompressionGzip, CompressionZstd}

	for _, codec := range codecs {
		for _, comp := range compressions {
			t.Run(codec.Name()+"/"+string(comp), func(t *testing.T) {
				ev := sampleEvent()

				payload, err := Encode(ev, codec, comp)
				require.NoError(t, err)
				assert.Equal(t, ev.EventID, payload.EventID)
				assert.Equal(t, codec.ContentType(), payload.ContentType)
				assert.Equal(t, comp.ContentEncoding(), payload.ContentEncoding)

				got, err := Decode(payload.Body, codec, comp)
				require.NoError(t, err)
				assert.Equal(t, ev.EventID, got.EventID)
				assert.Equal(t, ev.Message, got.Message)
				assert.True(t, ev.Timestamp.Equal(got.Timestamp))
				assert.Equal(t, ev.Tags, got.Tags)
				assert.Equal(t, ev.Extra, got.Extra)
			})
		}
	}
}

func TestJSONCodecDoesNotEscapeHTML(t *testing.T) {
	data, err := JSONCodec{}.Marshal(sampleEvent())
	require.NoError(t, err)

	assert.Contains(t, string(data), `"<boom> & more"`)
}

func TestCBORCodecIsDeterministic(t *testing.T) {
	ev := sampleEvent()
	ev.SetExtra("a", 1)
	ev.SetExtra("b", 2)
	ev.SetExtra("c", 3)

	first, err := CBORCodec{}.Marshal(ev)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := CBORCodec{}.Marshal(ev)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(first, again))
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	ev := NewEvent(LevelError)
	ev.Message = strings.Repeat("x", MaxPayloadBytes)

	_, err := Encode(ev, JSONCodec{}, CompressionGzip)

	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestEncodeCompresses(t *testing.T) {
	ev := NewEvent(LevelError)
	ev.Message = strings.Repeat("abc", 10000)

	payload, err := Encode(ev, JSONCodec{}, CompressionZstd)
	require.NoError(t, err)

	assert.Less(t, len(payload.Body), payload.Size)
}

func TestDecompressLimit(t *testing.T) {
	big := []byte(strings.Repeat("z", 1024))
	compressed, err := CompressionGzip.Compress(big)
	require.NoError(t, err)

	_, err = CompressionGzip.Decompress(compressed, 512)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	out, err := CompressionGzip.Decompress(compressed, 1024)
	require.NoError(t, err)
	assert.Equal(t, big, out)
}

func TestNewEncoder(t *testing.T) {
	enc, err := NewEncoder("cbor", "zstd")
	require.NoError(t, err)
	assert.Equal(t, CBORCodec{}, enc.Codec)
	assert.Equal(t, CompressionZstd, enc.Compression)

	enc, err = NewEncoder("", "")
	require.NoError(t, err)
	assert.Equal(t, JSONCodec{}, enc.Codec)
	assert.Equal(t, CompressionNone, enc.Compression)

	_, err = NewEncoder("xml", "")
	assert.Error(t, err)
	_, err = NewEncoder("json", "brotli")
	assert.Error(t, err)
}

func TestCodecForContentType(t *testing.T) {
	c, ok := CodecForContentType("application/cbor")
	require.True(t, ok)
	assert.Equal(t, "cbor", c.Name())

	_, ok = CodecForContentType("text/plain")
	assert.False(t, ok)
}

func TestSniffCompression(t *testing.T) {
	data := []byte(`{"message":"hello"}`)
	gz, err := CompressionGzip.Compress(data)
	require.NoError(t, err)
	zs, err := CompressionZstd.Compress(data)
	require.NoError(t, err)

	tests := []struct {
		name string
		body []byte
		want Compression
	}{
		{name: "gzip", body: gz, want: CompressionGzip},
		{name: "zstd", body: zs, want: CompressionZstd},
		{name: "json", body: data, want: CompressionNone},
		{name: "empty", body: nil, want: CompressionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SniffCompression(tt.body))
		})
	}
}
