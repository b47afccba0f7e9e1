// Package compress provides the image recompression capability used by the
// parallel scheduler.
package compress

import "errors"

const (
	// MinQuality is the lowest accepted JPEG quality
	MinQuality = 1
	// MaxQuality is the highest accepted JPEG quality
	MaxQuality = 100
	// DefaultQuality is used when no quality is configured
	DefaultQuality = 95
)

var (
	// ErrEmptyPayload indicates a zero-length input buffer
	ErrEmptyPayload = errors.New("empty payload")
	// ErrDecode indicates the payload is not a decodable image
	ErrDecode = errors.New("cannot decode image")
	// ErrEncode indicates the decoded image could not be re-encoded
	ErrEncode = errors.New("cannot encode image")
)

// Codec compresses a single image payload at the given quality.
// Implementations must be safe for concurrent use with independent payloads.
type Codec interface {
	Compress(payload []byte, quality int) ([]byte, error)
}

// CodecFunc adapts an ordinary function to the Codec interface
type CodecFunc func(payload []byte, quality int) ([]byte, error)

// Compress calls f(payload, quality)
func (f CodecFunc) Compress(payload []byte, quality int) ([]byte, error) {
	return f(payload, quality)
}

// ClampQuality forces q into the [MinQuality, MaxQuality] range
func ClampQuality(q int) int {
	if q < MinQuality {
		return MinQuality
	}
	if q > MaxQuality {
		return MaxQuality
	}
	return q
}
