package compress

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	// Input formats accepted besides JPEG
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// JPEG decodes any registered image format and re-encodes it as a baseline
// JPEG. It holds no state and is safe for concurrent use.
type JPEG struct{}

// NewJPEG creates a JPEG codec
func NewJPEG() *JPEG {
	return &JPEG{}
}

// Compress decodes payload and encodes it again at the clamped quality.
// The stdlib encoder writes 4:2:0 chroma subsampling for color input.
func (j *JPEG) Compress(payload []byte, quality int) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	quality = ClampQuality(quality)

	img, format, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	// Recompressed output is usually smaller than the input
	out := bytes.NewBuffer(make([]byte, 0, len(payload)/2))
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: %s source: %v", ErrEncode, format, err)
	}

	return out.Bytes(), nil
}

// Single compresses one image with the default JPEG codec
func Single(payload []byte, quality int) ([]byte, error) {
	return NewJPEG().Compress(payload, quality)
}
