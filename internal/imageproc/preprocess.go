// Package imageproc normalizes uploaded photos before they are persisted or
// sent upstream: decode, downscale, re-encode as JPEG.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	// Registered decoders for the formats accepted at upload.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooLarge          = errors.New("image exceeds size limit")
)

// Preprocessor validates and normalizes uploaded image bytes.
type Preprocessor struct {
	maxBytes     int64
	maxDimension int
	jpegQuality  int
}

func New(maxBytes int64, maxDimension, jpegQuality int) *Preprocessor {
	return &Preprocessor{
		maxBytes:     maxBytes,
		maxDimension: maxDimension,
		jpegQuality:  jpegQuality,
	}
}

// Result is a normalized image ready for storage and inference.
type Result struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Process decodes, downscales to the configured max dimension preserving
// aspect ratio, and re-encodes as JPEG. Undecodable input is rejected with
// ErrUnsupportedFormat regardless of the declared content type.
func (p *Preprocessor) Process(data []byte) (*Result, error) {
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), p.maxBytes)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > p.maxDimension || bounds.Dy() > p.maxDimension {
		img = imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	out := img.Bounds()
	return &Result{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Width:       out.Dx(),
		Height:      out.Dy(),
	}, nil
}
