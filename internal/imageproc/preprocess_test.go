package imageproc_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunv-ux/getglow/internal/imageproc"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x += 4 {
		for y := 0; y < height; y += 4 {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcess_SmallImagePassesThrough(t *testing.T) {
	p := imageproc.New(10<<20, 1280, 85)

	res, err := p.Process(encodePNG(t, 100, 60))
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", res.ContentType)
	assert.Equal(t, 100, res.Width)
	assert.Equal(t, 60, res.Height)
	assert.NotEmpty(t, res.Data)

	// Output must itself decode as JPEG.
	_, format, err := image.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestProcess_DownscalesOversizedImage(t *testing.T) {
	p := imageproc.New(10<<20, 200, 85)

	res, err := p.Process(encodePNG(t, 800, 400))
	require.NoError(t, err)

	assert.Equal(t, 200, res.Width)
	assert.Equal(t, 100, res.Height, "aspect ratio should be preserved")
}

func TestProcess_DownscalesTallImage(t *testing.T) {
	p := imageproc.New(10<<20, 200, 85)

	res, err := p.Process(encodePNG(t, 300, 600))
	require.NoError(t, err)

	assert.Equal(t, 100, res.Width)
	assert.Equal(t, 200, res.Height)
}

// webpFixture is a 1x1 lossless WebP file assembled by hand; the webp
// package decodes but does not encode.
func webpFixture() []byte {
	return []byte{
		'R', 'I', 'F', 'F', 0x14, 0x00, 0x00, 0x00,
		'W', 'E', 'B', 'P', 'V', 'P', '8', 'L',
		0x08, 0x00, 0x00, 0x00,
		0x2f, 0x00, 0x00, 0x00, 0x00, 0x88, 0x88, 0x08,
	}
}

func TestProcess_AcceptsWebP(t *testing.T) {
	p := imageproc.New(10<<20, 1280, 85)

	res, err := p.Process(webpFixture())
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", res.ContentType)
	assert.Equal(t, 1, res.Width)
	assert.Equal(t, 1, res.Height)

	_, format, err := image.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestProcess_RejectsNonImage(t *testing.T) {
	p := imageproc.New(10<<20, 1280, 85)

	_, err := p.Process([]byte("definitely not image bytes"))
	assert.ErrorIs(t, err, imageproc.ErrUnsupportedFormat)
}

func TestProcess_RejectsOversizedUpload(t *testing.T) {
	p := imageproc.New(64, 1280, 85)

	_, err := p.Process(encodePNG(t, 100, 100))
	assert.ErrorIs(t, err, imageproc.ErrTooLarge)
}

func TestProcess_RejectsEmptyInput(t *testing.T) {
	p := imageproc.New(10<<20, 1280, 85)

	_, err := p.Process(nil)
	assert.ErrorIs(t, err, imageproc.ErrUnsupportedFormat)
}
