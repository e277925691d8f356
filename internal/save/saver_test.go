package save

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func artifact() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 120, 80))
}

func TestSave_PNG(t *testing.T) {
	out := filepath.Join(t.TempDir(), "filled.png")

	require.NoError(t, NewSaver().Save(artifact(), out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 120, decoded.Bounds().Dx())
	assert.Equal(t, 80, decoded.Bounds().Dy())
}

func TestSave_JPEG(t *testing.T) {
	for _, ext := range []string{".jpg", ".jpeg"} {
		out := filepath.Join(t.TempDir(), "filled"+ext)
		require.NoError(t, NewSaver().Save(artifact(), out))

		info, err := os.Stat(out)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestSave_PDF(t *testing.T) {
	out := filepath.Join(t.TempDir(), "filled.pdf")

	require.NoError(t, NewSaver().Save(artifact(), out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Greater(t, len(data), 4)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestSave_UnsupportedExtension(t *testing.T) {
	out := filepath.Join(t.TempDir(), "filled.tiff")

	err := NewSaver().Save(artifact(), out)
	assert.Error(t, err)
}

func TestSave_MissingParentDirectory(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nope", "filled.png")

	err := NewSaver().Save(artifact(), out)
	assert.Error(t, err, "the caller, not the saver, creates parent directories")
}
