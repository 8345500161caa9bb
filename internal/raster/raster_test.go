package raster

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/pagetext-mcp/internal/raster/rastertest"
)

func TestDPI(t *testing.T) {
	assert.Equal(t, 144.0, DPI(DefaultScale))
	assert.Equal(t, 72.0, DPI(1))
}

func TestCheckFormat(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o644))
		return p
	}

	assert.NoError(t, CheckFormat(write("ok.pdf", []byte("%PDF-1.7\n..."))))
	assert.NoError(t, CheckFormat(write("upper.PDF", []byte("%PDF-1.4"))))
	assert.NoError(t, CheckFormat(write("junk-prefix.pdf", append(bytes.Repeat([]byte{' '}, 100), []byte("%PDF-1.4")...))),
		"header may appear after leading bytes")

	late := append(bytes.Repeat([]byte{' '}, 2000), []byte("%PDF-1.4")...)
	assert.ErrorIs(t, CheckFormat(write("late.pdf", late)), ErrUnrecognizedFormat)
	assert.ErrorIs(t, CheckFormat(write("notes.txt", []byte("%PDF-1.4"))), ErrUnrecognizedFormat)
	assert.ErrorIs(t, CheckFormat(write("image.pdf", []byte("\x89PNG\r\n"))), ErrUnrecognizedFormat)
	assert.ErrorIs(t, CheckFormat(write("empty.pdf", nil)), ErrUnrecognizedFormat)

	err := CheckFormat(filepath.Join(dir, "missing.pdf"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnrecognizedFormat))
}

func TestCheckPage(t *testing.T) {
	assert.NoError(t, CheckPage(0, 1))
	assert.NoError(t, CheckPage(4, 5))
	assert.Error(t, CheckPage(5, 5))
	assert.Error(t, CheckPage(-1, 5))
	assert.Error(t, CheckPage(0, 0))
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()

	scanned := rastertest.WritePDF(t, dir, "scanned.pdf", []string{"", ""})
	info, err := Probe(scanned)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Pages)
	assert.False(t, info.HasTextLayer)
	assert.Positive(t, info.SizeBytes)

	digital := rastertest.WritePDF(t, dir, "digital.pdf", []string{"Hello"})
	info, err = Probe(digital)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pages)
	assert.True(t, info.HasTextLayer)
}

func TestProbe_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\nthis is not a pdf body"), 0o644))
	_, err := Probe(path)
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)
}

func TestFitzOpener_RejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG"), 0o644))
	_, err := FitzOpener{}.Open(path)
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)
}

func TestFitzOpener_Render(t *testing.T) {
	path := rastertest.WritePDF(t, t.TempDir(), "doc.pdf", []string{"Hello", "World"})
	doc, err := FitzOpener{}.Open(path)
	if err != nil && strings.Contains(err.Error(), "mupdf") {
		t.Skipf("MuPDF unavailable: %v", err)
	}
	require.NoError(t, err)
	defer doc.Close()

	require.Equal(t, 2, doc.PageCount())

	data, err := doc.RenderPNG(context.Background(), 1, DefaultScale)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	// Letter size at 144 DPI.
	assert.InDelta(t, 1224, img.Bounds().Dx(), 2)
	assert.InDelta(t, 1584, img.Bounds().Dy(), 2)

	_, err = doc.RenderPNG(context.Background(), 2, DefaultScale)
	assert.Error(t, err)
	_, err = doc.RenderPNG(context.Background(), 0, 0)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = doc.RenderPNG(ctx, 0, DefaultScale)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, doc.Close())
	require.NoError(t, doc.Close())
	_, err = doc.RenderPNG(context.Background(), 0, DefaultScale)
	assert.Error(t, err)
}
