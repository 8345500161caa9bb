package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/pagetext-mcp/internal/document"
)

func TestRecognizeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.png")
	if err := os.WriteFile(path, []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	var got []byte
	r := RecognizerFunc(func(ctx context.Context, image []byte) ([]document.Word, error) {
		got = image
		return []document.Word{{Text: "hi", Confidence: 90}}, nil
	})

	words, err := RecognizeFile(context.Background(), r, path)
	if err != nil {
		t.Fatalf("RecognizeFile failed: %v", err)
	}
	if string(got) != "png-bytes" {
		t.Errorf("recognizer got %q, want file contents", got)
	}
	if len(words) != 1 || words[0].Text != "hi" {
		t.Errorf("unexpected words: %+v", words)
	}
}

func TestRecognizeFile_Errors(t *testing.T) {
	called := false
	r := RecognizerFunc(func(ctx context.Context, image []byte) ([]document.Word, error) {
		called = true
		return nil, nil
	})
	if _, err := RecognizeFile(context.Background(), r, "/nonexistent/image.png"); err == nil {
		t.Error("RecognizeFile should fail for a missing file")
	}
	if called {
		t.Error("recognizer should not run when the file cannot be read")
	}

	boom := errors.New("boom")
	path := filepath.Join(t.TempDir(), "page.png")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	failing := RecognizerFunc(func(ctx context.Context, image []byte) ([]document.Word, error) {
		return nil, boom
	})
	if _, err := RecognizeFile(context.Background(), failing, path); !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}
}

func TestOptions(t *testing.T) {
	o := defaultOptions()
	if o.language != "eng" || o.pageSegMode != 3 {
		t.Fatalf("unexpected defaults: %+v", o)
	}

	for _, opt := range []Option{
		WithLanguage("eng+deu"),
		WithPageSegMode(6),
		WithTessdataPrefix("/opt/tessdata"),
	} {
		opt(&o)
	}
	if o.language != "eng+deu" || o.pageSegMode != 6 || o.tessdataPrefix != "/opt/tessdata" {
		t.Errorf("options not applied: %+v", o)
	}

	WithPageSegMode(14)(&o)
	WithPageSegMode(-1)(&o)
	if o.pageSegMode != 6 {
		t.Errorf("out of range mode changed setting to %d", o.pageSegMode)
	}
	WithLanguage("")(&o)
	if o.language != "eng+deu" {
		t.Errorf("empty language changed setting to %q", o.language)
	}
}
