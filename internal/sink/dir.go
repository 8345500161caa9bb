package sink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DirSink writes each record to <dir>/<source base name>.txt, or .md for
// markdown records. When two sources share a base name, the later one gets a
// short hash of its path appended so neither replaces the other.
type DirSink struct {
	dir string

	mu     sync.Mutex
	owners map[string]string // output path -> source
}

// NewDirSink returns a sink writing into dir. The directory is created on the
// first write.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir, owners: make(map[string]string)}
}

// PathFor returns the file a record would be written to.
func (s *DirSink) PathFor(rec Record) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolve(rec, false)
}

// resolve picks the output path for rec and, with claim set, reserves it for
// the record's source. Callers hold s.mu.
func (s *DirSink) resolve(rec Record, claim bool) string {
	source := sourceKey(rec.Source)
	base := filepath.Base(rec.Source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	ext := ".txt"
	if rec.Format == FormatMarkdown {
		ext = ".md"
	}

	path := filepath.Join(s.dir, base+ext)
	if owner, ok := s.owners[path]; ok && owner != source {
		sum := sha256.Sum256([]byte(source))
		path = filepath.Join(s.dir, base+"-"+hex.EncodeToString(sum[:4])+ext)
	}
	if claim {
		if s.owners == nil {
			s.owners = make(map[string]string)
		}
		s.owners[path] = source
	}
	return path
}

func sourceKey(source string) string {
	if abs, err := filepath.Abs(source); err == nil {
		return abs
	}
	return filepath.Clean(source)
}

// Write replaces the record's file.
func (s *DirSink) Write(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.resolve(rec, true)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(rec.Text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Close is a no-op.
func (s *DirSink) Close() error { return nil }
