// Package sink stores finished document texts.
package sink

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Output formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// Record is one finished document text.
type Record struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Pages     int       `json:"pages"`
	Text      string    `json:"text"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink is a destination for records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new time-ordered record ID.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// NewRecord builds a record with a fresh ID and timestamp.
func NewRecord(source string, pages int, text, format string) Record {
	return Record{
		ID:        NewID(),
		Source:    source,
		Pages:     pages,
		Text:      text,
		Format:    format,
		CreatedAt: time.Now().UTC(),
	}
}

// Multi writes every record to all of its sinks.
type Multi []Sink

// Write writes rec to each sink and joins their errors.
func (m Multi) Write(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes each sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
