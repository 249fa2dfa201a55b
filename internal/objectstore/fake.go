package objectstore

import (
	"context"
	"io"
	"strings"
)

// Fake is an in-memory Reader used by tests: a fixed map of URI to
// content. Opening a URI not present in the map yields a NotFoundError,
// matching the real reader's behavior.
type Fake struct {
	Contents map[string]string
}

// NewFake builds a Fake with no registered content.
func NewFake() *Fake {
	return &Fake{Contents: make(map[string]string)}
}

func (f *Fake) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	content, ok := f.Contents[uri]
	if !ok {
		return nil, &NotFoundError{URI: uri, Err: io.ErrUnexpectedEOF}
	}
	return io.NopCloser(strings.NewReader(content)), nil
}
