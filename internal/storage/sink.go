package storage

import (
	"context"
	"errors"
)

// ErrExportNotFound is returned by Get for a name that was never archived.
var ErrExportNotFound = errors.New("export not found")

// ExportSink stores finished journal exports under a file name. Put returns
// where the export ended up (a path or a URL); Get reads it back by name.
type ExportSink interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, name string) ([]byte, error)
	Name() string
}
