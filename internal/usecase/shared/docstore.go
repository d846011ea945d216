package shared

import (
	"context"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/pkg/errs"
)

var (
	// ErrVersionConflict is returned by DocumentStore.Write when the expected version is stale.
	ErrVersionConflict = errs.New("document version conflict")
	// ErrStoreContention is what callers see once the CAS retry bound is exhausted. It is transient.
	ErrStoreContention = errs.New("grid document contention, retry later")
)

// Version is an opaque token identifying one stored revision of the document.
// The empty version means the document has never been written.
type Version string

const NoVersion Version = ""

type DocumentStore interface {
	Read(ctx context.Context) (*grid.Document, Version, error)
	Write(ctx context.Context, doc *grid.Document, expected Version) (Version, error)
}
