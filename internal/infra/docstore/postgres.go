package docstore

import (
	"context"
	"strconv"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/infra"
	"pixelgrid/internal/infra/db"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/pkg/pgconv"
	"pixelgrid/internal/usecase/shared"
)

const (
	selectDocumentSQL = `SELECT body, version FROM grid_documents WHERE id = $1`

	insertDocumentSQL = `INSERT INTO grid_documents (id, body, version, updated_at)
	VALUES ($1, $2, 1, now())
	ON CONFLICT (id) DO NOTHING`

	updateDocumentSQL = `UPDATE grid_documents
	SET body = $2, version = version + 1, updated_at = now()
	WHERE id = $1 AND version = $3
	RETURNING version`
)

// PostgresStore keeps the document as one jsonb row; the version column is the CAS token.
type PostgresStore struct {
	db    db.DBTX
	id    string
	codec *Codec
}

func NewPostgresStore(dbtx db.DBTX, documentID string, codec *Codec) *PostgresStore {
	return &PostgresStore{db: dbtx, id: documentID, codec: codec}
}

func (s *PostgresStore) Read(ctx context.Context) (*grid.Document, shared.Version, error) {
	var body []byte
	var version int64
	err := s.db.QueryRow(ctx, selectDocumentSQL, s.id).Scan(&body, &version)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return grid.NewDocument(), shared.NoVersion, nil
		}
		return nil, shared.NoVersion, errs.Mark(infra.WrapRepoErr("failed to read grid document", err), errs.ErrStoreUnavailable)
	}
	doc, err := s.codec.Decode(body)
	if err != nil {
		return nil, shared.NoVersion, err
	}
	return doc, shared.Version(strconv.FormatInt(version, 10)), nil
}

func (s *PostgresStore) Write(ctx context.Context, doc *grid.Document, expected shared.Version) (shared.Version, error) {
	body, err := s.codec.Encode(doc)
	if err != nil {
		return shared.NoVersion, err
	}

	if expected == shared.NoVersion {
		tag, err := s.db.Exec(ctx, insertDocumentSQL, s.id, body)
		if err != nil {
			return shared.NoVersion, errs.Mark(infra.WrapRepoErr("failed to create grid document", err), errs.ErrStoreUnavailable)
		}
		if tag.RowsAffected() == 0 {
			return shared.NoVersion, conflict(expected)
		}
		return shared.Version("1"), nil
	}

	want, err := strconv.ParseInt(string(expected), 10, 64)
	if err != nil {
		return shared.NoVersion, errs.Wrapf(err, "malformed version %q", expected)
	}
	var next int64
	if err := s.db.QueryRow(ctx, updateDocumentSQL, s.id, body, want).Scan(&next); err != nil {
		if pgconv.IsNoRows(err) {
			return shared.NoVersion, conflict(expected)
		}
		return shared.NoVersion, errs.Mark(infra.WrapRepoErr("failed to write grid document", err), errs.ErrStoreUnavailable)
	}
	return shared.Version(strconv.FormatInt(next, 10)), nil
}

func conflict(expected shared.Version) error {
	return errs.Mark(
		infra.WrapRepoErr("grid document version moved past "+strconv.Quote(string(expected)), nil, infra.KindVersionConflict),
		shared.ErrVersionConflict)
}
