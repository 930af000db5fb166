package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/blake2b"
)

// DocumentRow is the catalog entry for one stored document.
type DocumentRow struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RevisionRow is one stored snapshot. Checksum is the BLAKE2b-256 of the
// snapshot bytes; DigestLo/Hi are the document content digest at save
// time, kept separately so revisions can be diffed without decoding.
type RevisionRow struct {
	DocumentID uuid.UUID
	Revision   int32
	Snapshot   []byte
	ByteCount  int32
	Checksum   []byte
	DigestLo   uint64
	DigestHi   uint64
	CreatedAt  time.Time
}

// ErrNotFound is returned when a document or revision does not exist.
var ErrNotFound = errors.New("persist: not found")

// ErrChecksum is returned when a loaded snapshot fails verification.
var ErrChecksum = errors.New("persist: snapshot checksum mismatch")

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Create registers a new document and returns its id.
func (r *DocumentRepo) Create(ctx context.Context, name string) (uuid.UUID, error) {
	id := uuid.New()
	if _, err := r.db.Pool.Exec(ctx,
		`INSERT INTO documents (id, name) VALUES ($1, $2)`, id, name,
	); err != nil {
		return uuid.Nil, fmt.Errorf("create document: %w", err)
	}
	return id, nil
}

func (r *DocumentRepo) Rename(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE documents SET name = $2, updated_at = now() WHERE id = $1`, id, name,
	)
	if err != nil {
		return fmt.Errorf("rename document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) Get(ctx context.Context, id uuid.UUID) (*DocumentRow, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM documents WHERE id = $1`, id)
	var d DocumentRow
	if err := row.Scan(&d.ID, &d.Name, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &d, nil
}

func (r *DocumentRepo) List(ctx context.Context) ([]DocumentRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, name, created_at, updated_at FROM documents ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		var d DocumentRow
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveRevision stores a snapshot as the next revision and clears the
// command journal up to it, in one transaction. Journal entries older
// than the revision are replayed no more, so they go.
func (r *DocumentRepo) SaveRevision(ctx context.Context, id uuid.UUID, snapshot []byte, digestLo, digestHi uint64) (int32, error) {
	sum := blake2b.Sum256(snapshot)

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("save revision begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var next int32
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(revision), 0) + 1 FROM document_revisions WHERE document_id = $1`, id,
	).Scan(&next); err != nil {
		return 0, fmt.Errorf("next revision: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO document_revisions
		   (document_id, revision, snapshot, byte_count, checksum, digest_lo, digest_hi)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, next, snapshot, int32(len(snapshot)), sum[:], int64(digestLo), int64(digestHi),
	); err != nil {
		return 0, fmt.Errorf("insert revision: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE documents SET updated_at = now() WHERE id = $1`, id,
	); err != nil {
		return 0, fmt.Errorf("touch document: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM command_journal WHERE document_id = $1`, id,
	); err != nil {
		return 0, fmt.Errorf("clear journal: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("save revision commit: %w", err)
	}
	return next, nil
}

// LoadLatestRevision returns the newest snapshot after verifying its
// checksum.
func (r *DocumentRepo) LoadLatestRevision(ctx context.Context, id uuid.UUID) (*RevisionRow, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT document_id, revision, snapshot, byte_count, checksum, digest_lo, digest_hi, created_at
		   FROM document_revisions
		  WHERE document_id = $1
		  ORDER BY revision DESC
		  LIMIT 1`, id)
	var rev RevisionRow
	var lo, hi int64
	if err := row.Scan(&rev.DocumentID, &rev.Revision, &rev.Snapshot, &rev.ByteCount,
		&rev.Checksum, &lo, &hi, &rev.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load revision: %w", err)
	}
	rev.DigestLo, rev.DigestHi = uint64(lo), uint64(hi)

	sum := blake2b.Sum256(rev.Snapshot)
	if len(rev.Checksum) != len(sum) || string(rev.Checksum) != string(sum[:]) {
		return nil, ErrChecksum
	}
	return &rev, nil
}
