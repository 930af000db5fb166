package persist

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// JournalEntry is one applied command buffer, kept so a crash between
// snapshots loses nothing: replaying the journal on top of the latest
// revision reproduces the document.
type JournalEntry struct {
	Seq    int32
	Buffer []byte
}

type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// Append writes a batch of buffers in one transaction, numbered after
// the current tail. Returns the last assigned sequence.
func (r *JournalRepo) Append(ctx context.Context, id uuid.UUID, buffers [][]byte) (int32, error) {
	if len(buffers) == 0 {
		return 0, nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var seq int32
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM command_journal WHERE document_id = $1`, id,
	).Scan(&seq); err != nil {
		return 0, fmt.Errorf("journal tail: %w", err)
	}

	for _, buf := range buffers {
		seq++
		if _, err := tx.Exec(ctx,
			`INSERT INTO command_journal (document_id, seq, buffer) VALUES ($1, $2, $3)`,
			id, seq, buf,
		); err != nil {
			return 0, fmt.Errorf("journal insert: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("journal commit: %w", err)
	}
	return seq, nil
}

// LoadSince returns the journal tail after the given sequence, in order.
func (r *JournalRepo) LoadSince(ctx context.Context, id uuid.UUID, after int32) ([]JournalEntry, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT seq, buffer FROM command_journal
		  WHERE document_id = $1 AND seq > $2
		  ORDER BY seq`, id, after)
	if err != nil {
		return nil, fmt.Errorf("journal load: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.Seq, &e.Buffer); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
