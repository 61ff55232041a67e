package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/echovault/echovault/internal/model"
	"github.com/echovault/echovault/internal/store"
)

// PollInterval is how often Subscribe re-reads the entry list.
var PollInterval = time.Second

// NewWithDB constructs a SQLite store. Call EnsureSchema first.
func NewWithDB(db *sql.DB) store.Store { return &liteStore{db: db} }

type liteStore struct{ db *sql.DB }

func (s *liteStore) Entries() store.Entries { return &entries{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *liteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type entries struct{ db *sql.DB }

var selectEntry = `SELECT ` + store.EntryColumns + ` FROM journal_entries`

func marks(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (e *entries) Create(ctx context.Context, in *model.Entry) (*model.Entry, error) {
	out := *in
	out.ID = uuid.New().String()
	now := time.Now().UTC()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	if out.EffectiveDate.IsZero() {
		out.EffectiveDate = out.CreatedAt
	}
	out.UpdatedAt = now
	if out.Tags == nil {
		out.Tags = []string{}
	}

	args, err := store.EntryArgs(&out)
	if err != nil {
		return nil, err
	}
	if _, err := e.db.ExecContext(ctx,
		`INSERT INTO journal_entries (`+store.EntryColumns+`) VALUES (`+marks(store.EntryColumnCount)+`)`,
		args...); err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	return &out, nil
}

func (e *entries) Update(ctx context.Context, userID, entryID string, patch model.EntryPatch) (*model.Entry, error) {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := store.ScanEntry(tx.QueryRowContext(ctx, selectEntry+` WHERE user_id=? AND entry_id=?`, userID, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", entryID, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	patch.Apply(cur)
	cur.UpdatedAt = time.Now().UTC()

	args, err := store.MutableArgs(cur)
	if err != nil {
		return nil, err
	}
	args = append(args, userID, entryID)
	if _, err := tx.ExecContext(ctx,
		`UPDATE journal_entries SET `+strings.Join(store.MutableColumns, "=?,")+`=? WHERE user_id=? AND entry_id=?`,
		args...); err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cur, nil
}

func (e *entries) GetByID(ctx context.Context, userID, entryID string) (*model.Entry, error) {
	out, err := store.ScanEntry(e.db.QueryRowContext(ctx, selectEntry+` WHERE user_id=? AND entry_id=?`, userID, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", entryID, model.ErrNotFound)
	}
	return out, err
}

func (e *entries) List(ctx context.Context, req model.ListEntriesRequest) ([]*model.Entry, error) {
	query := selectEntry + ` WHERE user_id=?`
	args := []any{req.UserID}
	if req.Before != nil {
		query += " AND created_at < ?"
		args = append(args, req.Before.UTC())
	}
	if req.After != nil {
		query += " AND created_at > ?"
		args = append(args, req.After.UTC())
	}
	query += " ORDER BY created_at DESC, entry_id DESC"
	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", req.Limit)
	}
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Entry
	for rows.Next() {
		m, err := store.ScanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (e *entries) Subscribe(ctx context.Context, req model.ListEntriesRequest) (<-chan []*model.Entry, error) {
	return store.PollSubscribe(ctx, e.List, req, PollInterval), nil
}
