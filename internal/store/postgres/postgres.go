// Package postgres is the store.Store driver for the cloud build targets.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/echovault/echovault/internal/model"
	"github.com/echovault/echovault/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// PollInterval is how often Subscribe re-reads the entry list.
var PollInterval = time.Second

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Entries() store.Entries { return &entries{db: s.db} }

// HealthPing implements health.HealthPinger for the Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Bootstrap verifies connectivity and applies the schema.
func Bootstrap(ctx context.Context, dsn string) error {
	if dsn == "" {
		return nil
	}
	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return EnsureSchema(ctx, db)
}

type entries struct{ db *sql.DB }

func placeholders(n, start int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(ps, ",")
}

var selectEntry = `SELECT ` + store.EntryColumns + ` FROM journal_entries`

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
		`INSERT INTO journal_entries (`+store.EntryColumns+`) VALUES (`+placeholders(store.EntryColumnCount, 1)+`)`,
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

	cur, err := store.ScanEntry(tx.QueryRowContext(ctx, selectEntry+` WHERE user_id=$1 AND entry_id=$2 FOR UPDATE`, userID, entryID))
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
	sets := make([]string, len(store.MutableColumns))
	for i, c := range store.MutableColumns {
		sets[i] = fmt.Sprintf("%s=$%d", c, i+1)
	}
	n := len(args)
	args = append(args, userID, entryID)
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE journal_entries SET %s WHERE user_id=$%d AND entry_id=$%d`, strings.Join(sets, ","), n+1, n+2),
		args...); err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cur, nil
}

func (e *entries) GetByID(ctx context.Context, userID, entryID string) (*model.Entry, error) {
	out, err := store.ScanEntry(e.db.QueryRowContext(ctx, selectEntry+` WHERE user_id=$1 AND entry_id=$2`, userID, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", entryID, model.ErrNotFound)
	}
	return out, err
}

func (e *entries) List(ctx context.Context, req model.ListEntriesRequest) ([]*model.Entry, error) {
	query := selectEntry + ` WHERE user_id=$1`
	args := []any{req.UserID}
	if req.Before != nil {
		args = append(args, req.Before.UTC())
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	if req.After != nil {
		args = append(args, req.After.UTC())
		query += fmt.Sprintf(" AND created_at > $%d", len(args))
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
