package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLiteStore keeps documents as JSON text in the documents table. Live
// queries are driven by an in-process broker, so only writes made through the
// same SQLiteStore are observed.
type SQLiteStore struct {
	db     *sql.DB
	broker *broker
	logger *slog.Logger
	now    func() time.Time
}

func NewSQLiteStore(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:     db,
		broker: newBroker(),
		logger: logger.With("component", "docstore", "backend", "sqlite"),
		now:    time.Now,
	}
}

func (s *SQLiteStore) NewID() string {
	return uuid.NewString()
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return &Snapshot{ID: id, Data: json.RawMessage(data)}, nil
}

func (s *SQLiteStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error) {
	where, args, err := buildWhere(collection, filters)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE `+where+` ORDER BY created_at, rowid`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		snaps = append(snaps, Snapshot{ID: id, Data: json.RawMessage(data)})
	}
	return snaps, rows.Err()
}

func buildWhere(collection string, filters []Filter) (string, []any, error) {
	clauses := []string{"collection = ?"}
	args := []any{collection}

	for _, f := range filters {
		if err := f.validate(); err != nil {
			return "", nil, err
		}
		path := "$." + f.Field

		switch f.Op {
		case OpEq:
			if f.Value == nil {
				clauses = append(clauses, "json_extract(data, ?) IS NULL")
				args = append(args, path)
				continue
			}
			clauses = append(clauses, "json_extract(data, ?) = ?")
			args = append(args, path, f.Value)
		case OpIn:
			if len(f.Values) == 0 {
				clauses = append(clauses, "0")
				continue
			}
			marks := strings.TrimSuffix(strings.Repeat("?, ", len(f.Values)), ", ")
			clauses = append(clauses, "json_extract(data, ?) IN ("+marks+")")
			args = append(args, path)
			for _, v := range f.Values {
				args = append(args, v)
			}
		default:
			return "", nil, fmt.Errorf("unknown filter op %d", f.Op)
		}
	}

	return strings.Join(clauses, " AND "), args, nil
}

func (s *SQLiteStore) Set(ctx context.Context, collection, id string, value any) error {
	data, err := encodeObject(value)
	if err != nil {
		return err
	}

	now := s.now().UnixMilli()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(data), now, now,
	)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}

	s.broker.publish(collection)
	return nil
}

func (s *SQLiteStore) ArrayUnion(ctx context.Context, collection, id, field string, values ...string) error {
	return s.updateArray(ctx, collection, id, field, func(current []any) []any {
		for _, v := range values {
			if !containsValue(current, v) {
				current = append(current, v)
			}
		}
		return current
	})
}

func (s *SQLiteStore) ArrayRemove(ctx context.Context, collection, id, field string, values ...string) error {
	return s.updateArray(ctx, collection, id, field, func(current []any) []any {
		kept := current[:0]
		for _, e := range current {
			remove := false
			for _, v := range values {
				if e == any(v) {
					remove = true
					break
				}
			}
			if !remove {
				kept = append(kept, e)
			}
		}
		return kept
	})
}

func containsValue(list []any, v string) bool {
	for _, e := range list {
		if e == any(v) {
			return true
		}
	}
	return false
}

// updateArray applies fn to one array field inside a transaction.
func (s *SQLiteStore) updateArray(ctx context.Context, collection, id, field string, fn func([]any) []any) error {
	if err := validateField(field); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s/%s: %w", collection, id, err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}

	var current []any
	switch v := doc[field].(type) {
	case nil:
	case []any:
		current = v
	default:
		return fmt.Errorf("field %s of %s/%s is not an array", field, collection, id)
	}

	updated := fn(current)
	if updated == nil {
		updated = []any{}
	}
	doc[field] = updated

	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(encoded), s.now().UnixMilli(), collection, id,
	); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.broker.publish(collection)
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.broker.publish(collection)
	}
	return nil
}

func (s *SQLiteStore) Watch(ctx context.Context, collection string, filters ...Filter) (*Subscription, error) {
	for _, f := range filters {
		if err := f.validate(); err != nil {
			return nil, err
		}
	}

	notify, release := s.broker.subscribe(collection)
	query := func(ctx context.Context) ([]Snapshot, error) {
		return s.Query(ctx, collection, filters...)
	}
	return startWatch(ctx, notify, release, query, s.logger), nil
}
