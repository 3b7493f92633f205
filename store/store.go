package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hupe1980/meshkernel/logging"
)

// Row is one record returned from a query, column names paired with string
// values. The shape mirrors what the guest bindings expose to components.
type Row struct {
	Columns []string `json:"columns"`
	Values  []string `json:"values"`
}

// Schema is the backing table for scoped key/value state. The kernel applies
// it once when it opens the pool.
const Schema = `
CREATE TABLE IF NOT EXISTS kv_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// SqlStore mediates all key/value access for one scope. Every operation
// passes the policy before touching the pooled backend; the pool is shared
// across stores and provides its own concurrency control, so a store is
// cheap to create per call site.
type SqlStore struct {
	db     *sql.DB
	scope  string
	policy QueryPolicy
	logger logging.Logger
}

// NewSqlStore binds a scope to the shared pool under the given policy. A nil
// policy defaults to PrefixPolicy and a nil logger to NoOpLogger.
func NewSqlStore(db *sql.DB, scope string, policy QueryPolicy, logger logging.Logger) *SqlStore {
	if policy == nil {
		policy = PrefixPolicy{}
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &SqlStore{db: db, scope: scope, policy: policy, logger: logger}
}

// Scope returns the namespace this store issues operations under.
func (s *SqlStore) Scope() string { return s.scope }

// Query runs a read or scan operation and returns the matching rows. Keys in
// the result are reported in their rewritten (post-policy) form.
func (s *SqlStore) Query(ctx context.Context, op Op) ([]Row, error) {
	authorized, err := s.authorize(op)
	if err != nil {
		return nil, err
	}
	switch authorized.Kind {
	case OpRead:
		row := s.db.QueryRowContext(ctx, `SELECT key, value FROM kv_state WHERE key = ?`, authorized.Key)
		var key, value string
		if err := row.Scan(&key, &value); err != nil {
			if err == sql.ErrNoRows {
				return nil, nil
			}
			return nil, fmt.Errorf("query backend: %w", err)
		}
		return []Row{{Columns: []string{"key", "value"}, Values: []string{key, value}}}, nil
	case OpScan:
		rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv_state WHERE key LIKE ? ESCAPE '\' ORDER BY key`, likePattern(authorized.Prefix))
		if err != nil {
			return nil, fmt.Errorf("query backend: %w", err)
		}
		defer rows.Close()
		var out []Row
		for rows.Next() {
			var key, value string
			if err := rows.Scan(&key, &value); err != nil {
				return nil, fmt.Errorf("query backend: %w", err)
			}
			out = append(out, Row{Columns: []string{"key", "value"}, Values: []string{key, value}})
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query backend: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("query requires a read or scan op, got %s", authorized.Kind)
	}
}

// Execute runs a write or delete operation and returns the affected row
// count.
func (s *SqlStore) Execute(ctx context.Context, op Op) (int64, error) {
	authorized, err := s.authorize(op)
	if err != nil {
		return 0, err
	}
	var result sql.Result
	switch authorized.Kind {
	case OpWrite:
		result, err = s.db.ExecContext(ctx,
			`INSERT INTO kv_state (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			authorized.Key, authorized.Value, time.Now().UTC())
	case OpDelete:
		result, err = s.db.ExecContext(ctx, `DELETE FROM kv_state WHERE key = ?`, authorized.Key)
	default:
		return 0, fmt.Errorf("execute requires a write or delete op, got %s", authorized.Kind)
	}
	if err != nil {
		return 0, fmt.Errorf("execute backend: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("execute backend: %w", err)
	}
	return affected, nil
}

// Get returns the value stored under key, with ok reporting existence.
func (s *SqlStore) Get(ctx context.Context, key string) (string, bool, error) {
	rows, err := s.Query(ctx, Op{Kind: OpRead, Key: key})
	if err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Values[1], true, nil
}

// Set upserts value under key.
func (s *SqlStore) Set(ctx context.Context, key, value string) error {
	_, err := s.Execute(ctx, Op{Kind: OpWrite, Key: key, Value: value})
	return err
}

// Delete removes key, reporting whether a record existed.
func (s *SqlStore) Delete(ctx context.Context, key string) (bool, error) {
	affected, err := s.Execute(ctx, Op{Kind: OpDelete, Key: key})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// List returns all rows whose logical key starts with prefix.
func (s *SqlStore) List(ctx context.Context, prefix string) ([]Row, error) {
	return s.Query(ctx, Op{Kind: OpScan, Prefix: prefix})
}

func (s *SqlStore) authorize(op Op) (Op, error) {
	authorized, err := s.policy.Authorize(s.scope, op)
	if err != nil {
		resource := op.Key
		if op.Kind == OpScan {
			resource = op.Prefix
		}
		logging.Audit(s.logger, logging.AccessDenied{Scope: s.scope, Resource: resource})
		return Op{}, err
	}
	return authorized, nil
}

// likePattern escapes LIKE metacharacters so a prefix match cannot be
// widened by % or _ inside a key.
func likePattern(prefix string) string {
	escaped := make([]byte, 0, len(prefix)+8)
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if c == '%' || c == '_' || c == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, c)
	}
	return string(escaped) + "%"
}
