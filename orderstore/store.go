// Package orderstore persists per-hook call-order overrides in SQLite.
//
// The engine treats the override as an opaque ordered list of plugin
// names (hook.Caller.SetCallOrder); this package is the host-side
// storage for it, so a user's preferred plugin order survives restarts.
// Each stored order carries a BLAKE3 checksum; a mismatch on load means
// the rows were edited out-of-band and the preference should be treated
// as stale.
package orderstore

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"

	"github.com/mattjoyce/armature/hook"
)

// IntegrityError reports a stored order whose checksum no longer matches
// its rows.
type IntegrityError struct {
	Hook     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("call order for hook %q failed integrity check (expected %s, got %s)",
		e.Hook, e.Expected, e.Actual)
}

// Store reads and writes call-order overrides.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already-open database. Callers own db's lifetime.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS hook_call_order (
  hook_name   TEXT NOT NULL,
  position    INTEGER NOT NULL,
  plugin_name TEXT NOT NULL,
  PRIMARY KEY (hook_name, position)
);`,
		`CREATE TABLE IF NOT EXISTS hook_call_order_meta (
  hook_name  TEXT PRIMARY KEY,
  checksum   TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap orderstore: %w", err)
		}
	}
	return nil
}

// Save replaces the stored order for hookName.
func (s *Store) Save(ctx context.Context, hookName string, order []string) error {
	if hookName == "" {
		return fmt.Errorf("hook name is empty")
	}
	if len(order) == 0 {
		return fmt.Errorf("order for hook %q is empty; use Delete to clear", hookName)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM hook_call_order WHERE hook_name = ?;", hookName); err != nil {
		return fmt.Errorf("clear old order: %w", err)
	}
	for i, plugin := range order {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO hook_call_order(hook_name, position, plugin_name) VALUES(?, ?, ?);",
			hookName, i, plugin); err != nil {
			return fmt.Errorf("insert order row: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `
INSERT INTO hook_call_order_meta(hook_name, checksum, updated_at)
VALUES(?, ?, ?)
ON CONFLICT(hook_name) DO UPDATE SET
  checksum = excluded.checksum,
  updated_at = excluded.updated_at;
`, hookName, checksum(order), now); err != nil {
		return fmt.Errorf("upsert order checksum: %w", err)
	}

	return tx.Commit()
}

// Load returns the stored order for hookName, or nil if none is stored.
// A checksum mismatch returns an *IntegrityError.
func (s *Store) Load(ctx context.Context, hookName string) ([]string, error) {
	if hookName == "" {
		return nil, fmt.Errorf("hook name is empty")
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT plugin_name FROM hook_call_order WHERE hook_name = ? ORDER BY position;", hookName)
	if err != nil {
		return nil, fmt.Errorf("read call order: %w", err)
	}
	defer rows.Close()

	var order []string
	for rows.Next() {
		var plugin string
		if err := rows.Scan(&plugin); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order = append(order, plugin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	if order == nil {
		return nil, nil
	}

	var expected string
	err = s.db.QueryRowContext(ctx,
		"SELECT checksum FROM hook_call_order_meta WHERE hook_name = ?;", hookName).Scan(&expected)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &IntegrityError{Hook: hookName, Expected: "<missing>", Actual: checksum(order)}
	}
	if err != nil {
		return nil, fmt.Errorf("read order checksum: %w", err)
	}
	if actual := checksum(order); actual != expected {
		return nil, &IntegrityError{Hook: hookName, Expected: expected, Actual: actual}
	}
	return order, nil
}

// LoadAll returns every stored order keyed by hook name. Hooks failing
// the integrity check are skipped and reported in the error slice.
func (s *Store) LoadAll(ctx context.Context) (map[string][]string, []error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT hook_name FROM hook_call_order;")
	if err != nil {
		return nil, []error{fmt.Errorf("list hooks: %w", err)}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, []error{fmt.Errorf("scan hook name: %w", err)}
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, []error{fmt.Errorf("iterate hook names: %w", err)}
	}

	out := make(map[string][]string, len(names))
	var errs []error
	for _, name := range names {
		order, err := s.Load(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[name] = order
	}
	return out, errs
}

// Delete removes the stored order for hookName.
func (s *Store) Delete(ctx context.Context, hookName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM hook_call_order WHERE hook_name = ?;", hookName); err != nil {
		return fmt.Errorf("delete order rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM hook_call_order_meta WHERE hook_name = ?;", hookName); err != nil {
		return fmt.Errorf("delete order checksum: %w", err)
	}
	return tx.Commit()
}

// Restore applies every stored order to its hook caller via lookup.
// Hooks with no caller (plugin set changed since the order was saved)
// are skipped. lookup is typically Registry.Hook.
func (s *Store) Restore(ctx context.Context, lookup func(hookName string) *hook.Caller) []error {
	orders, errs := s.LoadAll(ctx)
	for name, order := range orders {
		hc := lookup(name)
		if hc == nil {
			continue
		}
		if err := hc.SetCallOrder(order); err != nil {
			errs = append(errs, fmt.Errorf("restore order for hook %q: %w", name, err))
		}
	}
	return errs
}

// checksum fingerprints an order list. JSON keeps the encoding
// unambiguous for lists whose names contain separators.
func checksum(order []string) string {
	data, _ := json.Marshal(order)
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
