// Package pgstore implements store.Store directly on an Odoo PostgreSQL
// database. Models map to tables by replacing dots with underscores, as
// the Odoo ORM does.
//
// Model methods are not available at this level, so Execute always fails
// with store.ErrUnsupported.
package pgstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/clodoo/internal/store"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Store is a store.Store backed by SQL.
type Store struct {
	db DBTX
}

var _ store.Store = (*Store)(nil)

// New wraps a pool or transaction.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Table returns the quoted table name for a model.
func Table(model string) string {
	return pgx.Identifier{strings.ReplaceAll(model, ".", "_")}.Sanitize()
}

func column(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Search implements store.Store.
func (s *Store) Search(ctx context.Context, model string, domain store.Domain, order string) ([]int64, error) {
	where, args, err := Compile(domain, 0)
	if err != nil {
		return nil, err
	}
	orderBy, err := compileOrder(order)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf("SELECT id FROM %s WHERE %s ORDER BY %s", Table(model), where, orderBy)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", model, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", model, err)
	}
	return ids, nil
}

// Read implements store.Store.
func (s *Store) Read(ctx context.Context, model string, ids []int64, fields ...string) ([]store.Record, error) {
	cols := "*"
	if len(fields) > 0 {
		quoted := []string{column("id")}
		for _, f := range fields {
			if f != "id" {
				quoted = append(quoted, column(f))
			}
		}
		cols = strings.Join(quoted, ", ")
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE id = ANY($1) ORDER BY id", cols, Table(model))

	rows, err := s.db.Query(ctx, sql, ids)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", model, err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", model, err)
		}
		rec := make(store.Record, len(values))
		for i, fd := range rows.FieldDescriptions() {
			rec[fd.Name] = fromSQL(values[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", model, err)
	}
	if len(out) < len(ids) {
		return nil, fmt.Errorf("%s%v: %w", model, ids, store.ErrNotFound)
	}
	return out, nil
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, model string, vals map[string]any) (int64, error) {
	keys := slices.Sorted(maps.Keys(vals))
	keys = slices.DeleteFunc(keys, func(k string) bool { return k == "id" })

	var sql string
	args := make([]any, 0, len(keys))
	if len(keys) == 0 {
		sql = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING id", Table(model))
	} else {
		cols := make([]string, len(keys))
		marks := make([]string, len(keys))
		for i, k := range keys {
			cols[i] = column(k)
			marks[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, vals[k])
		}
		sql = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
			Table(model), strings.Join(cols, ", "), strings.Join(marks, ", "))
	}

	var id int64
	if err := s.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("create %s: %w", model, err)
	}
	return id, nil
}

// Write implements store.Store.
func (s *Store) Write(ctx context.Context, model string, ids []int64, vals map[string]any) error {
	keys := slices.Sorted(maps.Keys(vals))
	keys = slices.DeleteFunc(keys, func(k string) bool { return k == "id" })
	if len(keys) == 0 || len(ids) == 0 {
		return nil
	}

	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		sets[i] = fmt.Sprintf("%s = $%d", column(k), i+1)
		args = append(args, vals[k])
	}
	args = append(args, ids)
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = ANY($%d)", Table(model), strings.Join(sets, ", "), len(args))

	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("write %s: %w", model, err)
	}
	if tag.RowsAffected() < int64(len(ids)) {
		return fmt.Errorf("%s%v: %w", model, ids, store.ErrNotFound)
	}
	return nil
}

// Unlink implements store.Store.
func (s *Store) Unlink(ctx context.Context, model string, ids []int64) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", Table(model))
	if _, err := s.db.Exec(ctx, sql, ids); err != nil {
		return fmt.Errorf("unlink %s: %w", model, err)
	}
	return nil
}

// Execute implements store.Store.
func (s *Store) Execute(ctx context.Context, model, method string, args ...any) (any, error) {
	return nil, fmt.Errorf("%s.%s: %w", model, method, store.ErrUnsupported)
}

// fromSQL converts driver values into the plain types the importer uses.
func fromSQL(v any) any {
	switch x := v.(type) {
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return x.Format(time.DateTime)
	}
	return v
}
