// Package postgres implements the service repositories on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/brightpixel/agency-portal/internal/config"
)

const defaultLimit = 50

// Open connects to PostgreSQL with the configured pool settings and checks
// the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("postgres: database url is empty")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// jsonColumn stores a Go value in a JSONB column.
type jsonColumn[T any] struct{ V *T }

func (j jsonColumn[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.V)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j jsonColumn[T]) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("jsonColumn: cannot scan %T", src)
	}
	return json.Unmarshal(b, j.V)
}

// where accumulates numbered predicates for dynamic queries.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(format string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(format, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the query and args.
func (w *where) page(q string, limit, offset int) (string, []any) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	n := len(w.args)
	q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2)
	return q, append(append([]any{}, w.args...), limit, offset)
}

// setter accumulates column assignments for partial updates.
type setter struct {
	sets []string
	args []any
}

func (s *setter) add(col string, val any) {
	s.args = append(s.args, val)
	s.sets = append(s.sets, fmt.Sprintf("%s = $%d", col, len(s.args)))
}

func (s *setter) raw(expr string) {
	s.sets = append(s.sets, expr)
}

func (s *setter) empty() bool { return len(s.sets) == 0 }

// build returns "UPDATE table SET ... WHERE id = $n" and its args.
func (s *setter) build(table, id string) (string, []any) {
	args := append(append([]any{}, s.args...), id)
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(s.sets, ", "), len(args)), args
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
