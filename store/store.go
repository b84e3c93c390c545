// Package store persists histograms of measured bitstrings in sqlite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	tableCounts = "counts"
)

// Count is the number of times a bitstring was observed.
type Count struct {
	Bitstring string
	N         int
}

// Counts is a histogram of bitstrings backed by a sqlite database.
type Counts struct {
	Path string

	db *sql.DB
}

// NewCounts creates an empty histogram at dbPath, dropping any previous one.
func NewCounts(dbPath string) (*Counts, error) {
	c := &Counts{Path: dbPath}
	var err error
	c.db, err = newDB(c.Path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return c, nil
}

func (c *Counts) Close() error {
	return c.db.Close()
}

// Add records one observation per bitstring within a single transaction.
func (c *Counts) Add(ctx context.Context, bitstrings [][]byte) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr := fmt.Sprintf(`INSERT INTO %s (b, n) VALUES (?, 1) ON CONFLICT (b) DO UPDATE SET n = n + 1`, tableCounts)
	stmt, err := tx.PrepareContext(ctx, sqlStr)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, sqlStr)
	}
	defer stmt.Close()

	for _, b := range bitstrings {
		if _, err := stmt.ExecContext(ctx, Format(b)); err != nil {
			tx.Rollback()
			return errors.Wrap(err, fmt.Sprintf("%v", b))
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// All returns the histogram ordered by bitstring.
func (c *Counts) All(ctx context.Context) ([]Count, error) {
	sqlStr := fmt.Sprintf(`SELECT b, n FROM %s ORDER BY b`, tableCounts)
	rows, err := c.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	counts := make([]Count, 0)
	for rows.Next() {
		var cnt Count
		if err := rows.Scan(&cnt.Bitstring, &cnt.N); err != nil {
			return nil, errors.Wrap(err, "")
		}
		counts = append(counts, cnt)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return counts, nil
}

// Get returns the count of a bitstring.
func (c *Counts) Get(ctx context.Context, b []byte) (int, error) {
	sqlStr := fmt.Sprintf(`SELECT n FROM %s WHERE b=?`, tableCounts)
	var n int
	err := c.db.QueryRowContext(ctx, sqlStr, Format(b)).Scan(&n)
	switch {
	case err == sql.ErrNoRows:
		return 0, nil
	case err != nil:
		return -1, errors.Wrap(err, "")
	default:
		return n, nil
	}
}

// Total returns the number of observations.
func (c *Counts) Total(ctx context.Context) (int, error) {
	sqlStr := fmt.Sprintf(`SELECT COALESCE(SUM(n), 0) FROM %s`, tableCounts)
	var n int
	if err := c.db.QueryRowContext(ctx, sqlStr).Scan(&n); err != nil {
		return -1, errors.Wrap(err, "")
	}
	return n, nil
}

// Format renders a bitstring such as []byte{0, 1, 1} as "011".
func Format(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, bit := range b {
		switch bit {
		case 1:
			sb.WriteByte('1')
		default:
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func newDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}

	return db, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableCounts)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr = fmt.Sprintf(`CREATE TABLE %s (b TEXT PRIMARY KEY, n INTEGER NOT NULL) STRICT`, tableCounts)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}
