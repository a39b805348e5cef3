package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

// fakeQuerier implements the consumer interface for tests.
type fakeQuerier struct {
	getFn    func(ctx context.Context, dest any, query string, args ...any) error
	selectFn func(ctx context.Context, dest any, query string, args ...any) error
	execFn   func(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (f *fakeQuerier) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	if f.getFn != nil {
		return f.getFn(ctx, dest, query, args...)
	}
	return sql.ErrNoRows
}

func (f *fakeQuerier) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	if f.selectFn != nil {
		return f.selectFn(ctx, dest, query, args...)
	}
	return nil
}

func (f *fakeQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if f.execFn != nil {
		return f.execFn(ctx, query, args...)
	}
	return rowsAffected(1), nil
}

type rowsAffected int64

func (n rowsAffected) LastInsertId() (int64, error) { return 0, nil }
func (n rowsAffected) RowsAffected() (int64, error) { return int64(n), nil }

const testID = "0b7f2c7e-3f4a-4d8e-9a51-2c1d3e4f5a6b"

func newTestRepo(t *testing.T) (*Repo, *fakeQuerier) {
	t.Helper()
	fq := &fakeQuerier{}
	return New(fq), fq
}

func testRow(id, title string) productRow {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return productRow{
		ID:        id,
		Title:     title,
		Category:  "Footwear",
		Price:     89.5,
		Stock:     3,
		Images:    []string{"https://cdn.example.com/a.jpg"},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}
