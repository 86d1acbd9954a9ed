package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	storefront "github.com/eugener/storefront/internal"
)

type scanner interface {
	Scan(dest ...any) error
}

// notFoundErr translates sql.ErrNoRows to storefront.ErrNotFound.
func notFoundErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storefront.ErrNotFound
	}
	return err
}

// conflictErr translates unique-constraint violations to storefront.ErrConflict.
// modernc reports constraint failures only through the message text.
func conflictErr(err error, entity string) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%s: %w", entity, storefront.ErrConflict)
	}
	return err
}

func checkRowsAffected(result sql.Result, entity string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", entity, storefront.ErrNotFound)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
