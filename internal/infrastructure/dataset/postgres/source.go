package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Source reads FAQ rows from a table with question, answer and category
// columns, ordered by id.
type Source struct {
	db    *sql.DB
	table string
}

func NewSource(db *sql.DB, table string) (*Source, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "dataset table", fmt.Errorf("invalid table name %q", table))
	}
	return &Source{db: db, table: table}, nil
}

// OpenDB opens a small pgx pool and pings it within ctx, so a dead database
// cannot stall startup past shutdown.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Source) Load(ctx context.Context) ([]domain.QAEntry, error) {
	query := fmt.Sprintf(`
SELECT question, answer, category
FROM %s
ORDER BY id
`, s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query faq entries: %w", err)
	}
	defer rows.Close()

	var out []domain.QAEntry
	for rows.Next() {
		var question, answer, category sql.NullString
		if err := rows.Scan(&question, &answer, &category); err != nil {
			return nil, fmt.Errorf("scan faq entry: %w", err)
		}
		if !question.Valid || !answer.Valid {
			continue
		}
		out = append(out, domain.QAEntry{
			Question: question.String,
			Answer:   answer.String,
			Category: category.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faq entries: %w", err)
	}
	return out, nil
}
