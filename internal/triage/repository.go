package triage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"vein-assessment/internal/assessment"
)

var ErrRecordNotFound = errors.New("assessment record not found")

// Repository persists finished assessment records. Records are insert-only.
type Repository interface {
	Save(ctx context.Context, rec assessment.AssessmentRecord) error
	Get(ctx context.Context, id string) (*assessment.AssessmentRecord, error)
	List(ctx context.Context, f ListFilter) ([]assessment.AssessmentRecord, error)
}

// sqlRepo serves both Postgres and SQLite. The searchable columns are
// duplicated out of the record document; the document is the source of truth.
type sqlRepo struct {
	db          *sql.DB
	placeholder func(n int) string
}

func NewRepository(db *sql.DB) Repository {
	return &sqlRepo{db: db, placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
}

//go:embed schema_sqlite.sql
var sqliteSchema string

// NewSQLiteRepository opens (and creates) a local database. Use ":memory:" in tests.
func NewSQLiteRepository(path string) (Repository, *sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// each connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &sqlRepo{db: db, placeholder: func(int) string { return "?" }}, db, nil
}

func (r *sqlRepo) Save(ctx context.Context, rec assessment.AssessmentRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	cols := []string{
		"id", "created_at", "patient_name", "patient_age", "patient_location", "variant",
		"severity_level", "urgency", "risk_level", "photo_analyzed", "image_url", "record",
	}
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = r.placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO assessments (%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(marks, ", "))

	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.CreatedAt.UTC(), rec.PatientName, rec.PatientAge, rec.PatientLocation, string(rec.Variant),
		int(rec.SeverityLevel), rec.Urgency, string(rec.RiskLevel), rec.PhotoAnalyzed, rec.ImageURL, string(doc),
	)
	if err != nil {
		return fmt.Errorf("insert assessment %s: %w", rec.ID, err)
	}
	return nil
}

func (r *sqlRepo) Get(ctx context.Context, id string) (*assessment.AssessmentRecord, error) {
	query := "SELECT record FROM assessments WHERE id = " + r.placeholder(1)
	var doc string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var rec assessment.AssessmentRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &rec, nil
}

func (r *sqlRepo) List(ctx context.Context, f ListFilter) ([]assessment.AssessmentRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, r.placeholder(len(args))))
	}
	if f.MinSeverity > 0 {
		add("severity_level >= %s", f.MinSeverity)
	}
	if f.Variant != "" {
		add("variant = %s", f.Variant)
	}
	if f.Location != "" {
		add("LOWER(patient_location) = LOWER(%s)", f.Location)
	}

	query := "SELECT record FROM assessments"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT " + r.placeholder(len(args))
		if f.Offset > 0 {
			args = append(args, f.Offset)
			query += " OFFSET " + r.placeholder(len(args))
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	out := []assessment.AssessmentRecord{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var rec assessment.AssessmentRecord
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ConnectPostgres opens the database, retrying while it starts up.
func ConnectPostgres(ctx context.Context, dsn string, attempts int, wait time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return db, nil
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	_ = db.Close()
	return nil, fmt.Errorf("postgres not reachable after %d attempts: %w", attempts, err)
}
