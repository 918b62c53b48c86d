package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manabi-ai/manabi/internal/model"
)

// PostgresStore is the pgx-backed profile store.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres creates a PostgresStore with a connection pool and verifies
// connectivity with an initial ping.
func NewPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("profile: parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("profile: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("profile: ping pool: %w", err)
	}

	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Pool returns the underlying connection pool (used by migrations and tests).
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, subject string) (model.Principal, error) {
	var (
		role       string
		department *string
		courses    []string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT role, department, courses FROM profiles WHERE subject = $1`,
		subject,
	).Scan(&role, &department, &courses)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Principal{}, ErrNotFound
	}
	if err != nil {
		return model.Principal{}, fmt.Errorf("profile: get %s: %w", subject, err)
	}

	p := model.Principal{
		Subject: subject,
		Role:    model.ParseRole(role),
		Courses: courses,
	}
	if department != nil {
		p.Department = *department
	}
	if p.Courses == nil {
		p.Courses = []string{}
	}
	return p, nil
}

// Upsert implements Store.
func (s *PostgresStore) Upsert(ctx context.Context, p model.Principal) error {
	if p.Subject == "" {
		return fmt.Errorf("profile: upsert: subject is required")
	}
	courses := p.Courses
	if courses == nil {
		courses = []string{}
	}
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (subject, role, department, courses, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (subject) DO UPDATE
		 SET role = EXCLUDED.role,
		     department = EXCLUDED.department,
		     courses = EXCLUDED.courses,
		     updated_at = EXCLUDED.updated_at`,
		p.Subject, string(p.Role), nullable(p.Department), courses, now,
	)
	if err != nil {
		return fmt.Errorf("profile: upsert %s: %w", p.Subject, err)
	}
	return nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
