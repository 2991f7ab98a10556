package repo

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"quiz-report/internal/domain"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	r := &PostgresRepo{db: db}
	if err := r.init(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// NewPostgresRepoWithDB wraps an open handle; the schema is assumed present.
func NewPostgresRepoWithDB(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) init() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS generations (
		id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL,
		archetype TEXT NOT NULL,
		score TEXT,
		status TEXT NOT NULL,
		file_path TEXT,
		error_msg TEXT,
		attempts INT NOT NULL,
		webhook_url TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);`)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`CREATE INDEX IF NOT EXISTS generations_created_at_idx ON generations (created_at DESC)`)
	return err
}

func (r *PostgresRepo) Close() error {
	return r.db.Close()
}

func (r *PostgresRepo) Put(g *domain.GenerationRecord) error {
	_, err := r.db.Exec(`INSERT INTO generations (id,user_name,archetype,score,status,file_path,error_msg,attempts,webhook_url,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET status=$5,file_path=$6,error_msg=$7,attempts=$8`,
		g.ID, g.UserName, g.Archetype, g.Score, string(g.Status), g.FilePath, g.ErrorMsg, g.Attempts, g.WebhookURL, g.CreatedAt)
	return err
}

const selectColumns = `SELECT id,user_name,archetype,score,status,file_path,error_msg,attempts,webhook_url,created_at FROM generations`

func (r *PostgresRepo) Get(id string) (*domain.GenerationRecord, error) {
	g, err := scanRecord(r.db.QueryRow(selectColumns+` WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get generation %s: %w", id, err)
	}
	return g, nil
}

func (r *PostgresRepo) List(page, pageSize int) ([]domain.GenerationRecord, int, error) {
	rows, err := r.db.Query(selectColumns+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()
	out := make([]domain.GenerationRecord, 0, pageSize)
	for rows.Next() {
		g, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan generation: %w", err)
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list generations: %w", err)
	}
	var total int
	if err := r.db.QueryRow(`SELECT COUNT(1) FROM generations`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count generations: %w", err)
	}
	return out, total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*domain.GenerationRecord, error) {
	var g domain.GenerationRecord
	var score, filePath, errMsg, webhookURL sql.NullString
	err := s.Scan(&g.ID, &g.UserName, &g.Archetype, &score, (*string)(&g.Status), &filePath, &errMsg, &g.Attempts, &webhookURL, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	g.Score = score.String
	g.FilePath = filePath.String
	g.ErrorMsg = errMsg.String
	g.WebhookURL = webhookURL.String
	return &g, nil
}
