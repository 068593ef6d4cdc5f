package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jscyril/noor_player/api"
)

const schema = `
CREATE TABLE IF NOT EXISTS media_documents (
	user_id    TEXT        NOT NULL,
	kind       TEXT        NOT NULL,
	doc_id     TEXT        NOT NULL,
	body       JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, kind, doc_id)
)`

// PostgresStore keeps a user's documents as JSONB rows
type PostgresStore struct {
	pool   *pgxpool.Pool
	userID string
}

// NewPostgresStore connects and ensures the schema exists
func NewPostgresStore(ctx context.Context, dsn, userID string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &PostgresStore{pool: pool, userID: userID}, nil
}

func (s *PostgresStore) LoadQueue(ctx context.Context) (QueueDoc, error) {
	doc := QueueDoc{CurrentIndex: -1}
	if err := s.get(ctx, kindQueue, kindQueue, &doc); err != nil {
		return QueueDoc{CurrentIndex: -1}, err
	}
	return doc, nil
}

func (s *PostgresStore) SaveQueue(ctx context.Context, doc QueueDoc) error {
	return s.put(ctx, kindQueue, kindQueue, doc)
}

func (s *PostgresStore) LoadPlaylists(ctx context.Context) ([]api.Playlist, error) {
	query := `
		SELECT body FROM media_documents
		WHERE user_id = $1 AND kind = $2
		ORDER BY created_at
	`
	rows, err := s.pool.Query(ctx, query, s.userID, kindPlaylist)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlists: %w", err)
	}
	defer rows.Close()

	var playlists []api.Playlist
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		var p api.Playlist
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("failed to decode playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate playlists: %w", err)
	}
	return playlists, nil
}

func (s *PostgresStore) SavePlaylist(ctx context.Context, p api.Playlist) error {
	return s.put(ctx, kindPlaylist, p.ID, p)
}

func (s *PostgresStore) DeletePlaylist(ctx context.Context, id string) error {
	query := `DELETE FROM media_documents WHERE user_id = $1 AND kind = $2 AND doc_id = $3`
	if _, err := s.pool.Exec(ctx, query, s.userID, kindPlaylist, id); err != nil {
		return fmt.Errorf("failed to delete playlist %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) LoadFavorites(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.get(ctx, kindFavorites, kindFavorites, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *PostgresStore) SaveFavorites(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return s.put(ctx, kindFavorites, kindFavorites, ids)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) get(ctx context.Context, kind, docID string, v interface{}) error {
	query := `SELECT body FROM media_documents WHERE user_id = $1 AND kind = $2 AND doc_id = $3`
	var body []byte
	err := s.pool.QueryRow(ctx, query, s.userID, kind, docID).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, kind, docID)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s/%s: %w", kind, docID, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", kind, docID, err)
	}
	return nil
}

func (s *PostgresStore) put(ctx context.Context, kind, docID string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", kind, docID, err)
	}
	query := `
		INSERT INTO media_documents (user_id, kind, doc_id, body)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, kind, doc_id)
		DO UPDATE SET body = EXCLUDED.body, updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, s.userID, kind, docID, body); err != nil {
		return fmt.Errorf("failed to save %s/%s: %w", kind, docID, err)
	}
	return nil
}
