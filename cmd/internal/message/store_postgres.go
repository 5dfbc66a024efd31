package message

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ProfMYK/chatappapi/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// The pgx pool is owned by the caller; Close does not close it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "chat").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("message: empty schema")
		}
		if !pgIdentRE.MatchString(schema) {
			return errors.New("message: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "chat"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("message: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close(_ context.Context) error { return nil }

// Migrate creates the schema and messages table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	messages := pgIdent(s.schema, "messages")
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{s.schema}.Sanitize(),
		`CREATE TABLE IF NOT EXISTS ` + messages + ` (
		   id          TEXT PRIMARY KEY,
		   text        TEXT NOT NULL,
		   sender      TEXT NOT NULL,
		   sender_id   TEXT NOT NULL,
		   receiver_id TEXT NOT NULL,
		   created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		   updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		 )`,
		`CREATE INDEX IF NOT EXISTS messages_pair_created_idx ON ` + messages + ` (sender_id, receiver_id, created_at)`,
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("message: migrate: %w", err)
		}
	}
	return nil
}

// Save inserts one message row.
func (s *PostgresStore) Save(ctx context.Context, d Draft) (Stored, error) {
	if s == nil || s.pool == nil {
		return Stored{}, errors.New("message: nil store")
	}
	if err := d.Validate(); err != nil {
		return Stored{}, err
	}

	now := draftTime(d)
	id, err := ids.NewULID(now)
	if err != nil {
		return Stored{}, err
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO `+pgIdent(s.schema, "messages")+` (
		     id, text, sender, sender_id, receiver_id, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		id, d.Text, d.Sender, d.SenderID, d.ReceiverID, now,
	); err != nil {
		return Stored{}, fmt.Errorf("insert message: %w", err)
	}

	return Stored{
		ID:         id,
		Text:       d.Text,
		Sender:     d.Sender,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// History returns the latest q.Limit messages between the pair, oldest first.
func (s *PostgresStore) History(ctx context.Context, q HistoryQuery) ([]Stored, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("message: nil store")
	}
	q, err := q.normalized()
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, text, sender, sender_id, receiver_id, created_at, updated_at
		   FROM (
		     SELECT id, text, sender, sender_id, receiver_id, created_at, updated_at
		       FROM `+pgIdent(s.schema, "messages")+`
		      WHERE (sender_id = $1 AND receiver_id = $2)
		         OR (sender_id = $2 AND receiver_id = $1)
		      ORDER BY created_at DESC, id DESC
		      LIMIT $3
		   ) recent
		  ORDER BY created_at ASC, id ASC`,
		q.UserID, q.PeerID, q.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Stored, 0, q.Limit)
	for rows.Next() {
		var m Stored
		if err := rows.Scan(&m.ID, &m.Text, &m.Sender, &m.SenderID, &m.ReceiverID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}
