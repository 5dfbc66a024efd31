package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ProfMYK/chatappapi/cmd/identity"
	"github.com/ProfMYK/chatappapi/cmd/internal/message"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

// backends owns the persistence resources selected by Config.Store.
type backends struct {
	kind string

	users    identity.Store
	messages message.Store

	pool  *pgxpool.Pool
	mongo *mongo.Client
}

func openBackends(ctx context.Context, cfg Config, log Logger, hasher identity.PasswordHasher) (*backends, error) {
	switch cfg.Store {
	case StoreMemory:
		log.Info("store.memory")
		return &backends{
			kind:     StoreMemory,
			users:    identity.NewMemoryStore(hasher),
			messages: message.NewMemoryStore(),
		}, nil

	case StorePostgres:
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		b := &backends{kind: StorePostgres, pool: pool}
		if err := b.openPostgres(ctx, cfg, hasher); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("store.postgres", "schema", cfg.DBSchema)
		return b, nil

	case StoreMongo:
		client, err := NewMongoClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		b := &backends{kind: StoreMongo, mongo: client}
		if err := b.openMongo(ctx, cfg, hasher); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		log.Info("store.mongo", "db", cfg.MongoDB)
		return b, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func (b *backends) openPostgres(ctx context.Context, cfg Config, hasher identity.PasswordHasher) error {
	users, err := identity.NewPostgresStore(b.pool, hasher, identity.WithSchema(cfg.DBSchema))
	if err != nil {
		return err
	}
	if err := users.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}

	msgs, err := message.NewPostgresStore(b.pool, message.WithSchema(cfg.DBSchema))
	if err != nil {
		return err
	}
	if err := msgs.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate messages: %w", err)
	}

	b.users, b.messages = users, msgs
	return nil
}

func (b *backends) openMongo(ctx context.Context, cfg Config, hasher identity.PasswordHasher) error {
	db := b.mongo.Database(cfg.MongoDB)

	users, err := identity.NewMongoStore(db, hasher)
	if err != nil {
		return err
	}
	if err := users.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}

	msgs, err := message.NewMongoStore(db)
	if err != nil {
		return err
	}
	if err := msgs.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("messages indexes: %w", err)
	}

	b.users, b.messages = users, msgs
	return nil
}

// ping reports whether the configured database answers.
func (b *backends) ping(ctx context.Context) error {
	switch {
	case b.pool != nil:
		return PingDB(ctx, b.pool, 2*time.Second)
	case b.mongo != nil:
		return PingMongo(ctx, b.mongo, 2*time.Second)
	}
	return nil
}

func (b *backends) durable() bool { return b.pool != nil || b.mongo != nil }

// Close releases the stores and then the connections they share.
func (b *backends) Close(ctx context.Context) error {
	var errs []error
	if b.messages != nil {
		errs = append(errs, b.messages.Close(ctx))
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.mongo != nil {
		errs = append(errs, b.mongo.Disconnect(ctx))
	}
	return errors.Join(errs...)
}
