package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoUsersCollection = "users"

// mongoUser keeps the "username"/"password" fields of existing user documents.
// Older documents carry ObjectID ids; new ones use ULID strings.
type mongoUser struct {
	ID           any       `bson:"_id"`
	Username     string    `bson:"username"`
	UsernameNorm string    `bson:"usernameNorm"`
	PasswordHash string    `bson:"password"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func (m mongoUser) user() User {
	norm := m.UsernameNorm
	if norm == "" {
		norm = NormalizeUsername(m.Username)
	}
	return User{
		ID:           mongoIDString(m.ID),
		Username:     m.Username,
		UsernameNorm: norm,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

// MongoStore implements account persistence over a MongoDB collection.
//
// The client is owned by the caller.
type MongoStore struct {
	coll   *mongo.Collection
	hasher PasswordHasher
}

// NewMongoStore constructs a MongoStore on db.users.
func NewMongoStore(db *mongo.Database, hasher PasswordHasher) (*MongoStore, error) {
	if db == nil {
		return nil, errors.New("identity: nil mongo database")
	}
	if hasher == nil {
		return nil, errors.New("identity: nil hasher")
	}
	return &MongoStore{coll: db.Collection(mongoUsersCollection), hasher: hasher}, nil
}

// EnsureIndexes creates the unique index on the normalized username and
// backfills usernameNorm on documents that predate it.
//
// The index is partial so documents without usernameNorm never collide on a
// missing key. A legacy document whose normalized name is already taken keeps
// no usernameNorm and stays reachable through its exact username.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "usernameNorm", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetName("uq_users_username_norm").
			SetPartialFilterExpression(bson.M{"usernameNorm": bson.M{"$exists": true}}),
	})
	if err != nil {
		return fmt.Errorf("identity: ensure indexes: %w", err)
	}
	if err := s.backfillUsernameNorm(ctx); err != nil {
		return fmt.Errorf("identity: backfill usernameNorm: %w", err)
	}
	return nil
}

func (s *MongoStore) backfillUsernameNorm(ctx context.Context) error {
	cur, err := s.coll.Find(ctx,
		bson.M{"usernameNorm": bson.M{"$exists": false}},
		options.Find().SetProjection(bson.M{"_id": 1, "username": 1}).SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return err
	}
	defer func() { _ = cur.Close(ctx) }()

	for cur.Next(ctx) {
		var doc struct {
			ID       any    `bson:"_id"`
			Username string `bson:"username"`
		}
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		norm := NormalizeUsername(doc.Username)
		if norm == "" {
			continue
		}
		_, err := s.coll.UpdateOne(ctx,
			bson.M{"_id": doc.ID, "usernameNorm": bson.M{"$exists": false}},
			bson.M{"$set": bson.M{"usernameNorm": norm}},
		)
		if err != nil && !mongo.IsDuplicateKeyError(err) {
			return err
		}
	}
	return cur.Err()
}

func (s *MongoStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	u, err := newUser(op, s.hasher, in)
	if err != nil {
		return User{}, err
	}

	_, err = s.coll.InsertOne(ctx, mongoUser{
		ID:           u.ID,
		Username:     u.Username,
		UsernameNorm: u.UsernameNorm,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, ConflictError{Op: op, Field: "username"}
		}
		return User{}, err
	}
	return u, nil
}

func (s *MongoStore) GetByUsername(ctx context.Context, username string) (User, error) {
	const op = "identity.GetByUsername"

	norm := NormalizeUsername(username)
	if norm == "" {
		return User{}, invalid(op, "missing username")
	}
	u, err := s.findOne(ctx, op, bson.M{"usernameNorm": norm})
	if !IsNotFound(err) {
		return u, err
	}
	// Documents the backfill could not claim a normalized name for.
	return s.findOne(ctx, op, bson.M{
		"username":     strings.TrimSpace(username),
		"usernameNorm": bson.M{"$exists": false},
	})
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetByID"

	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, invalid(op, "missing id")
	}
	return s.findOne(ctx, op, mongoIDFilter(id))
}

func (s *MongoStore) findOne(ctx context.Context, op string, filter bson.M) (User, error) {
	var doc mongoUser
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	return doc.user(), nil
}

func (s *MongoStore) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	const op = "identity.UpdatePasswordHash"

	if strings.TrimSpace(id) == "" || strings.TrimSpace(hash) == "" {
		return invalid(op, "missing id or hash")
	}

	res, err := s.coll.UpdateOne(ctx, mongoIDFilter(id), bson.M{"$set": bson.M{
		"password":  hash,
		"updatedAt": now.UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

func mongoIDString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	default:
		return fmt.Sprint(id)
	}
}

// mongoIDFilter matches id as a string or, when it parses, as an ObjectID.
func mongoIDFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{"_id": id}
}
