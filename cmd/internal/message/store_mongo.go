package message

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ProfMYK/chatappapi/cmd/identity/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "messages"

// mongoMessage mirrors the document layout used by existing deployments
// (camelCase fields, createdAt/updatedAt timestamps). Older documents carry
// ObjectID ids.
type mongoMessage struct {
	ID         any       `bson:"_id"`
	Text       string    `bson:"text"`
	Sender     string    `bson:"sender"`
	SenderID   string    `bson:"senderId"`
	ReceiverID string    `bson:"receiverId"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

func (m mongoMessage) stored() Stored {
	id, ok := m.ID.(string)
	if oid, isOID := m.ID.(primitive.ObjectID); isOID {
		id, ok = oid.Hex(), true
	}
	if !ok {
		id = fmt.Sprint(m.ID)
	}
	return Stored{
		ID:         id,
		Text:       m.Text,
		Sender:     m.Sender,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

// MongoStore is a Store backed by a MongoDB collection.
//
// The client is owned by the caller.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore constructs a MongoStore on db.messages.
func NewMongoStore(db *mongo.Database) (*MongoStore, error) {
	if db == nil {
		return nil, errors.New("message: nil mongo database")
	}
	return &MongoStore{coll: db.Collection(mongoCollection)}, nil
}

// EnsureIndexes creates the pair/time index used by History.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("pair_created"),
	})
	if err != nil {
		return fmt.Errorf("message: mongo index: %w", err)
	}
	return nil
}

// Close is a no-op because the client is owned by the caller.
func (s *MongoStore) Close(_ context.Context) error { return nil }

// Save inserts one message document.
func (s *MongoStore) Save(ctx context.Context, d Draft) (Stored, error) {
	if s == nil || s.coll == nil {
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

	doc := mongoMessage{
		ID:         id,
		Text:       d.Text,
		Sender:     d.Sender,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return Stored{}, fmt.Errorf("insert message: %w", err)
	}
	return doc.stored(), nil
}

// History returns the latest q.Limit messages between the pair, oldest first.
func (s *MongoStore) History(ctx context.Context, q HistoryQuery) ([]Stored, error) {
	if s == nil || s.coll == nil {
		return nil, errors.New("message: nil store")
	}
	q, err := q.normalized()
	if err != nil {
		return nil, err
	}

	filter := bson.M{"$or": bson.A{
		bson.M{"senderId": q.UserID, "receiverId": q.PeerID},
		bson.M{"senderId": q.PeerID, "receiverId": q.UserID},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(q.Limit))

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	out := make([]Stored, 0, q.Limit)
	for cur.Next(ctx) {
		var m mongoMessage
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, m.stored())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(out)
	return out, nil
}
