package message

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ProfMYK/chatappapi/cmd/identity/ids"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Integration tests are enabled when CHAT_TEST_MONGO_URL is set.

func TestMongoStore_SaveAndHistory(t *testing.T) {
	db := mustOpenTestMongo(t)

	st, err := NewMongoStore(db)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	require.NoError(t, st.EnsureIndexes(ctx))

	base := time.Now().UTC().Truncate(time.Millisecond)
	_, err = st.Save(ctx, Draft{Text: "hi", Sender: "alice", SenderID: "a", ReceiverID: "b", Now: base})
	require.NoError(t, err)
	_, err = st.Save(ctx, Draft{Text: "yo", Sender: "bob", SenderID: "b", ReceiverID: "a", Now: base.Add(time.Second)})
	require.NoError(t, err)
	_, err = st.Save(ctx, Draft{Text: "note to self", Sender: "alice", SenderID: "a", ReceiverID: "a", Now: base.Add(2 * time.Second)})
	require.NoError(t, err)

	got, err := st.History(ctx, HistoryQuery{UserID: "a", PeerID: "b"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hi", got[0].Text)
	assert.Equal(t, "yo", got[1].Text)
	assert.Equal(t, "bob", got[1].Sender)
}

func TestMongoStore_HistoryLimitIgnoresSelfMessages(t *testing.T) {
	db := mustOpenTestMongo(t)

	st, err := NewMongoStore(db)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	require.NoError(t, st.EnsureIndexes(ctx))

	base := time.Now().UTC().Truncate(time.Millisecond)
	_, err = st.Save(ctx, Draft{Text: "first", Sender: "alice", SenderID: "a", ReceiverID: "b", Now: base})
	require.NoError(t, err)
	_, err = st.Save(ctx, Draft{Text: "second", Sender: "bob", SenderID: "b", ReceiverID: "a", Now: base.Add(time.Second)})
	require.NoError(t, err)
	// Newer self-addressed rows must not eat into the page.
	for i := range 3 {
		_, err = st.Save(ctx, Draft{Text: "self", Sender: "alice", SenderID: "a", ReceiverID: "a", Now: base.Add(time.Duration(2+i) * time.Second)})
		require.NoError(t, err)
		_, err = st.Save(ctx, Draft{Text: "self", Sender: "bob", SenderID: "b", ReceiverID: "b", Now: base.Add(time.Duration(2+i) * time.Second)})
		require.NoError(t, err)
	}

	got, err := st.History(ctx, HistoryQuery{UserID: "a", PeerID: "b", Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "second", got[1].Text)
}

func mustOpenTestMongo(t *testing.T) *mongo.Database {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("CHAT_TEST_MONGO_URL"))
	if raw == "" {
		t.Skip("integration test skipped: CHAT_TEST_MONGO_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(raw))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database("chat_it_" + strings.ToLower(ids.MustULID(time.Now())[16:]))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}
