package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-mebel/internal/events"
	"github.com/noah-isme/backend-mebel/internal/obs"
	"github.com/noah-isme/backend-mebel/internal/snapshot"
)

func testDeps(store snapshot.Store) (Deps, *events.Recorder) {
	rec := &events.Recorder{}
	return Deps{
		Store:   store,
		Bus:     &events.Bus{Notifiers: []events.Notifier{rec}},
		Logger:  zerolog.Nop(),
		Metrics: obs.NewDomainMetrics("test", prometheus.NewRegistry()),
	}, rec
}

func TestSessionPersistsAfterEveryMutation(t *testing.T) {
	store := snapshot.NewMemoryStore()
	deps, _ := testDeps(store)
	ctx := context.Background()

	s := LoadSession(ctx, "s1", deps)
	require.True(t, s.Cart().IsEmpty())

	_, err := s.Add(ctx, oakTable(2))
	require.NoError(t, err)
	_, err = s.Add(ctx, LineItem{ItemID: 3, UnitPrice: 20_000, Quantity: 1, Display: Display{Name: "Chair"}})
	require.NoError(t, err)
	_, err = s.SetQuantity(ctx, 0, 4)
	require.NoError(t, err)

	reloaded := LoadSession(ctx, "s1", deps)
	require.Equal(t, s.Cart().Lines(), reloaded.Cart().Lines())
	require.Equal(t, 5, reloaded.Cart().ItemCount())

	s.Clear(ctx)
	require.True(t, LoadSession(ctx, "s1", deps).Cart().IsEmpty())
}

func TestSessionSnapshotFormat(t *testing.T) {
	store := snapshot.NewMemoryStore()
	deps, _ := testDeps(store)
	ctx := context.Background()

	s := LoadSession(ctx, "s2", deps)
	_, err := s.Add(ctx, oakTable(1))
	require.NoError(t, err)

	raw, ok, err := store.Get(ctx, SnapshotKey("s2"))
	require.NoError(t, err)
	require.True(t, ok)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	require.Len(t, decoded, 1)
	require.EqualValues(t, 7, decoded[0]["itemId"])
	require.EqualValues(t, 150000, decoded[0]["unitPrice"])
	require.Equal(t, map[string]any{"mode": "purchase", "color": "oak"}, decoded[0]["variant"])
}

func TestSessionNotices(t *testing.T) {
	deps, rec := testDeps(snapshot.NewMemoryStore())
	ctx := context.Background()
	s := LoadSession(ctx, "s3", deps)

	_, err := s.Add(ctx, oakTable(1))
	require.NoError(t, err)
	_, err = s.Add(ctx, oakTable(1))
	require.NoError(t, err)
	_, err = s.Remove(ctx, 0)
	require.NoError(t, err)
	_, err = s.Remove(ctx, 0)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	s.Clear(ctx)

	notices := rec.Notices()
	topics := make([]string, 0, len(notices))
	for _, n := range notices {
		topics = append(topics, n.Topic)
		require.Equal(t, "s3", n.SessionID)
	}
	require.Equal(t, []string{
		events.TopicItemAdded,
		events.TopicItemAdded,
		events.TopicItemRemoved,
		events.TopicCartCleared,
	}, topics)
	require.Equal(t, "Oak Table", notices[0].Subject)
	require.Equal(t, "Oak Table", notices[2].Subject)
}

func TestSessionSetQuantityZeroRemovesAndNotifies(t *testing.T) {
	deps, rec := testDeps(snapshot.NewMemoryStore())
	ctx := context.Background()
	s := LoadSession(ctx, "s4", deps)
	_, _ = s.Add(ctx, oakTable(3))
	_, _ = s.Add(ctx, LineItem{ItemID: 3, UnitPrice: 1, Quantity: 2})

	before := s.Cart().ItemCount()
	c, err := s.SetQuantity(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, before-3, c.ItemCount())
	require.Equal(t, events.TopicItemRemoved, rec.Notices()[2].Topic)

	c, err = s.SetQuantity(ctx, 5, 1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	require.Equal(t, 2, c.ItemCount())
	require.Len(t, rec.Notices(), 3)
}

func TestLoadSessionCorruptSnapshotYieldsEmptyCart(t *testing.T) {
	store := snapshot.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, SnapshotKey("bad"), `[{"itemId":1,"quantity":`))

	var logs bytes.Buffer
	deps, _ := testDeps(store)
	deps.Logger = zerolog.New(&logs)

	s := LoadSession(ctx, "bad", deps)
	require.True(t, s.Cart().IsEmpty())
	require.Contains(t, logs.String(), "discarding unreadable cart snapshot")
	require.Equal(t, float64(1), testutil.ToFloat64(deps.Metrics.SnapshotFailures.WithLabelValues("load")))

	_, err := s.Add(ctx, oakTable(1))
	require.NoError(t, err)
	require.Equal(t, 1, LoadSession(ctx, "bad", deps).Cart().ItemCount())
}

func TestLoadSessionDropsInvalidLines(t *testing.T) {
	store := snapshot.NewMemoryStore()
	ctx := context.Background()
	raw := `[{"itemId":1,"unitPrice":100,"quantity":0},{"itemId":2,"unitPrice":100,"quantity":2},{"itemId":2,"unitPrice":100,"quantity":1}]`
	require.NoError(t, store.Set(ctx, SnapshotKey("odd"), raw))
	deps, _ := testDeps(store)

	s := LoadSession(ctx, "odd", deps)
	require.Equal(t, 1, s.Cart().Len())
	require.Equal(t, 3, s.Cart().ItemCount())
}

func TestSessionSaveFailureDoesNotBlock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	store := snapshot.NewRedisStore(client, "", time.Hour)
	deps, rec := testDeps(store)
	deps.SaveTimeout = 200 * time.Millisecond
	ctx := context.Background()

	s := LoadSession(ctx, "s5", deps)
	mr.Close()

	c, err := s.Add(ctx, oakTable(2))
	require.NoError(t, err)
	require.Equal(t, 2, c.ItemCount())
	require.Len(t, rec.Notices(), 1)
	require.Equal(t, float64(1), testutil.ToFloat64(deps.Metrics.SnapshotFailures.WithLabelValues("save")))
}

func TestLoadSessionUnavailableStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	deps, _ := testDeps(snapshot.NewRedisStore(client, "", 0))
	s := LoadSession(context.Background(), "s6", deps)
	require.True(t, s.Cart().IsEmpty())
}

func TestSessionWithoutDeps(t *testing.T) {
	ctx := context.Background()
	s := LoadSession(ctx, "bare", Deps{})
	_, err := s.Add(ctx, oakTable(1))
	require.NoError(t, err)
	s.Clear(ctx)
	require.True(t, s.Cart().IsEmpty())
}
