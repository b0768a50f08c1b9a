package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-mebel/internal/cart"
	"github.com/noah-isme/backend-mebel/internal/snapshot"
)

func TestStoreFailsFastWhenOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	b, c, _ := testBreaker(2)
	store := Store{Next: snapshot.NewRedisStore(client, "", time.Hour), Breaker: b}
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "cart:s1", "[]"))
	mr.SetError("LOADING redis is loading")
	require.Error(t, store.Set(ctx, "cart:s1", "[]"))
	_, _, err := store.Get(ctx, "cart:s1")
	require.Error(t, err)
	require.Equal(t, Open, b.State())

	_, _, err = store.Get(ctx, "cart:s1")
	require.ErrorIs(t, err, ErrOpenCircuit)

	sess := cart.LoadSession(ctx, "s1", cart.Deps{Store: store})
	require.True(t, sess.Cart().IsEmpty())
	_, err = sess.Add(ctx, cart.LineItem{ItemID: 1, UnitPrice: 10, Quantity: 1, Variant: cart.VariantKey{Mode: cart.ModePurchase}})
	require.NoError(t, err)

	mr.SetError("")
	require.NoError(t, store.Ping(ctx))
	c.advance(time.Second)
	require.NoError(t, store.Set(ctx, "cart:s1", "[]"))
	require.Equal(t, Closed, b.State())
}

func TestStoreIgnoresCancellation(t *testing.T) {
	b, _, _ := testBreaker(1)
	store := Store{Next: cancelledStore{}, Breaker: b}
	ctx := context.Background()

	require.ErrorIs(t, store.Delete(ctx, "k"), context.Canceled)
	require.Equal(t, Closed, b.State())
}

type cancelledStore struct{}

func (cancelledStore) Get(context.Context, string) (string, bool, error) {
	return "", false, context.Canceled
}
func (cancelledStore) Set(context.Context, string, string) error { return context.Canceled }
func (cancelledStore) Delete(context.Context, string) error      { return context.Canceled }
