package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camper-configurator/internal/cache"
)

func TestRedisJSONAndRaw(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.New(client, time.Minute)
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}
	var out payload
	ok, err := c.GetJSON(ctx, "missing", &out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.SetJSON(ctx, "k", payload{Name: "pegasus"}))
	ok, err = c.GetJSON(ctx, "k", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "pegasus", out.Name)

	require.NoError(t, c.SetRaw(ctx, cache.KeyPriceTable("Womondo"), "MO_CODE,DE\n"))
	raw, ok, err := c.GetRaw(ctx, "camper:pricetable:womondo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "MO_CODE,DE\n", raw)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.GetRaw(ctx, cache.KeyPriceTable("womondo"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNilClientIsAlwaysMiss(t *testing.T) {
	c := cache.New(nil, 0)
	ctx := context.Background()
	require.False(t, c.Enabled())
	require.NoError(t, c.SetRaw(ctx, "k", "v"))
	_, ok, err := c.GetRaw(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}
