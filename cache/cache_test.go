package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-prices/models"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	cmd := redis.NewStringCmd(ctx)
	if err := args.Error(1); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(args.String(0))
	}
	return cmd
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	cmd := redis.NewStatusCmd(ctx)
	if err := args.Error(0); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal("OK")
	}
	return cmd
}

func sampleResult() *models.SearchResult {
	return &models.SearchResult{
		ID:      "abc",
		Keyword: "iphone",
		Origin:  "live",
		Listings: []models.Listing{
			{Name: "iPhone 15 128GB", Price: 245000, Source: "Daraz", InStock: true},
		},
		Groups: []models.ProductGroup{
			{Name: "iPhone 15 128GB", BestPrice: 245000, BestSource: "Daraz"},
		},
		Succeeded: 1,
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "search:iphone 15", Key("  iPhone 15 "))
	assert.Equal(t, Key("IPHONE"), Key("iphone"))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		c := NewMemory(4, time.Minute)
		_, ok := c.Get(ctx, "search:iphone")
		assert.False(t, ok)

		c.Set(ctx, "search:iphone", sampleResult())
		got, ok := c.Get(ctx, "search:iphone")
		require.True(t, ok)
		assert.Equal(t, "abc", got.ID)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		c := NewMemory(2, time.Minute)
		c.Set(ctx, "a", sampleResult())
		c.Set(ctx, "b", sampleResult())
		c.Get(ctx, "a")
		c.Set(ctx, "c", sampleResult())

		_, ok := c.Get(ctx, "b")
		assert.False(t, ok)
		_, ok = c.Get(ctx, "a")
		assert.True(t, ok)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("expires", func(t *testing.T) {
		c := NewMemory(2, 20*time.Millisecond)
		c.Set(ctx, "a", sampleResult())
		time.Sleep(60 * time.Millisecond)
		_, ok := c.Get(ctx, "a")
		assert.False(t, ok)
	})

	t.Run("ignores nil", func(t *testing.T) {
		c := NewMemory(2, time.Minute)
		c.Set(ctx, "a", nil)
		assert.Equal(t, 0, c.Len())
	})
}

func TestRedisGet(t *testing.T) {
	ctx := context.Background()
	data, err := json.Marshal(sampleResult())
	require.NoError(t, err)

	t.Run("hit", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("Get", ctx, "search:iphone").Return(string(data), nil)

		got, ok := NewRedis(client, time.Hour).Get(ctx, "search:iphone")
		require.True(t, ok)
		assert.Equal(t, "abc", got.ID)
		assert.Equal(t, 245000, got.Groups[0].BestPrice)
		client.AssertExpectations(t)
	})

	t.Run("missing key", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("Get", ctx, "search:iphone").Return("", redis.Nil)

		_, ok := NewRedis(client, time.Hour).Get(ctx, "search:iphone")
		assert.False(t, ok)
	})

	t.Run("backend error is a miss", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("Get", ctx, "search:iphone").Return("", errors.New("connection refused"))

		_, ok := NewRedis(client, time.Hour).Get(ctx, "search:iphone")
		assert.False(t, ok)
	})

	t.Run("corrupt entry is a miss", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("Get", ctx, "search:iphone").Return("not json", nil)

		_, ok := NewRedis(client, time.Hour).Get(ctx, "search:iphone")
		assert.False(t, ok)
	})
}

func TestRedisSet(t *testing.T) {
	ctx := context.Background()

	t.Run("stores json with ttl", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("Set", ctx, "search:iphone", mock.MatchedBy(func(v interface{}) bool {
			b, ok := v.([]byte)
			if !ok {
				return false
			}
			var decoded models.SearchResult
			return json.Unmarshal(b, &decoded) == nil && decoded.ID == "abc"
		}), time.Hour).Return(nil)

		NewRedis(client, time.Hour).Set(ctx, "search:iphone", sampleResult())
		client.AssertExpectations(t)
	})

	t.Run("write error is swallowed", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("Set", ctx, "search:iphone", mock.Anything, time.Hour).Return(errors.New("readonly"))

		NewRedis(client, time.Hour).Set(ctx, "search:iphone", sampleResult())
		client.AssertExpectations(t)
	})

	t.Run("nil result skipped", func(t *testing.T) {
		client := new(MockRedisClient)
		NewRedis(client, time.Hour).Set(ctx, "search:iphone", nil)
		client.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
