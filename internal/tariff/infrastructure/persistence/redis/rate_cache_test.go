package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/pkg/cache"
)

type memStore struct {
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) GetJSON(_ context.Context, key string, dest any) error {
	raw, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memStore) SetJSON(_ context.Context, key string, value any, exp time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.ttls[key] = exp
	return nil
}

func (m *memStore) SetNXJSON(ctx context.Context, key string, value any, exp time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	return true, m.SetJSON(ctx, key, value, exp)
}

func (m *memStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestRateCacheRoundTrip(t *testing.T) {
	store := newMemStore()
	c := NewRateCache(store, 30*time.Second)
	ctx := context.Background()
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	key := domain.RateKey{Date: date, CargoType: "Electronics"}

	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	tariff := &domain.Tariff{
		ID:          uuid.New(),
		TariffDate:  date,
		Rate:        decimal.RequireFromString("0.0125"),
		CargoTypeID: uuid.New(),
	}
	if err := c.Set(ctx, key, tariff); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := store.data["tariff:rate:2024-01-01:Electronics"]; !ok {
		t.Fatalf("unexpected keys: %v", store.data)
	}
	if store.ttls["tariff:rate:2024-01-01:Electronics"] != 30*time.Second {
		t.Fatalf("ttl: %v", store.ttls)
	}

	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.ID != tariff.ID || !got.Rate.Equal(tariff.Rate) || !got.TariffDate.Equal(date) {
		t.Fatalf("cached tariff: %+v", got)
	}

	// 名称区分大小写
	if _, ok, _ := c.Get(ctx, domain.RateKey{Date: date, CargoType: "electronics"}); ok {
		t.Fatal("lookup must be case-sensitive")
	}

	if err := c.Invalidate(ctx, key); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatal("entry survived invalidation")
	}
}

func TestRateCacheCorruptEntryIsMiss(t *testing.T) {
	store := newMemStore()
	c := NewRateCache(store, 0)
	key := domain.RateKey{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), CargoType: "A"}
	store.data["tariff:rate:2024-01-01:A"] = []byte(`{"id":"not-a-uuid","rate":"x"}`)

	_, ok, err := c.Get(context.Background(), key)
	if ok || err != nil {
		t.Fatalf("corrupt entry: ok=%v err=%v", ok, err)
	}
	if _, still := store.data["tariff:rate:2024-01-01:A"]; still {
		t.Fatal("corrupt entry should be evicted")
	}
}

func TestRateCacheInvalidateBlocksStaleFill(t *testing.T) {
	store := newMemStore()
	c := NewRateCache(store, time.Minute)
	ctx := context.Background()
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	key := domain.RateKey{Date: date, CargoType: "Glass"}
	stale := &domain.Tariff{ID: uuid.New(), TariffDate: date, Rate: decimal.RequireFromString("0.02"), CargoTypeID: uuid.New()}

	if err := c.Invalidate(ctx, key); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if got := store.ttls["tariff:rate:2024-01-01:Glass"]; got != tombstoneTTL {
		t.Fatalf("tombstone ttl: %v", got)
	}
	if err := c.Set(ctx, key, stale); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("fill after invalidation must be dropped: ok=%v err=%v", ok, err)
	}

	// 墓碑过期后恢复回填
	delete(store.data, "tariff:rate:2024-01-01:Glass")
	if err := c.Set(ctx, key, stale); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := c.Get(ctx, key); !ok {
		t.Fatal("fill after tombstone expiry should be cached")
	}
}

func TestRateCacheSetKeepsExistingEntry(t *testing.T) {
	store := newMemStore()
	c := NewRateCache(store, time.Minute)
	ctx := context.Background()
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	key := domain.RateKey{Date: date, CargoType: "Glass"}
	first := &domain.Tariff{ID: uuid.New(), TariffDate: date, Rate: decimal.RequireFromString("0.03"), CargoTypeID: uuid.New()}
	second := &domain.Tariff{ID: uuid.New(), TariffDate: date, Rate: decimal.RequireFromString("0.04"), CargoTypeID: uuid.New()}

	_ = c.Set(ctx, key, first)
	_ = c.Set(ctx, key, second)
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok || got.ID != first.ID {
		t.Fatalf("existing entry overwritten: %+v %v %v", got, ok, err)
	}
}
