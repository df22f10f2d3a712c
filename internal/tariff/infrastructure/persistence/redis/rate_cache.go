package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/pkg/cache"
)

// Store rateCache 依赖的键值存储，pkg/cache.RedisCache 满足该接口。
type Store interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error
	SetNXJSON(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// tombstoneTTL 失效墓碑的存活时间，需覆盖一次回源读到回填的窗口。
const tombstoneTTL = 5 * time.Second

type rateCache struct {
	store     Store
	prefix    string
	ttl       time.Duration
	tombstone time.Duration
}

// NewRateCache 创建费率读缓存，ttl 为 0 时使用 60 秒。
// 回填只在键不存在时写入，Invalidate 写入短期墓碑，墓碑存活期间回填被拒绝。
func NewRateCache(store Store, ttl time.Duration) domain.RateCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	tomb := tombstoneTTL
	if ttl < tomb {
		tomb = ttl
	}
	return &rateCache{
		store:     store,
		prefix:    "tariff:rate:",
		ttl:       ttl,
		tombstone: tomb,
	}
}

type cachedTariff struct {
	Tombstone   bool      `json:"tombstone,omitempty"`
	ID          string    `json:"id"`
	TariffDate  string    `json:"tariff_date"`
	Rate        string    `json:"rate"`
	CargoTypeID string    `json:"cargo_type_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *rateCache) key(k domain.RateKey) string {
	return r.prefix + domain.FormatDate(k.Date) + ":" + k.CargoType
}

func (r *rateCache) Get(ctx context.Context, k domain.RateKey) (*domain.Tariff, bool, error) {
	var c cachedTariff
	err := r.store.GetJSON(ctx, r.key(k), &c)
	if errors.Is(err, cache.ErrMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached rate: %w", err)
	}
	if c.Tombstone {
		return nil, false, nil
	}

	t, err := c.toTariff()
	if err != nil {
		// 损坏的条目按未命中处理
		_ = r.store.Delete(ctx, r.key(k))
		return nil, false, nil
	}
	return t, true, nil
}

func (r *rateCache) Set(ctx context.Context, k domain.RateKey, t *domain.Tariff) error {
	if t == nil {
		return nil
	}
	c := cachedTariff{
		ID:          t.ID.String(),
		TariffDate:  domain.FormatDate(t.TariffDate),
		Rate:        t.Rate.String(),
		CargoTypeID: t.CargoTypeID.String(),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	// 已有条目或墓碑时放弃回填
	if _, err := r.store.SetNXJSON(ctx, r.key(k), c, r.ttl); err != nil {
		return fmt.Errorf("set cached rate: %w", err)
	}
	return nil
}

func (r *rateCache) Invalidate(ctx context.Context, keys ...domain.RateKey) error {
	if len(keys) == 0 {
		return nil
	}
	for _, k := range keys {
		if err := r.store.SetJSON(ctx, r.key(k), cachedTariff{Tombstone: true}, r.tombstone); err != nil {
			return fmt.Errorf("invalidate cached rates: %w", err)
		}
	}
	return nil
}

func (c cachedTariff) toTariff() (*domain.Tariff, error) {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return nil, err
	}
	typeID, err := uuid.Parse(c.CargoTypeID)
	if err != nil {
		return nil, err
	}
	date, err := domain.ParseDate(c.TariffDate)
	if err != nil {
		return nil, err
	}
	rate, err := decimal.NewFromString(c.Rate)
	if err != nil {
		return nil, err
	}
	return &domain.Tariff{
		ID:          id,
		TariffDate:  date,
		Rate:        rate,
		CargoTypeID: typeID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}, nil
}

var _ Store = (*cache.RedisCache)(nil)
