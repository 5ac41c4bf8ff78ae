package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedService serves single product reads from Redis and drops the cached
// entry on every write to that product. Lists always hit the database.
type CachedService struct {
	ProductService
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedService(next ProductService, rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CachedService {
	return &CachedService{ProductService: next, rdb: rdb, ttl: ttl, logger: logger}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func (s *CachedService) Get(ctx context.Context, id int64) (Product, error) {
	key := cacheKey(id)

	val, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p Product
		if err := json.Unmarshal(val, &p); err == nil {
			return p, nil
		}
		s.logger.Warn("discarding corrupt cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	p, err := s.ProductService.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return p, nil
}

func (s *CachedService) Update(ctx context.Context, id int64, in UpdateInput) (Product, error) {
	p, err := s.ProductService.Update(ctx, id, in)
	s.evict(ctx, id)
	return p, err
}

func (s *CachedService) Delete(ctx context.Context, id int64) error {
	err := s.ProductService.Delete(ctx, id)
	s.evict(ctx, id)
	return err
}

func (s *CachedService) AdjustStock(ctx context.Context, id int64, delta int) (Product, error) {
	p, err := s.ProductService.AdjustStock(ctx, id, delta)
	s.evict(ctx, id)
	return p, err
}

func (s *CachedService) Reserve(ctx context.Context, id int64, qty int) (bool, error) {
	ok, err := s.ProductService.Reserve(ctx, id, qty)
	s.evict(ctx, id)
	return ok, err
}

func (s *CachedService) Release(ctx context.Context, id int64, qty int) error {
	err := s.ProductService.Release(ctx, id, qty)
	s.evict(ctx, id)
	return err
}

func (s *CachedService) evict(ctx context.Context, id int64) {
	if err := s.rdb.Del(ctx, cacheKey(id)).Err(); err != nil {
		s.logger.Warn("cache evict failed", zap.Int64("product_id", id), zap.Error(err))
	}
}
