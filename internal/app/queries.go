package app

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"shop_reviews/internal/domain"
	"shop_reviews/internal/schema"
)

type QueryService struct {
	store    domain.Store
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(st domain.Store, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{store: st, cache: c, cacheTTL: ttl}
}

func (s *QueryService) GetCustomer(ctx context.Context, id int64) (schema.Mapping, error) {
	return cached(ctx, s, customerKey(id), func(sess domain.Session) (schema.Mapping, error) {
		c, err := sess.Customer(ctx, id)
		if err != nil {
			return nil, err
		}
		return schema.Customer(c), nil
	})
}

func (s *QueryService) GetItem(ctx context.Context, id int64) (schema.Mapping, error) {
	return cached(ctx, s, itemKey(id), func(sess domain.Session) (schema.Mapping, error) {
		i, err := sess.Item(ctx, id)
		if err != nil {
			return nil, err
		}
		return schema.Item(i), nil
	})
}

func (s *QueryService) GetReview(ctx context.Context, id int64) (schema.Mapping, error) {
	return cached(ctx, s, reviewKey(id), func(sess domain.Session) (schema.Mapping, error) {
		r, err := sess.Review(ctx, id)
		if err != nil {
			return nil, err
		}
		return schema.Review(r), nil
	})
}

// CustomerItems projects the items reachable through the customer's reviews,
// repeats included. It always reads the store: each item renders its
// reviewers, three hops from the customer, which keyed invalidation does not
// follow.
func (s *QueryService) CustomerItems(ctx context.Context, id int64) ([]schema.Mapping, error) {
	sess := s.store.Session()
	c, err := sess.Customer(ctx, id)
	if err != nil {
		return nil, err
	}
	items := slices.Collect(c.Items())
	// load each item's own reviews so the projection is complete
	for _, it := range items {
		if _, err := sess.Item(ctx, *it.ID); err != nil {
			return nil, err
		}
	}
	return schema.Many(items), nil
}

// cached is read-through: cache errors degrade to a store read.
func cached[T any](ctx context.Context, s *QueryService, key string, load func(domain.Session) (T, error)) (T, error) {
	var out T
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}
	v, err := load(s.store.Session())
	if err != nil {
		return out, err
	}
	if s.cache == nil {
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("projection not cacheable")
		return v, nil
	}
	// optional size guard
	if len(b) >= 1_000_000 {
		log.Debug().Str("key", key).Int("bytes", len(b)).Msg("projection too large to cache")
		return v, nil
	}
	if err := s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds())); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
	return v, nil
}
