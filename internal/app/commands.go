package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"shop_reviews/internal/domain"
)

type CommandService struct {
	store domain.Store
	cache domain.Cache
}

func NewCommandService(st domain.Store, cache domain.Cache) *CommandService {
	return &CommandService{store: st, cache: cache}
}

type CustomerInput struct {
	Name *string `json:"name"`
}

type ItemInput struct {
	Name  *string  `json:"name"`
	Price *float64 `json:"price"`
}

type ReviewInput struct {
	Comment    *string `json:"comment"`
	CustomerID *int64  `json:"customer_id"`
	ItemID     *int64  `json:"item_id"`
}

// ReviewPatch leaves nil fields unchanged. Detach* clear a link and win over
// the matching id.
type ReviewPatch struct {
	Comment        *string `json:"comment"`
	CustomerID     *int64  `json:"customer_id"`
	ItemID         *int64  `json:"item_id"`
	DetachCustomer bool    `json:"detach_customer"`
	DetachItem     bool    `json:"detach_item"`
}

func (s *CommandService) CreateCustomer(ctx context.Context, in CustomerInput) (*domain.Customer, error) {
	sess := s.store.Session()
	c := &domain.Customer{Name: in.Name}
	sess.Add(c)
	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CommandService) CreateItem(ctx context.Context, in ItemInput) (*domain.Item, error) {
	sess := s.store.Session()
	i := &domain.Item{Name: in.Name, Price: in.Price}
	sess.Add(i)
	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}
	return i, nil
}

// CreateReview attaches the new review to the referenced customer and item.
// Unknown ids surface as domain.ErrNotFound.
func (s *CommandService) CreateReview(ctx context.Context, in ReviewInput) (*domain.Review, error) {
	sess := s.store.Session()
	r := &domain.Review{Comment: in.Comment}
	if in.CustomerID != nil {
		c, err := sess.Customer(ctx, *in.CustomerID)
		if err != nil {
			return nil, err
		}
		r.SetCustomer(c)
	}
	if in.ItemID != nil {
		i, err := sess.Item(ctx, *in.ItemID)
		if err != nil {
			return nil, err
		}
		r.SetItem(i)
	}
	sess.Add(r)
	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cacheKeys(r))
	return r, nil
}

// UpdateReview changes the comment and/or moves the review between
// customers and items; both the old and the new parents are invalidated.
func (s *CommandService) UpdateReview(ctx context.Context, id int64, p ReviewPatch) (*domain.Review, error) {
	sess := s.store.Session()
	r, err := sess.Review(ctx, id)
	if err != nil {
		return nil, err
	}
	keys := cacheKeys(r)

	if p.Comment != nil {
		r.Comment = p.Comment
	}
	switch {
	case p.DetachCustomer:
		r.SetCustomer(nil)
	case p.CustomerID != nil:
		c, err := sess.Customer(ctx, *p.CustomerID)
		if err != nil {
			return nil, err
		}
		r.SetCustomer(c)
	}
	switch {
	case p.DetachItem:
		r.SetItem(nil)
	case p.ItemID != nil:
		i, err := sess.Item(ctx, *p.ItemID)
		if err != nil {
			return nil, err
		}
		r.SetItem(i)
	}

	sess.Add(r)
	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}
	s.invalidate(ctx, merge(keys, cacheKeys(r)))
	return r, nil
}

func (s *CommandService) UpdateCustomer(ctx context.Context, id int64, in CustomerInput) (*domain.Customer, error) {
	sess := s.store.Session()
	c, err := sess.Customer(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name = in.Name
	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cacheKeys(c))
	return c, nil
}

func (s *CommandService) UpdateItem(ctx context.Context, id int64, in ItemInput) (*domain.Item, error) {
	sess := s.store.Session()
	i, err := sess.Item(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		i.Name = in.Name
	}
	if in.Price != nil {
		i.Price = in.Price
	}
	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cacheKeys(i))
	return i, nil
}

func (s *CommandService) DeleteCustomer(ctx context.Context, id int64) error {
	return s.delete(ctx, func(sess domain.Session) (domain.Entity, error) { return sess.Customer(ctx, id) })
}

func (s *CommandService) DeleteItem(ctx context.Context, id int64) error {
	return s.delete(ctx, func(sess domain.Session) (domain.Entity, error) { return sess.Item(ctx, id) })
}

func (s *CommandService) DeleteReview(ctx context.Context, id int64) error {
	return s.delete(ctx, func(sess domain.Session) (domain.Entity, error) { return sess.Review(ctx, id) })
}

func (s *CommandService) delete(ctx context.Context, load func(domain.Session) (domain.Entity, error)) error {
	sess := s.store.Session()
	e, err := load(sess)
	if err != nil {
		return err
	}
	// collect before Delete detaches the neighbours
	keys := cacheKeys(e)
	sess.Delete(e)
	if err := sess.Commit(ctx); err != nil {
		return fmt.Errorf("delete %s %d: %w", e.Kind(), *e.EntityID(), err)
	}
	s.invalidate(ctx, keys)
	return nil
}

func (s *CommandService) invalidate(ctx context.Context, keys []string) {
	if s.cache == nil {
		return
	}
	for _, k := range keys {
		if err := s.cache.Del(ctx, k); err != nil {
			log.Warn().Err(err).Str("key", k).Msg("cache invalidation failed")
		}
	}
}
