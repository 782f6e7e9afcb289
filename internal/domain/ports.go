package domain

import "context"

// Store hands out units of work against the persistence layer.
type Store interface {
	Session() Session
}

// Session is a unit of work with an identity map: within one session a row
// is materialized at most once, so relationship pointers compare equal.
type Session interface {
	// Write paths. Add and Delete are applied on Commit.
	Add(es ...Entity)
	Delete(e Entity)
	Commit(ctx context.Context) error
	Rollback()

	// Read paths
	Customer(ctx context.Context, id int64) (*Customer, error)
	Item(ctx context.Context, id int64) (*Item, error)
	Review(ctx context.Context, id int64) (*Review, error)
	FindCustomers(ctx context.Context, f CustomerFilter) ([]*Customer, error)
	FindItems(ctx context.Context, f ItemFilter) ([]*Item, error)
	FindReviews(ctx context.Context, f ReviewFilter) ([]*Review, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Filters; nil fields do not constrain.
type CustomerFilter struct {
	Name *string
}

type ItemFilter struct {
	Name *string
}

type ReviewFilter struct {
	CustomerID *int64
	ItemID     *int64
}
