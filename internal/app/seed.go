package app

import (
	"context"
	"fmt"

	"shop_reviews/internal/domain"
)

// Fixtures is the import format for cmd/seeder. Reviews reference items by name.
type Fixtures struct {
	Items     []ItemFixture     `yaml:"items" json:"items"`
	Customers []CustomerFixture `yaml:"customers" json:"customers"`
}

type ItemFixture struct {
	Name  string   `yaml:"name" json:"name"`
	Price *float64 `yaml:"price" json:"price"`
}

type CustomerFixture struct {
	Name    string          `yaml:"name" json:"name"`
	Reviews []ReviewFixture `yaml:"reviews" json:"reviews"`
}

type ReviewFixture struct {
	Comment string `yaml:"comment" json:"comment"`
	Item    string `yaml:"item" json:"item"`
}

type Seeder struct {
	store domain.Store
}

func NewSeeder(st domain.Store) *Seeder { return &Seeder{store: st} }

// SeedItems inserts all items in one transaction and returns their ids by
// name. A later duplicate name wins the map entry.
func (s *Seeder) SeedItems(ctx context.Context, items []ItemFixture) (map[string]int64, error) {
	sess := s.store.Session()
	made := make([]*domain.Item, 0, len(items))
	for _, f := range items {
		it := &domain.Item{Price: f.Price}
		if f.Name != "" {
			name := f.Name
			it.Name = &name
		}
		sess.Add(it)
		made = append(made, it)
	}
	if err := sess.Commit(ctx); err != nil {
		return nil, fmt.Errorf("seed items: %w", err)
	}
	ids := make(map[string]int64, len(made))
	for i, it := range made {
		ids[items[i].Name] = *it.ID
	}
	return ids, nil
}

// SeedCustomer inserts one customer with its reviews in its own session, so
// callers may run several concurrently.
func (s *Seeder) SeedCustomer(ctx context.Context, f CustomerFixture, itemIDs map[string]int64) (*domain.Customer, error) {
	sess := s.store.Session()
	c := domain.NewCustomer(f.Name)
	for _, rf := range f.Reviews {
		var it *domain.Item
		if rf.Item != "" {
			id, ok := itemIDs[rf.Item]
			if !ok {
				return nil, domain.NewInvalidInputError("item", fmt.Sprintf("unknown item %q for customer %q", rf.Item, f.Name))
			}
			var err error
			if it, err = sess.Item(ctx, id); err != nil {
				return nil, err
			}
		}
		domain.NewReview(rf.Comment, c, it)
	}
	sess.Add(c)
	if err := sess.Commit(ctx); err != nil {
		return nil, fmt.Errorf("seed customer %q: %w", f.Name, err)
	}
	return c, nil
}
