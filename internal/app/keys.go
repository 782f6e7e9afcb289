package app

import (
	"fmt"

	"shop_reviews/internal/domain"
)

func customerKey(id int64) string { return fmt.Sprintf("customer:%d", id) }
func itemKey(id int64) string     { return fmt.Sprintf("item:%d", id) }
func reviewKey(id int64) string   { return fmt.Sprintf("review:%d", id) }

// cacheKeys lists every cached projection that renders some field of e.
// Cached projections reach at most two hops, so the direct neighbours
// suffice. CustomerItems reaches three and is not cached.
func cacheKeys(e domain.Entity) []string {
	var out []string
	addCustomer := func(c *domain.Customer) {
		if c != nil && c.ID != nil {
			out = append(out, customerKey(*c.ID))
		}
	}
	addItem := func(i *domain.Item) {
		if i != nil && i.ID != nil {
			out = append(out, itemKey(*i.ID))
		}
	}
	addReview := func(r *domain.Review) {
		if r != nil && r.ID != nil {
			out = append(out, reviewKey(*r.ID))
		}
	}

	switch v := e.(type) {
	case *domain.Customer:
		addCustomer(v)
		for _, r := range v.Reviews() {
			addReview(r)
			addItem(r.Item())
		}
	case *domain.Item:
		addItem(v)
		for _, r := range v.Reviews() {
			addReview(r)
			addCustomer(r.Customer())
		}
	case *domain.Review:
		addReview(v)
		addCustomer(v.Customer())
		addItem(v.Item())
	}
	return out
}

func merge(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, k := range append(a, b...) {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
