// Package schema flattens entity graphs into plain nested mappings for
// transport.
//
// The graph is cyclic (customer -> reviews -> customer, item -> reviews -> item),
// so nesting is bounded by a fixed table: each root kind lists the relations it
// renders and which relations the nested projection must leave out. There is
// no visited set; the table alone guarantees termination.
package schema

import (
	"shop_reviews/internal/domain"
)

// Mapping is the projected form of an entity. Values are nil, scalars,
// Mapping or []Mapping.
type Mapping = map[string]any

type relation struct {
	field   string
	exclude []string // relations dropped from each nested projection
}

var policy = map[domain.Kind][]relation{
	domain.KindCustomer: {
		{field: "reviews", exclude: []string{"customer"}},
	},
	domain.KindItem: {
		{field: "reviews", exclude: []string{"item"}},
	},
	domain.KindReview: {
		{field: "customer", exclude: []string{"reviews"}},
		{field: "item", exclude: []string{"reviews"}},
	},
}

// Project renders e according to the policy for its kind. Unset scalars
// are present with a nil value.
func Project(e domain.Entity) Mapping {
	return project(e, nil)
}

func Customer(c *domain.Customer) Mapping { return Project(c) }
func Item(i *domain.Item) Mapping         { return Project(i) }
func Review(r *domain.Review) Mapping     { return Project(r) }

// Many projects each element independently, preserving order.
func Many[E domain.Entity](es []E) []Mapping {
	out := make([]Mapping, 0, len(es))
	for _, e := range es {
		out = append(out, Project(e))
	}
	return out
}

func project(e domain.Entity, exclude []string) Mapping {
	m := scalars(e)
	for _, rel := range policy[e.Kind()] {
		if contains(exclude, rel.field) {
			continue
		}
		m[rel.field] = nested(e, rel)
	}
	return m
}

func scalars(e domain.Entity) Mapping {
	switch v := e.(type) {
	case *domain.Customer:
		return Mapping{"id": val(v.ID), "name": val(v.Name)}
	case *domain.Item:
		return Mapping{"id": val(v.ID), "name": val(v.Name), "price": val(v.Price)}
	case *domain.Review:
		return Mapping{"id": val(v.ID), "comment": val(v.Comment)}
	}
	return Mapping{}
}

func nested(e domain.Entity, rel relation) any {
	switch v := e.(type) {
	case *domain.Customer:
		if rel.field == "reviews" {
			return reviews(v.Reviews(), rel.exclude)
		}
	case *domain.Item:
		if rel.field == "reviews" {
			return reviews(v.Reviews(), rel.exclude)
		}
	case *domain.Review:
		switch rel.field {
		case "customer":
			if c := v.Customer(); c != nil {
				return project(c, rel.exclude)
			}
		case "item":
			if i := v.Item(); i != nil {
				return project(i, rel.exclude)
			}
		}
	}
	return nil
}

func reviews(rs []*domain.Review, exclude []string) []Mapping {
	out := make([]Mapping, 0, len(rs))
	for _, r := range rs {
		out = append(out, project(r, exclude))
	}
	return out
}

// val unwraps optional scalars so a nil pointer becomes an untyped nil.
func val[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
