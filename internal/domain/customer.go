package domain

import (
	"fmt"
	"iter"
)

type Customer struct {
	ID   *int64
	Name *string

	// back-link; mutated only through Review.SetCustomer
	reviews []*Review
}

func NewCustomer(name string) *Customer {
	return &Customer{Name: ptrStr(name)}
}

func (c *Customer) Kind() Kind       { return KindCustomer }
func (c *Customer) EntityID() *int64 { return c.ID }

// Reviews returns the reviews pointing at c, in the order they were attached.
func (c *Customer) Reviews() []*Review {
	out := make([]*Review, len(c.reviews))
	copy(out, c.reviews)
	return out
}

func (c *Customer) HasReview(r *Review) bool { return indexOf(c.reviews, r) >= 0 }

// AddReview is the inverse-side spelling of r.SetCustomer(c).
func (c *Customer) AddReview(r *Review) { r.SetCustomer(c) }

// RemoveReview detaches r if it currently points at c.
func (c *Customer) RemoveReview(r *Review) {
	if r.customer == c {
		r.SetCustomer(nil)
	}
}

// Items projects .Item() across the customer's reviews. Reviews without an
// item are skipped; an item reviewed twice is yielded twice. The sequence
// reads the collection at iteration time, so it can be ranged over again
// after further mutations.
func (c *Customer) Items() iter.Seq[*Item] {
	return func(yield func(*Item) bool) {
		for _, r := range c.reviews {
			if r.item == nil {
				continue
			}
			if !yield(r.item) {
				return
			}
		}
	}
}

func (c *Customer) String() string {
	return fmt.Sprintf("<Customer %s, %s>", fmtID(c.ID), fmtStr(c.Name))
}
