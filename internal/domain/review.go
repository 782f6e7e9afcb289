package domain

import (
	"fmt"
	"strconv"
)

// Review joins one Customer to one Item. Either side may be nil.
type Review struct {
	ID      *int64
	Comment *string

	customer *Customer
	item     *Item
}

// NewReview builds a review and attaches it to c and i when they are non-nil.
func NewReview(comment string, c *Customer, i *Item) *Review {
	r := &Review{Comment: ptrStr(comment)}
	r.SetCustomer(c)
	r.SetItem(i)
	return r
}

func (r *Review) Kind() Kind       { return KindReview }
func (r *Review) EntityID() *int64 { return r.ID }

func (r *Review) Customer() *Customer { return r.customer }
func (r *Review) Item() *Item         { return r.item }

// SetCustomer moves r from its current customer's collection (if any) to c's.
// Passing nil detaches it.
func (r *Review) SetCustomer(c *Customer) {
	if r.customer == c {
		return
	}
	if r.customer != nil {
		r.customer.reviews = without(r.customer.reviews, r)
	}
	r.customer = c
	if c != nil {
		c.reviews = append(c.reviews, r)
	}
}

func (r *Review) SetItem(i *Item) {
	if r.item == i {
		return
	}
	if r.item != nil {
		r.item.reviews = without(r.item.reviews, r)
	}
	r.item = i
	if i != nil {
		i.reviews = append(i.reviews, r)
	}
}

// CustomerID is the foreign key as it would be written: the id of the
// attached customer, nil when detached or when the customer is unsaved.
func (r *Review) CustomerID() *int64 {
	if r.customer == nil {
		return nil
	}
	return r.customer.ID
}

func (r *Review) ItemID() *int64 {
	if r.item == nil {
		return nil
	}
	return r.item.ID
}

func (r *Review) String() string {
	return fmt.Sprintf("<Review %s, %s>", fmtID(r.ID), fmtStr(r.Comment))
}

func fmtID(id *int64) string {
	if id == nil {
		return "None"
	}
	return strconv.FormatInt(*id, 10)
}

func fmtStr(s *string) string {
	if s == nil {
		return "None"
	}
	return *s
}
