package domain

import (
	"fmt"
	"strconv"
)

type Item struct {
	ID    *int64
	Name  *string
	Price *float64

	reviews []*Review
}

func NewItem(name string, price float64) *Item {
	return &Item{Name: ptrStr(name), Price: &price}
}

func (i *Item) Kind() Kind       { return KindItem }
func (i *Item) EntityID() *int64 { return i.ID }

func (i *Item) Reviews() []*Review {
	out := make([]*Review, len(i.reviews))
	copy(out, i.reviews)
	return out
}

func (i *Item) HasReview(r *Review) bool { return indexOf(i.reviews, r) >= 0 }

func (i *Item) AddReview(r *Review) { r.SetItem(i) }

func (i *Item) RemoveReview(r *Review) {
	if r.item == i {
		r.SetItem(nil)
	}
}

func (i *Item) String() string {
	price := "None"
	if i.Price != nil {
		price = strconv.FormatFloat(*i.Price, 'f', -1, 64)
	}
	return fmt.Sprintf("<Item %s, %s, %s>", fmtID(i.ID), fmtStr(i.Name), price)
}
