package domain

// Kind names one of the three record kinds.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindItem     Kind = "item"
	KindReview   Kind = "review"
)

// Entity is any persistently identifiable record. EntityID is nil until
// the store assigns an identifier on commit.
type Entity interface {
	Kind() Kind
	EntityID() *int64
}

func ptrStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// indexOf is used by both sides of a back-link collection.
func indexOf(rs []*Review, r *Review) int {
	for i, x := range rs {
		if x == r {
			return i
		}
	}
	return -1
}

func without(rs []*Review, r *Review) []*Review {
	if i := indexOf(rs, r); i >= 0 {
		return append(rs[:i:i], rs[i+1:]...)
	}
	return rs
}
