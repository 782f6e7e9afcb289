package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shop_reviews/internal/app"
	"shop_reviews/internal/domain"
	"shop_reviews/internal/schema"
	"shop_reviews/internal/storage/sqlstore"
)

// ---- fakes ----

// fakeCache round-trips through JSON like the redis adapter does.
type fakeCache struct {
	store  map[string][]byte
	dels   []string
	setErr error
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.setErr != nil {
		return c.setErr
	}
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.dels = append(c.dels, key)
	delete(c.store, key)
	return nil
}

// ---- helpers ----

type fixture struct {
	st    *sqlstore.Store
	cache *fakeCache
	cmd   *app.CommandService
	q     *app.QueryService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st, err := sqlstore.Open("sqlite", sqlstore.SQLiteDSN(":memory:"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	cache := &fakeCache{}
	return fixture{
		st:    st,
		cache: cache,
		cmd:   app.NewCommandService(st, cache),
		q:     app.NewQueryService(st, cache, 10*time.Minute),
	}
}

func ptr[T any](v T) *T { return &v }

func reviewsOf(t *testing.T, m schema.Mapping) []any {
	t.Helper()
	// cached values come back as []any, fresh ones as []schema.Mapping
	switch rs := m["reviews"].(type) {
	case []any:
		return rs
	case []schema.Mapping:
		out := make([]any, len(rs))
		for i := range rs {
			out[i] = rs[i]
		}
		return out
	}
	t.Fatalf("reviews has type %T", m["reviews"])
	return nil
}

// ---- tests ----

func TestGetCustomer_CacheMissThenHit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr("Phil")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	m, err := f.q.GetCustomer(ctx, *c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m["name"] != "Phil" {
		t.Fatalf("unexpected: %+v", m)
	}

	// change the row behind the service's back; the cached projection wins
	s := f.st.Session()
	c2, err := s.Customer(ctx, *c.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c2.Name = ptr("SHOULD NOT SEE THIS")
	if err := s.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	m2, err := f.q.GetCustomer(ctx, *c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m2["name"] != "Phil" {
		t.Fatalf("expected cached name, got %v", m2["name"])
	}
}

func TestCreateReview_InvalidatesParents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr("Phil")})
	i, _ := f.cmd.CreateItem(ctx, app.ItemInput{Name: ptr("Insulated Mug"), Price: ptr(9.99)})

	// warm both caches with empty review lists
	if _, err := f.q.GetCustomer(ctx, *c.ID); err != nil {
		t.Fatalf("warm customer: %v", err)
	}
	if _, err := f.q.GetItem(ctx, *i.ID); err != nil {
		t.Fatalf("warm item: %v", err)
	}

	r, err := f.cmd.CreateReview(ctx, app.ReviewInput{Comment: ptr("great!"), CustomerID: c.ID, ItemID: i.ID})
	if err != nil {
		t.Fatalf("create review: %v", err)
	}
	if *r.CustomerID() != *c.ID || *r.ItemID() != *i.ID {
		t.Fatalf("foreign keys not set")
	}

	cm, _ := f.q.GetCustomer(ctx, *c.ID)
	rs := reviewsOf(t, cm)
	if len(rs) != 1 {
		t.Fatalf("customer reviews = %v", rs)
	}
	if _, has := rs[0].(schema.Mapping)["customer"]; has {
		t.Fatalf("nested review carries customer")
	}

	im, _ := f.q.GetItem(ctx, *i.ID)
	if im["price"] != 9.99 || len(reviewsOf(t, im)) != 1 {
		t.Fatalf("item = %v", im)
	}
}

func TestCreateReview_UnknownCustomer(t *testing.T) {
	f := newFixture(t)
	_, err := f.cmd.CreateReview(context.Background(), app.ReviewInput{CustomerID: ptr(int64(77))})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateReview_MovesBetweenCustomers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr("a")})
	b, _ := f.cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr("b")})
	r, err := f.cmd.CreateReview(ctx, app.ReviewInput{Comment: ptr("x"), CustomerID: a.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _ = f.q.GetCustomer(ctx, *a.ID)
	_, _ = f.q.GetCustomer(ctx, *b.ID)

	if _, err := f.cmd.UpdateReview(ctx, *r.ID, app.ReviewPatch{CustomerID: b.ID, Comment: ptr("y")}); err != nil {
		t.Fatalf("update: %v", err)
	}

	am, _ := f.q.GetCustomer(ctx, *a.ID)
	bm, _ := f.q.GetCustomer(ctx, *b.ID)
	if len(reviewsOf(t, am)) != 0 || len(reviewsOf(t, bm)) != 1 {
		t.Fatalf("move not visible: a=%v b=%v", am, bm)
	}

	rm, err := f.q.GetReview(ctx, *r.ID)
	if err != nil {
		t.Fatalf("get review: %v", err)
	}
	if rm["comment"] != "y" || rm["customer"].(schema.Mapping)["name"] != "b" {
		t.Fatalf("review = %v", rm)
	}

	if _, err := f.cmd.UpdateReview(ctx, *r.ID, app.ReviewPatch{DetachCustomer: true}); err != nil {
		t.Fatalf("detach: %v", err)
	}
	rm, _ = f.q.GetReview(ctx, *r.ID)
	if rm["customer"] != nil {
		t.Fatalf("customer not detached: %v", rm)
	}
}

func TestCustomerItems_IncludesRepeats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr("Phil")})
	mug, _ := f.cmd.CreateItem(ctx, app.ItemInput{Name: ptr("mug"), Price: ptr(1.0)})
	for _, s := range []string{"one", "two"} {
		if _, err := f.cmd.CreateReview(ctx, app.ReviewInput{Comment: ptr(s), CustomerID: c.ID, ItemID: mug.ID}); err != nil {
			t.Fatalf("review: %v", err)
		}
	}

	items, err := f.q.CustomerItems(ctx, *c.ID)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 2 || items[0]["name"] != "mug" {
		t.Fatalf("items = %v", items)
	}
	if rs := items[0]["reviews"].([]schema.Mapping); len(rs) != 2 {
		t.Fatalf("item reviews = %v", rs)
	}
}

func TestUpdateCustomerAndItem_InvalidateNeighbours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr("Phil")})
	i, _ := f.cmd.CreateItem(ctx, app.ItemInput{Name: ptr("mug"), Price: ptr(1.0)})
	r, _ := f.cmd.CreateReview(ctx, app.ReviewInput{Comment: ptr("ok"), CustomerID: c.ID, ItemID: i.ID})
	_, _ = f.q.GetReview(ctx, *r.ID)

	if _, err := f.cmd.UpdateCustomer(ctx, *c.ID, app.CustomerInput{Name: ptr("Philip")}); err != nil {
		t.Fatalf("update customer: %v", err)
	}
	if _, err := f.cmd.UpdateItem(ctx, *i.ID, app.ItemInput{Price: ptr(2.5)}); err != nil {
		t.Fatalf("update item: %v", err)
	}

	rm, _ := f.q.GetReview(ctx, *r.ID)
	if rm["customer"].(schema.Mapping)["name"] != "Philip" {
		t.Fatalf("stale customer in review: %v", rm)
	}
	item := rm["item"].(schema.Mapping)
	if item["price"] != 2.5 || item["name"] != "mug" {
		t.Fatalf("stale item in review: %v", item)
	}
}

func TestDeleteCustomer_KeepsReviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr("Phil")})
	r, _ := f.cmd.CreateReview(ctx, app.ReviewInput{Comment: ptr("ok"), CustomerID: c.ID})
	_, _ = f.q.GetReview(ctx, *r.ID)

	if err := f.cmd.DeleteCustomer(ctx, *c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.q.GetCustomer(ctx, *c.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	rm, err := f.q.GetReview(ctx, *r.ID)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if rm["customer"] != nil {
		t.Fatalf("review still points at deleted customer: %v", rm)
	}

	if err := f.cmd.DeleteReview(ctx, *r.ID); err != nil {
		t.Fatalf("delete review: %v", err)
	}
	if err := f.cmd.DeleteItem(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCustomerItems_ShowsCoReviewerChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x, _ := f.cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr("X")})
	y, _ := f.cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr("Y")})
	mug, _ := f.cmd.CreateItem(ctx, app.ItemInput{Name: ptr("mug"), Price: ptr(1.0)})
	if _, err := f.cmd.CreateReview(ctx, app.ReviewInput{Comment: ptr("a"), CustomerID: x.ID, ItemID: mug.ID}); err != nil {
		t.Fatalf("review a: %v", err)
	}
	if _, err := f.q.CustomerItems(ctx, *x.ID); err != nil {
		t.Fatalf("items: %v", err)
	}

	if _, err := f.cmd.CreateReview(ctx, app.ReviewInput{Comment: ptr("b"), CustomerID: y.ID, ItemID: mug.ID}); err != nil {
		t.Fatalf("review b: %v", err)
	}
	if _, err := f.cmd.UpdateCustomer(ctx, *y.ID, app.CustomerInput{Name: ptr("Y2")}); err != nil {
		t.Fatalf("rename: %v", err)
	}

	items, err := f.q.CustomerItems(ctx, *x.ID)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	rs := items[0]["reviews"].([]schema.Mapping)
	if len(rs) != 2 {
		t.Fatalf("item reviews = %v", rs)
	}
	if rs[1]["comment"] != "b" || rs[1]["customer"].(schema.Mapping)["name"] != "Y2" {
		t.Fatalf("co-reviewer = %v", rs[1])
	}
}

func TestCached_SetFailureIsLoggedAndServed(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.cmd.CreateCustomer(ctx, app.CustomerInput{Name: ptr("Phil")})
	f.cache.setErr = errors.New("redis down")

	m, err := f.q.GetCustomer(ctx, *c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m["name"] != "Phil" {
		t.Fatalf("unexpected: %v", m)
	}
	if !strings.Contains(buf.String(), "cache set failed") || !strings.Contains(buf.String(), "redis down") {
		t.Fatalf("log = %q", buf.String())
	}
}
