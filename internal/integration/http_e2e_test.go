//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	server "shop_reviews/internal/adapters/http_server"
	redisad "shop_reviews/internal/adapters/redis"
	"shop_reviews/internal/app"
	"shop_reviews/internal/storage/sqlstore"
	"shop_reviews/internal/testutil/mysqlct"
)

// ---------- helpers ----------

func postJSON(t *testing.T, url string, body any) map[string]any {
	t.Helper()
	b, _ := json.Marshal(body)
	res, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("POST %s: status %d", url, res.StatusCode)
	}
	var m map[string]any
	if err := json.NewDecoder(res.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func getJSON(t *testing.T, url string) map[string]any {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, res.StatusCode)
	}
	var m map[string]any
	if err := json.NewDecoder(res.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

// ---------- the test ----------

func TestHTTP_EndToEnd_ReviewGraph(t *testing.T) {
	st := sqlstore.New(mysqlct.Start(t, "shop"), sqlstore.MySQL)
	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}

	mr := miniredis.RunT(t)
	cache := redisad.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "e2e")

	srv := server.New(server.Options{})
	srv.MountHandlers(&server.Handlers{
		Q: app.NewQueryService(st, cache, time.Minute),
		C: app.NewCommandService(st, cache),
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	c := postJSON(t, ts.URL+"/v1/customers", map[string]any{"name": "Phil"})
	i := postJSON(t, ts.URL+"/v1/items", map[string]any{"name": "Insulated Mug", "price": 9.99})
	cid, iid := c["id"].(float64), i["id"].(float64)

	// warm the customer projection before the review exists
	if rs := getJSON(t, fmt.Sprintf("%s/v1/customers/%.0f", ts.URL, cid))["reviews"].([]any); len(rs) != 0 {
		t.Fatalf("fresh customer has reviews: %v", rs)
	}

	r := postJSON(t, ts.URL+"/v1/reviews", map[string]any{"comment": "great!", "customer_id": cid, "item_id": iid})
	rid := r["id"].(float64)

	cm := getJSON(t, fmt.Sprintf("%s/v1/customers/%.0f", ts.URL, cid))
	rs := cm["reviews"].([]any)
	if len(rs) != 1 {
		t.Fatalf("stale customer projection: %v", cm)
	}
	nested := rs[0].(map[string]any)
	if _, has := nested["customer"]; has {
		t.Fatalf("nested review carries customer: %v", nested)
	}
	if nested["item"].(map[string]any)["price"] != 9.99 {
		t.Fatalf("nested item = %v", nested["item"])
	}
	if !mr.Exists(fmt.Sprintf("e2e:customer:%.0f", cid)) {
		t.Fatalf("customer projection not cached")
	}

	rm := getJSON(t, fmt.Sprintf("%s/v1/reviews/%.0f", ts.URL, rid))
	for _, k := range []string{"customer", "item"} {
		if _, has := rm[k].(map[string]any)["reviews"]; has {
			t.Fatalf("review.%s carries reviews: %v", k, rm)
		}
	}

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/v1/items/%.0f", ts.URL, iid), nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", res.StatusCode)
	}

	rm = getJSON(t, fmt.Sprintf("%s/v1/reviews/%.0f", ts.URL, rid))
	if rm["item"] != nil || rm["customer"] == nil {
		t.Fatalf("review after item delete = %v", rm)
	}
}
