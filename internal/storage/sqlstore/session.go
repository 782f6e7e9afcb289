package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"shop_reviews/internal/adapters/observability"
	"shop_reviews/internal/domain"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// rowState is the column image of an entity as last read or written. Commit
// only updates persisted entities whose current image differs.
type rowState struct {
	name       sql.NullString
	price      sql.NullFloat64
	comment    sql.NullString
	customerID sql.NullInt64
	itemID     sql.NullInt64
}

func stateOf(e domain.Entity) rowState {
	var st rowState
	switch v := e.(type) {
	case *domain.Customer:
		st.name = nullable(v.Name)
	case *domain.Item:
		st.name = nullable(v.Name)
		if v.Price != nil {
			st.price = sql.NullFloat64{Float64: *v.Price, Valid: true}
		}
	case *domain.Review:
		st.comment = nullable(v.Comment)
		if id := v.CustomerID(); id != nil {
			st.customerID = sql.NullInt64{Int64: *id, Valid: true}
		}
		if id := v.ItemID(); id != nil {
			st.itemID = sql.NullInt64{Int64: *id, Valid: true}
		}
	}
	return st
}

func nullable(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

type reviewRow struct {
	id         int64
	comment    sql.NullString
	customerID sql.NullInt64
	itemID     sql.NullInt64
}

// Session is a unit of work. It is not safe for concurrent use; open one
// session per goroutine.
type Session struct {
	db *sql.DB

	// identity map
	customers map[int64]*domain.Customer
	items     map[int64]*domain.Item
	reviews   map[int64]*domain.Review

	// parents whose review collection has been read from the database
	loadedCustomers map[int64]bool
	loadedItems     map[int64]bool

	clean map[domain.Entity]rowState

	pending []domain.Entity
	deleted []domain.Entity
}

func newSession(db *sql.DB) *Session {
	return &Session{
		db:              db,
		customers:       map[int64]*domain.Customer{},
		items:           map[int64]*domain.Item{},
		reviews:         map[int64]*domain.Review{},
		loadedCustomers: map[int64]bool{},
		loadedItems:     map[int64]bool{},
		clean:           map[domain.Entity]rowState{},
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "error"
}

// ---- unit of work ----

func (s *Session) Add(es ...domain.Entity) {
	s.pending = append(s.pending, es...)
}

// Delete detaches e from the in-memory graph immediately; the row goes away
// on Commit. Reviews of a deleted customer or item keep existing with a
// NULL foreign key.
func (s *Session) Delete(e domain.Entity) {
	switch v := e.(type) {
	case *domain.Customer:
		for _, r := range v.Reviews() {
			r.SetCustomer(nil)
			s.pending = append(s.pending, r)
		}
	case *domain.Item:
		for _, r := range v.Reviews() {
			r.SetItem(nil)
			s.pending = append(s.pending, r)
		}
	case *domain.Review:
		v.SetCustomer(nil)
		v.SetItem(nil)
	}
	s.deleted = append(s.deleted, e)
}

// Rollback drops queued adds and deletes. In-memory relationship changes
// already made by the caller are not reverted.
func (s *Session) Rollback() {
	s.pending = nil
	s.deleted = nil
}

type plan struct {
	customers []*domain.Customer
	items     []*domain.Item
	reviews   []*domain.Review
}

// closure walks relationships from every tracked entity so that adding a
// review also saves its parents and vice versa.
func (s *Session) closure() plan {
	var p plan
	seen := map[domain.Entity]bool{}
	gone := map[domain.Entity]bool{}
	for _, e := range s.deleted {
		gone[e] = true
	}

	// FIFO so rows are inserted in the order they were added
	queue := append([]domain.Entity(nil), s.pending...)
	for _, c := range s.customers {
		queue = append(queue, c)
	}
	for _, i := range s.items {
		queue = append(queue, i)
	}
	for _, r := range s.reviews {
		queue = append(queue, r)
	}

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if e == nil || seen[e] || gone[e] {
			continue
		}
		seen[e] = true
		switch v := e.(type) {
		case *domain.Customer:
			p.customers = append(p.customers, v)
			for _, r := range v.Reviews() {
				queue = append(queue, r)
			}
		case *domain.Item:
			p.items = append(p.items, v)
			for _, r := range v.Reviews() {
				queue = append(queue, r)
			}
		case *domain.Review:
			p.reviews = append(p.reviews, v)
			if c := v.Customer(); c != nil {
				queue = append(queue, c)
			}
			if i := v.Item(); i != nil {
				queue = append(queue, i)
			}
		}
	}
	return p
}

// Commit flushes the session in one transaction: parents first so review
// foreign keys resolve, then reviews, then deletes. Persisted entities are
// written only if they changed since this session read or wrote them. On
// failure every identifier assigned during this commit is cleared again.
func (s *Session) Commit(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observability.ObserveStore("commit", outcome(err), time.Since(start)) }()

	p := s.closure()
	var assigned []**int64

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		_ = tx.Rollback()
		for _, id := range assigned {
			*id = nil
		}
		log.Error().Err(err).Msg("session commit failed")
	}()

	var inserted, updated int
	dirty := func(e domain.Entity) bool {
		st, ok := s.clean[e]
		return !ok || st != stateOf(e)
	}
	insert := func(q string, id **int64, args ...any) error {
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return err
		}
		n, err := res.LastInsertId()
		if err != nil {
			return err
		}
		*id = &n
		assigned = append(assigned, id)
		inserted++
		return nil
	}
	update := func(q string, args ...any) error {
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
		updated++
		return nil
	}

	for _, c := range p.customers {
		if c.ID == nil {
			err = insert(insertCustomerSQL, &c.ID, valStr(c.Name))
		} else if dirty(c) {
			err = update(updateCustomerSQL, valStr(c.Name), *c.ID)
		}
		if err != nil {
			return fmt.Errorf("save customer: %w", err)
		}
	}
	for _, i := range p.items {
		if i.ID == nil {
			err = insert(insertItemSQL, &i.ID, valStr(i.Name), valF64(i.Price))
		} else if dirty(i) {
			err = update(updateItemSQL, valStr(i.Name), valF64(i.Price), *i.ID)
		}
		if err != nil {
			return fmt.Errorf("save item: %w", err)
		}
	}
	for _, r := range p.reviews {
		if r.ID == nil {
			err = insert(insertReviewSQL, &r.ID, valStr(r.Comment), valInt64(r.CustomerID()), valInt64(r.ItemID()))
		} else if dirty(r) {
			err = update(updateReviewSQL, valStr(r.Comment), valInt64(r.CustomerID()), valInt64(r.ItemID()), *r.ID)
		}
		if err != nil {
			return fmt.Errorf("save review: %w", err)
		}
	}

	deleted, err := s.flushDeletes(ctx, tx)
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	for _, c := range p.customers {
		s.customers[*c.ID] = c
		s.clean[c] = stateOf(c)
	}
	for _, i := range p.items {
		s.items[*i.ID] = i
		s.clean[i] = stateOf(i)
	}
	for _, r := range p.reviews {
		s.reviews[*r.ID] = r
		s.clean[r] = stateOf(r)
	}
	s.forgetDeleted()
	s.pending, s.deleted = nil, nil

	log.Debug().
		Int("inserted", inserted).
		Int("updated", updated).
		Int("deleted", deleted).
		Msg("session commit")
	return nil
}

func (s *Session) flushDeletes(ctx context.Context, tx execer) (int, error) {
	n := 0
	// reviews before parents keeps the orphaning updates minimal
	ordered := make([]domain.Entity, 0, len(s.deleted))
	for _, e := range s.deleted {
		if e.Kind() == domain.KindReview {
			ordered = append(ordered, e)
		}
	}
	for _, e := range s.deleted {
		if e.Kind() != domain.KindReview {
			ordered = append(ordered, e)
		}
	}

	for _, e := range ordered {
		id := e.EntityID()
		if id == nil {
			continue // never persisted
		}
		var stmts []string
		switch e.Kind() {
		case domain.KindCustomer:
			stmts = []string{orphanByCustomerSQL, deleteCustomerSQL}
		case domain.KindItem:
			stmts = []string{orphanByItemSQL, deleteItemSQL}
		case domain.KindReview:
			stmts = []string{deleteReviewSQL}
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q, *id); err != nil {
				return n, fmt.Errorf("delete %s %d: %w", e.Kind(), *id, err)
			}
		}
		n++
	}
	return n, nil
}

func (s *Session) forgetDeleted() {
	for _, e := range s.deleted {
		delete(s.clean, e)
		id := e.EntityID()
		if id == nil {
			continue
		}
		switch e.Kind() {
		case domain.KindCustomer:
			delete(s.customers, *id)
			delete(s.loadedCustomers, *id)
		case domain.KindItem:
			delete(s.items, *id)
			delete(s.loadedItems, *id)
		case domain.KindReview:
			delete(s.reviews, *id)
		}
	}
}

// ---- loading ----

// Customer loads a customer, its reviews and each review's item.
func (s *Session) Customer(ctx context.Context, id int64) (c *domain.Customer, err error) {
	start := time.Now()
	defer func() { observability.ObserveStore("get_customer", outcome(err), time.Since(start)) }()

	if c, err = s.customerRow(ctx, id); err != nil {
		return nil, err
	}
	if err = s.loadCustomerReviews(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

// Item loads an item, its reviews and each review's customer.
func (s *Session) Item(ctx context.Context, id int64) (i *domain.Item, err error) {
	start := time.Now()
	defer func() { observability.ObserveStore("get_item", outcome(err), time.Since(start)) }()

	if i, err = s.itemRow(ctx, id); err != nil {
		return nil, err
	}
	if err = s.loadItemReviews(ctx, id); err != nil {
		return nil, err
	}
	return i, nil
}

// Review loads a review together with its customer and item.
func (s *Session) Review(ctx context.Context, id int64) (r *domain.Review, err error) {
	start := time.Now()
	defer func() { observability.ObserveStore("get_review", outcome(err), time.Since(start)) }()

	if r, ok := s.reviews[id]; ok {
		return r, nil
	}
	rows, err := s.scanReviews(ctx, s.db, selectReviewsSQL+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.NewNotFoundError(domain.KindReview, id)
	}
	return s.attachReview(ctx, rows[0])
}

func (s *Session) FindCustomers(ctx context.Context, f domain.CustomerFilter) ([]*domain.Customer, error) {
	q, args := selectCustomersSQL, []any{}
	if f.Name != nil {
		q += " WHERE name = ?"
		args = append(args, *f.Name)
	}
	rows, err := s.db.QueryContext(ctx, q+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	var ids []int64
	func() {
		defer rows.Close()
		for rows.Next() {
			var id int64
			var name sql.NullString
			if err = rows.Scan(&id, &name); err != nil {
				return
			}
			s.registerCustomer(id, name)
			ids = append(ids, id)
		}
		err = rows.Err()
	}()
	if err != nil {
		return nil, fmt.Errorf("scan customers: %w", err)
	}

	out := make([]*domain.Customer, 0, len(ids))
	for _, id := range ids {
		if err := s.loadCustomerReviews(ctx, id); err != nil {
			return nil, err
		}
		out = append(out, s.customers[id])
	}
	return out, nil
}

func (s *Session) FindItems(ctx context.Context, f domain.ItemFilter) ([]*domain.Item, error) {
	q, args := selectItemsSQL, []any{}
	if f.Name != nil {
		q += " WHERE name = ?"
		args = append(args, *f.Name)
	}
	rows, err := s.db.QueryContext(ctx, q+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	var ids []int64
	func() {
		defer rows.Close()
		for rows.Next() {
			var id int64
			var name sql.NullString
			var price sql.NullFloat64
			if err = rows.Scan(&id, &name, &price); err != nil {
				return
			}
			s.registerItem(id, name, price)
			ids = append(ids, id)
		}
		err = rows.Err()
	}()
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}

	out := make([]*domain.Item, 0, len(ids))
	for _, id := range ids {
		if err := s.loadItemReviews(ctx, id); err != nil {
			return nil, err
		}
		out = append(out, s.items[id])
	}
	return out, nil
}

func (s *Session) FindReviews(ctx context.Context, f domain.ReviewFilter) ([]*domain.Review, error) {
	var conds []string
	var args []any
	if f.CustomerID != nil {
		conds = append(conds, "customer_id = ?")
		args = append(args, *f.CustomerID)
	}
	if f.ItemID != nil {
		conds = append(conds, "item_id = ?")
		args = append(args, *f.ItemID)
	}
	q := selectReviewsSQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	rows, err := s.scanReviews(ctx, s.db, q, args...)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Review, 0, len(rows))
	for _, row := range rows {
		r, err := s.attachReview(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Session) customerRow(ctx context.Context, id int64) (*domain.Customer, error) {
	if c, ok := s.customers[id]; ok {
		return c, nil
	}
	var name sql.NullString
	err := s.db.QueryRowContext(ctx, selectCustomersSQL+" WHERE id = ?", id).Scan(&id, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError(domain.KindCustomer, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer %d: %w", id, err)
	}
	return s.registerCustomer(id, name), nil
}

func (s *Session) itemRow(ctx context.Context, id int64) (*domain.Item, error) {
	if i, ok := s.items[id]; ok {
		return i, nil
	}
	var name sql.NullString
	var price sql.NullFloat64
	err := s.db.QueryRowContext(ctx, selectItemsSQL+" WHERE id = ?", id).Scan(&id, &name, &price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError(domain.KindItem, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return s.registerItem(id, name, price), nil
}

// register* keep an already materialized entity as is; in-memory state wins
// over what the database says until the next commit.
func (s *Session) registerCustomer(id int64, name sql.NullString) *domain.Customer {
	if c, ok := s.customers[id]; ok {
		return c
	}
	c := &domain.Customer{ID: &id, Name: nullStr(name)}
	s.customers[id] = c
	s.clean[c] = stateOf(c)
	return c
}

func (s *Session) registerItem(id int64, name sql.NullString, price sql.NullFloat64) *domain.Item {
	if i, ok := s.items[id]; ok {
		return i
	}
	i := &domain.Item{ID: &id, Name: nullStr(name), Price: nullF64(price)}
	s.items[id] = i
	s.clean[i] = stateOf(i)
	return i
}

func (s *Session) loadCustomerReviews(ctx context.Context, id int64) error {
	if s.loadedCustomers[id] {
		return nil
	}
	rows, err := s.scanReviews(ctx, s.db, selectReviewsSQL+" WHERE customer_id = ?", id)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := s.attachReview(ctx, row); err != nil {
			return err
		}
	}
	s.loadedCustomers[id] = true
	return nil
}

func (s *Session) loadItemReviews(ctx context.Context, id int64) error {
	if s.loadedItems[id] {
		return nil
	}
	rows, err := s.scanReviews(ctx, s.db, selectReviewsSQL+" WHERE item_id = ?", id)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := s.attachReview(ctx, row); err != nil {
			return err
		}
	}
	s.loadedItems[id] = true
	return nil
}

// scanReviews drains the result set before returning so callers can issue
// follow-up queries on a single-connection pool.
func (s *Session) scanReviews(ctx context.Context, q queryer, query string, args ...any) ([]reviewRow, error) {
	rows, err := q.QueryContext(ctx, query+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var out []reviewRow
	for rows.Next() {
		var row reviewRow
		if err := rows.Scan(&row.id, &row.comment, &row.customerID, &row.itemID); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan reviews: %w", err)
	}
	return out, nil
}

func (s *Session) attachReview(ctx context.Context, row reviewRow) (*domain.Review, error) {
	if r, ok := s.reviews[row.id]; ok {
		return r, nil
	}
	id := row.id
	r := &domain.Review{ID: &id, Comment: nullStr(row.comment)}
	s.reviews[id] = r

	if cid := nullInt64(row.customerID); cid != nil {
		c, err := s.customerRow(ctx, *cid)
		if err != nil {
			return nil, err
		}
		r.SetCustomer(c)
	}
	if iid := nullInt64(row.itemID); iid != nil {
		i, err := s.itemRow(ctx, *iid)
		if err != nil {
			return nil, err
		}
		r.SetItem(i)
	}
	s.clean[r] = stateOf(r)
	return r, nil
}
