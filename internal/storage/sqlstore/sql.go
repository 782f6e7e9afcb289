package sqlstore

// Dialect carries the DDL that differs between engines. Every DML statement
// below uses `?` placeholders understood by both drivers.
type Dialect struct {
	Name   string
	Driver string
	Schema []string
}

var MySQL = Dialect{
	Name:   "mysql",
	Driver: "mysql",
	Schema: []string{
		`
CREATE TABLE IF NOT EXISTS customers (
  id   BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
  name VARCHAR(255) NULL
)`,
		`
CREATE TABLE IF NOT EXISTS items (
  id    BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
  name  VARCHAR(255) NULL,
  price DOUBLE       NULL
)`,
		`
CREATE TABLE IF NOT EXISTS reviews (
  id          BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
  comment     TEXT   NULL,
  customer_id BIGINT NULL,
  item_id     BIGINT NULL,
  CONSTRAINT fk_reviews_customer_id_customers FOREIGN KEY (customer_id) REFERENCES customers (id),
  CONSTRAINT fk_reviews_item_id_items FOREIGN KEY (item_id) REFERENCES items (id)
)`,
	},
}

var SQLite = Dialect{
	Name:   "sqlite",
	Driver: "sqlite",
	Schema: []string{
		`
CREATE TABLE IF NOT EXISTS customers (
  id   INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT
)`,
		`
CREATE TABLE IF NOT EXISTS items (
  id    INTEGER PRIMARY KEY AUTOINCREMENT,
  name  TEXT,
  price REAL
)`,
		`
CREATE TABLE IF NOT EXISTS reviews (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  comment     TEXT,
  customer_id INTEGER,
  item_id     INTEGER,
  CONSTRAINT fk_reviews_customer_id_customers FOREIGN KEY (customer_id) REFERENCES customers (id),
  CONSTRAINT fk_reviews_item_id_items FOREIGN KEY (item_id) REFERENCES items (id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_customer ON reviews (customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_item ON reviews (item_id)`,
	},
}

// -----------------------------------------------------------------------------
// WRITES
// -----------------------------------------------------------------------------

const insertCustomerSQL = `INSERT INTO customers (name) VALUES (?)`
const updateCustomerSQL = `UPDATE customers SET name = ? WHERE id = ?`
const deleteCustomerSQL = `DELETE FROM customers WHERE id = ?`

const insertItemSQL = `INSERT INTO items (name, price) VALUES (?, ?)`
const updateItemSQL = `UPDATE items SET name = ?, price = ? WHERE id = ?`
const deleteItemSQL = `DELETE FROM items WHERE id = ?`

const insertReviewSQL = `INSERT INTO reviews (comment, customer_id, item_id) VALUES (?, ?, ?)`
const updateReviewSQL = `UPDATE reviews SET comment = ?, customer_id = ?, item_id = ? WHERE id = ?`
const deleteReviewSQL = `DELETE FROM reviews WHERE id = ?`

// Parents are deleted after their reviews are orphaned, never cascaded.
const orphanByCustomerSQL = `UPDATE reviews SET customer_id = NULL WHERE customer_id = ?`
const orphanByItemSQL = `UPDATE reviews SET item_id = NULL WHERE item_id = ?`

// -----------------------------------------------------------------------------
// READS
// -----------------------------------------------------------------------------

const selectCustomersSQL = `SELECT id, name FROM customers`
const selectItemsSQL = `SELECT id, name, price FROM items`
const selectReviewsSQL = `SELECT id, comment, customer_id, item_id FROM reviews`
