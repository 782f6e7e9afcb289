//go:build integration

// Package mysqlct starts throwaway MySQL containers for integration tests.
package mysqlct

import (
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

const (
	image = "mysql"
	tag   = "8.0.36"
	root  = "root"
)

// Start runs a MySQL container with an empty database and returns a pinged
// handle. The container is purged when t finishes.
func Start(t testing.TB, database string) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: image,
		Tag:        tag,
		Env:        []string{"MYSQL_ROOT_PASSWORD=" + root, "MYSQL_DATABASE=" + database},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run %s:%s: %v", image, tag, err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("%s:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&charset=utf8mb4,utf8&loc=UTC",
		root, root, resource.GetPort("3306/tcp"), database)

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		if db, e = sql.Open("mysql", dsn); e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
