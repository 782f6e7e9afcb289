package fixtures

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"shop_reviews/internal/app"
)

// Load reads a fixtures document from a local path or an http(s) URL.
// JSON documents decode too, since JSON is a subset of YAML.
func Load(ctx context.Context, c *Client, src string) (app.Fixtures, error) {
	var (
		b   []byte
		err error
	)
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		b, err = c.Fetch(ctx, src)
	} else {
		b, err = os.ReadFile(src)
	}
	if err != nil {
		return app.Fixtures{}, fmt.Errorf("read fixtures %s: %w", src, err)
	}
	return Decode(b)
}

func Decode(b []byte) (app.Fixtures, error) {
	var f app.Fixtures
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return app.Fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}
	return f, nil
}
