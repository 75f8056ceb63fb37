//go:build tools

package tools

// Tool dependencies pinned in go.mod. The goose CLI manages the migrations
// embedded in internal/adapters/postgres.
import (
	_ "github.com/pressly/goose/v3/cmd/goose"
)
