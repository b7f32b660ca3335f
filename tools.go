//go:build tools

package tools

// Pins code-generation tooling so `go mod tidy` keeps it in go.mod.
import (
	_ "github.com/swaggo/swag"
)
