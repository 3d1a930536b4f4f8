package main

import (
	"testing"

	_ "github.com/odyssey-erp/odyssey-books/testing"
)

// main must return without dialing Postgres or Redis in test mode.
func TestMainSkipsStartupInTestMode(t *testing.T) {
	main()
}
