package app

import (
	"os"
	"sync"
)

const testModeEnv = "ODYSSEY_TEST_MODE"

var (
	testModeMu  sync.RWMutex
	testModeSet bool
	testMode    bool
)

// InTestMode reports whether binaries should skip runtime side effects such as
// opening Postgres or Redis connections.
func InTestMode() bool {
	testModeMu.RLock()
	if testModeSet {
		defer testModeMu.RUnlock()
		return testMode
	}
	testModeMu.RUnlock()
	RefreshTestMode()
	return InTestMode()
}

// RefreshTestMode re-reads ODYSSEY_TEST_MODE after environment changes.
func RefreshTestMode() {
	testModeMu.Lock()
	defer testModeMu.Unlock()
	testMode = os.Getenv(testModeEnv) == "1"
	testModeSet = true
}
