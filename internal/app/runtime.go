package app

import (
	"os"
	"sync"
)

// TestModeEnv is set to "1" by test binaries so commands exit before opening
// connections.
const TestModeEnv = "LUMEN_TEST_MODE"

// InTestMode reports whether the process runs under tests. The environment is read once.
var InTestMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})
