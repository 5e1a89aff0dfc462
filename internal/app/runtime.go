package app

import (
	"os"
	"strconv"
)

// TestModeEnv, when truthy, makes the binaries return before dialing Postgres or Redis.
const TestModeEnv = "ZAPFLOW_TEST_MODE"

// InTestMode reports whether ZAPFLOW_TEST_MODE is enabled.
func InTestMode() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	return on
}
