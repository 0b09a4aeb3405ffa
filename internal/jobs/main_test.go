package jobs

import (
	"testing"

	"go.uber.org/goleak"
)

// the loops must not outlive Stop
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
