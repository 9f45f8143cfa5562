package rag

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in the rag package.
// The hybrid path fans out to SQL and vector retrieval concurrently, so a
// leaked goroutine here means a retrieval arm outlived its request.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
