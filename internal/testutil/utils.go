package testutil

import (
	"io"
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger that writes to stdout under -v and is silent otherwise.
func TestLogger(t *testing.T) *log.Logger {
	t.Helper()

	var out io.Writer = io.Discard
	if testing.Verbose() {
		out = os.Stdout
	}
	return log.New(out, "[test] ", log.LstdFlags|log.Lmsgprefix)
}

func StrPtr(s string) *string {
	return &s
}
