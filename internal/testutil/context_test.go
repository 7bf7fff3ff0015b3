package testutil

import (
	"testing"
	"time"
)

// plainTB hides the Deadline method of *testing.T.
type plainTB struct {
	testing.TB
}

func TestContextHonorsTimeout(t *testing.T) {
	start := time.Now()
	ctx := Context(t, 2*time.Second)
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatalf("expected a deadline")
	}
	if deadline.After(start.Add(2*time.Second + 100*time.Millisecond)) {
		t.Fatalf("deadline %s exceeds timeout", deadline.Sub(start))
	}
}

func TestContextAcceptsTBWithoutDeadline(t *testing.T) {
	ctx := Context(plainTB{TB: t}, 0)
	if _, ok := ctx.Deadline(); !ok {
		t.Fatalf("expected default deadline")
	}
	if ctx.Err() != nil {
		t.Fatalf("unexpected error %v", ctx.Err())
	}
}
