package errorsx

import (
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonTTSGenerate)
	if Reason(err) != ReasonTTSGenerate {
		t.Fatalf("expected reason %s, got %s", ReasonTTSGenerate, Reason(err))
	}
	if !HasReason(err, ReasonTTSGenerate) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonTTSRateLimit)
	second := Wrap(first, ReasonTTSGenerate)
	if Reason(second) != ReasonTTSRateLimit {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestReasonThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("segment 2: %w", Wrap(assertErr{}, ReasonCacheRead))
	if Reason(err) != ReasonCacheRead {
		t.Fatalf("expected reason through fmt wrap, got %s", Reason(err))
	}
	if Reason(nil) != ReasonUnknown || Wrap(nil, ReasonCacheRead) != nil {
		t.Fatalf("nil handling broken")
	}
}

func TestRetryable(t *testing.T) {
	for _, r := range []ReasonCode{ReasonTTSTimeout, ReasonTTSRateLimit, ReasonTTSCircuitOpen, ReasonTTSConnect} {
		if !Retryable(fmt.Errorf("segment 0: %w", Wrap(assertErr{}, r))) {
			t.Fatalf("expected %s to be retryable", r)
		}
	}
	for _, r := range []ReasonCode{ReasonTTSGenerate, ReasonSegmentInput, ReasonCostProfile, ReasonUnknown} {
		if r.Retryable() {
			t.Fatalf("expected %s not to be retryable", r)
		}
	}
	if Retryable(nil) {
		t.Fatalf("nil is not retryable")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
