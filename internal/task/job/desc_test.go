package job

import (
	"context"
	"testing"
)

func TestDescValidate(t *testing.T) {
	t.Parallel()
	fn := func(context.Context) error { return nil }
	cfn := func(context.Context, *CancelToken) error { return nil }

	tests := []struct {
		name string
		desc Desc
		want error
	}{
		{name: "plain", desc: Desc{Func: fn}},
		{name: "cancellable", desc: Desc{CancellableFunc: cfn, Token: NewCancelToken()}},
		{name: "empty", desc: Desc{}, want: ErrNoWork},
		{name: "both", desc: Desc{Func: fn, CancellableFunc: cfn, Token: NewCancelToken()}, want: ErrAmbiguousWork},
		{name: "missing token", desc: Desc{CancellableFunc: cfn}, want: ErrMissingToken},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.desc.Validate(); got != tt.want {
				t.Fatalf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCancelTokenNilSafe(t *testing.T) {
	t.Parallel()
	var tok *CancelToken
	tok.Cancel()
	if tok.IsCancelled() {
		t.Fatal("nil token must never report cancellation")
	}

	tok = NewCancelToken()
	tok.Cancel()
	tok.Cancel()
	if !tok.IsCancelled() {
		t.Fatal("expected cancelled token")
	}
}

func TestPriorityIndexRoundTrip(t *testing.T) {
	t.Parallel()
	for idx := 0; idx < NumPriorities; idx++ {
		if got := PriorityAt(idx).Index(); got != idx {
			t.Fatalf("PriorityAt(%d).Index() = %d", idx, got)
		}
	}
	if PriorityHigh.Index() != 0 || PriorityLow.Index() != 2 {
		t.Fatal("scan order must be high, normal, low")
	}
	if p, ok := ParsePriority(" HIGH "); !ok || p != PriorityHigh {
		t.Fatalf("ParsePriority(HIGH) = %v, %v", p, ok)
	}
	if _, ok := ParsePriority("urgent"); ok {
		t.Fatal("expected unknown priority to be rejected")
	}
}

func TestZeroHandle(t *testing.T) {
	t.Parallel()
	var h Handle
	if h.Valid() || !h.IsComplete() || h.Result() != ResultPending || h.Err() != nil {
		t.Fatal("zero handle must be an inert, complete handle")
	}
	h.Wait()
	<-h.Done()
}
