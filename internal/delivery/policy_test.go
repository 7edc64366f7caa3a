package delivery_test

import (
	"testing"
	"time"

	"quire/internal/delivery"
)

func TestRedeliveryTargets(t *testing.T) {
	destinations := []string{"a@kindle.com", "b@kindle.com", "c@kindle.com"}
	confirmed := map[string]time.Time{"b@kindle.com": time.Now()}

	pending := delivery.RedeliverPending.Targets(destinations, confirmed)
	if len(pending) != 2 || pending[0] != "a@kindle.com" || pending[1] != "c@kindle.com" {
		t.Fatalf("pending policy should skip confirmed destinations, got %v", pending)
	}
	all := delivery.RedeliverAll.Targets(destinations, confirmed)
	if len(all) != 3 {
		t.Fatalf("all policy should resend everywhere, got %v", all)
	}
	if delivery.Complete(destinations, confirmed) {
		t.Fatal("expected incomplete receipts")
	}
	for _, dest := range destinations {
		confirmed[dest] = time.Now()
	}
	if !delivery.Complete(destinations, confirmed) {
		t.Fatal("expected complete receipts")
	}
	if got := delivery.RedeliverPending.Targets(destinations, confirmed); len(got) != 0 {
		t.Fatalf("expected nothing pending, got %v", got)
	}
}

func TestParsePolicy(t *testing.T) {
	if delivery.DefaultRedeliveryPolicy != delivery.RedeliverPending {
		t.Fatalf("unexpected default policy %q", delivery.DefaultRedeliveryPolicy)
	}
	tests := []struct {
		in   string
		want delivery.RedeliveryPolicy
	}{
		{"pending", delivery.RedeliverPending},
		{" ALL ", delivery.RedeliverAll},
		{"", delivery.DefaultRedeliveryPolicy},
		{"sometimes", delivery.DefaultRedeliveryPolicy},
	}
	for _, tc := range tests {
		if got := delivery.ParsePolicy(tc.in); got != tc.want {
			t.Fatalf("ParsePolicy(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
