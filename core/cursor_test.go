package core

import (
	"errors"
	"testing"
)

func TestNonceTrackerClassify(t *testing.T) {
	tracker := NewNonceTracker()
	if err := tracker.Advance("acct1", 2); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name  string
		order *Order
		want  Eligibility
	}{
		{"no deps", mkOrder("a", 1, 1), Eligible},
		{"matching", mkOrder("b", 1, 1, Nonce{Account: "acct1", Seq: 2}), Eligible},
		{"future", mkOrder("c", 1, 1, Nonce{Account: "acct1", Seq: 3}), Deferred},
		{"bypassed", mkOrder("d", 1, 1, Nonce{Account: "acct1", Seq: 1}), Stale},
		{"lazy cursor", mkOrder("e", 1, 1, Nonce{Account: "fresh", Seq: 0}), Eligible},
		{
			"stale wins over deferred",
			mkOrder("f", 1, 1, Nonce{Account: "acct1", Seq: 5}, Nonce{Account: "acct1", Seq: 0}),
			Stale,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got, _ := tracker.Classify(tc.order); got != tc.want {
				t.Fatalf("Classify() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNonceTrackerAdvanceForwardOnly(t *testing.T) {
	tracker := NewNonceTracker()
	if err := tracker.Advance("acct1", 1); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Advance("acct1", 3); err != nil {
		t.Fatal(err)
	}

	err := tracker.Advance("acct1", 3)
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("stationary advance = %v, want invariant violation", err)
	}
	err = tracker.Advance("acct1", 2)
	var regression *CursorRegressionError
	if !errors.As(err, &regression) {
		t.Fatalf("backward advance = %v, want CursorRegressionError", err)
	}
	if regression.Cursor != 3 || regression.Requested != 2 {
		t.Fatalf("regression = %+v", regression)
	}
	if tracker.Cursor("acct1") != 3 {
		t.Fatalf("cursor moved to %d after failed advance", tracker.Cursor("acct1"))
	}
}

func TestNonceTrackerCopy(t *testing.T) {
	tracker := NewNonceTracker()
	tracker.Advance("acct1", 4)

	cp := tracker.Copy()
	cp.Advance("acct1", 9)
	if tracker.Cursor("acct1") != 4 {
		t.Fatal("copy mutated the original")
	}
	if cp.Cursor("acct1") != 9 {
		t.Fatal("copy did not advance")
	}
}

func TestNonceTrackerEachSorted(t *testing.T) {
	tracker := NewNonceTracker()
	tracker.Advance("charlie", 1)
	tracker.Advance("alpha", 2)
	tracker.Advance("bravo", 3)

	var accounts []string
	tracker.Each(func(account string, cursor uint64) {
		accounts = append(accounts, account)
	})
	want := []string{"alpha", "bravo", "charlie"}
	for i := range want {
		if accounts[i] != want[i] {
			t.Fatalf("iteration order %v, want %v", accounts, want)
		}
	}
}
