package renderer

import "testing"

func TestValidTransitionsMatchStateMachine(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateUninitialized, StateInitializing, true},
		{StateUninitialized, StateInitialized, false},
		{StateInitialized, StateChangingMode, true},
		{StateInitialized, StateResuming, false},
		{StateSuspended, StateResuming, true},
		{StateSuspended, StateInitialized, false},
		{StateResuming, StateInitialized, true},
		{StateResuming, StateRevertingMode, true},
	}
	for _, tc := range cases {
		got := tc.from.canTransitionTo(tc.to)
		if got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
