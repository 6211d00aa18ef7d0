package session

import (
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestCheckTransition(t *testing.T) {
	testCases := []struct {
		from, to State
		ok       bool
	}{
		{StateIdle, StateAwaitingMedia, true},
		{StateAwaitingMedia, StateReady, true},
		{StateAwaitingMedia, StateFailed, true},
		{StateReady, StateNegotiating, true},
		{StateNegotiating, StateConnected, true},
		{StateConnected, StateInterrupted, true},
		{StateInterrupted, StateConnected, true},
		{StateConnected, StateReady, true},
		{StateFailed, StateNegotiating, true},
		{StateReady, StateReady, true},
		{StateIdle, StateConnected, false},
		{StateAwaitingMedia, StateNegotiating, false},
		{StateReady, StateConnected, false},
		{StateFailed, StateConnected, false},
		{StateClosed, StateReady, false},
		{StateClosed, StateClosed, false},
	}

	for _, tc := range testCases {
		t.Run(tc.from.String()+"->"+tc.to.String(), func(t *testing.T) {
			err := checkTransition(tc.from, tc.to)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("expected ErrIllegalTransition, got %v", err)
			}
		})
	}
}

// TestEveryStateCanClose verifies that teardown is reachable from anywhere.
func TestEveryStateCanClose(t *testing.T) {
	for s := StateIdle; s < StateClosed; s++ {
		if err := checkTransition(s, StateClosed); err != nil {
			t.Errorf("%s cannot close: %v", s, err)
		}
	}
}

func TestStateString(t *testing.T) {
	if got := StateInterrupted.String(); got != "interrupted" {
		t.Errorf("String() = %q", got)
	}
	if got := State(42).String(); got != "state(42)" {
		t.Errorf("String() = %q", got)
	}
}

func TestCandidateQueue(t *testing.T) {
	var q candidateQueue
	for _, c := range []string{"a", "b", "c"} {
		q.Push(webrtc.ICECandidateInit{Candidate: c})
	}
	if q.Len() != 3 {
		t.Fatalf("Len = %d", q.Len())
	}

	got := q.Drain()
	if len(got) != 3 || got[0].Candidate != "a" || got[2].Candidate != "c" {
		t.Fatalf("Drain = %v", got)
	}
	if again := q.Drain(); len(again) != 0 {
		t.Fatalf("second Drain returned %v", again)
	}

	q.Push(webrtc.ICECandidateInit{Candidate: "d"})
	q.Clear()
	if q.Len() != 0 {
		t.Errorf("Clear left %d items", q.Len())
	}
}
