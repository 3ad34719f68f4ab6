package standup

import "testing"

func TestStatusSnapshotIsACopy(t *testing.T) {
	st := NewStatus()
	if got := st.Snapshot().State; got != "connecting" {
		t.Fatalf("initial state = %q", got)
	}
	st.Publish(Snapshot{State: StateStandupActive.String(), Participants: []string{"alice"}})

	snap := st.Snapshot()
	snap.Participants[0] = "mallory"
	if got := st.Snapshot().Participants[0]; got != "alice" {
		t.Errorf("stored participants mutated through snapshot: %q", got)
	}
}

func TestStateString(t *testing.T) {
	want := map[State]string{
		StateConnecting:      "connecting",
		StateAwaitingWelcome: "awaiting_welcome",
		StateJoining:         "joining",
		StateAwaitingNames:   "awaiting_names",
		StateStandupActive:   "standup_active",
		StateEnding:          "ending",
		StateDisconnected:    "disconnected",
		State(99):            "unknown",
	}
	for st, s := range want {
		if st.String() != s {
			t.Errorf("State(%d).String() = %q, want %q", int(st), st.String(), s)
		}
	}
}
