package standup

import (
	"reflect"
	"testing"
)

func TestParseNames(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"@alice +dave carol", []string{"alice", "dave", "carol"}},
		{"@+alice", []string{"alice"}},
		{"~owner &admin %half", []string{"owner", "admin", "half"}},
		{"alice  bob ", []string{"alice", "bob"}},
		{"", nil},
		{"@", nil},
	}
	for _, tt := range tests {
		if got := ParseNames(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseNames(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestPresent(t *testing.T) {
	users := []string{"alice", "bob", "carol"}
	tests := []struct {
		name    string
		members []string
		want    []string
	}{
		{"mixed", []string{"carol", "dave", "alice"}, []string{"alice", "carol"}},
		{"none", []string{"dave"}, nil},
		{"case sensitive", []string{"Alice", "BOB"}, nil},
		{"duplicates", []string{"bob", "bob"}, []string{"bob"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Present(tt.members, users); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Present = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAbsentKeepsConfiguredOrderOnce(t *testing.T) {
	got := Absent([]string{"carol", "bob", "alice", "bob"}, []string{"alice"})
	want := []string{"carol", "bob"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Absent = %v, want %v", got, want)
	}
}

func TestPingLine(t *testing.T) {
	if got := PingLine([]string{"carol", "alice"}, "Standup meeting"); got != "alice, carol: Standup meeting" {
		t.Errorf("PingLine = %q", got)
	}
	if got := PingLine(nil, "Standup meeting"); got != "Standup meeting" {
		t.Errorf("PingLine(empty) = %q", got)
	}
}

func TestInviteAndThanks(t *testing.T) {
	if got := InviteLine("Standup meeting", "#team"); got != "Standup meeting in #team" {
		t.Errorf("InviteLine = %q", got)
	}
	if got := ThanksLine([]string{"carol", "alice"}); got != "Thank you, alice, carol!" {
		t.Errorf("ThanksLine = %q", got)
	}
}

func TestEventNick(t *testing.T) {
	tests := []struct{ source, want string }{
		{"alice!~alice@host", "alice"},
		{"irc.example.org", "irc.example.org"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := (Event{Source: tt.source}).Nick(); got != tt.want {
			t.Errorf("Nick(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}
