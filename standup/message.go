package standup

import (
	"fmt"
	"sort"
	"strings"
)

// PromptLine follows the ping in the channel.
const PromptLine = "What are you working on today, and what do you need help with?"

// QuitReason is sent with the scheduled disconnect.
const QuitReason = "Standup ended!"

// memberSigils are channel status prefixes that may precede a name in a
// name reply (owner, admin, op, halfop, voice).
const memberSigils = "~&@%+"

// ParseNames splits a raw name-reply list on single spaces and strips
// status sigils. Empty tokens are dropped.
func ParseNames(raw string) []string {
	var names []string
	for _, tok := range strings.Split(raw, " ") {
		name := strings.TrimLeft(tok, memberSigils)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}

// Present returns the members that are also in users, sorted and without
// duplicates. Matching is exact and case-sensitive.
func Present(members, users []string) []string {
	wanted := toSet(users)
	seen := make(map[string]struct{}, len(members))
	var out []string
	for _, m := range members {
		if _, ok := wanted[m]; !ok {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Absent returns users not in present, in configured order, each once.
func Absent(users, present []string) []string {
	here := toSet(present)
	seen := make(map[string]struct{}, len(users))
	var out []string
	for _, u := range users {
		if _, ok := here[u]; ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// PingLine builds the channel ping: "a, b: topic", or just the topic when
// nobody is present.
func PingLine(present []string, topic string) string {
	if len(present) == 0 {
		return topic
	}
	names := append([]string(nil), present...)
	sort.Strings(names)
	return strings.Join(names, ", ") + ": " + topic
}

// InviteLine is the private message sent to users missing from the channel.
func InviteLine(topic, channel string) string {
	return fmt.Sprintf("%s in %s", topic, channel)
}

// ThanksLine thanks participants in sorted order.
func ThanksLine(participants []string) string {
	names := append([]string(nil), participants...)
	sort.Strings(names)
	return "Thank you, " + strings.Join(names, ", ") + "!"
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
