package history

import (
	"fmt"
	"strings"

	"msgmon/internal/messenger"
)

const (
	TagDelimiter    = ":"
	TagSeparator    = ","
	ScheduleTagRoot = "schedule"
)

// Tags is a trimmed, deduplicated list of labels in first-seen order.
type Tags []string

// NewTags normalises values. Entries containing the separator are split so
// the comma-joined storage form round-trips.
func NewTags(values ...string) Tags {
	seen := make(map[string]struct{}, len(values))
	out := make(Tags, 0, len(values))
	for _, value := range values {
		for _, tag := range strings.Split(value, TagSeparator) {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// ParseTags splits a comma-separated list.
func ParseTags(raw string) Tags {
	return NewTags(raw)
}

// TagsFromEnvelope collects tag stamps followed by the tags declared for the
// message type in registry.
func TagsFromEnvelope(env *messenger.Envelope, registry *messenger.Registry) Tags {
	var values []string
	for _, stamp := range messenger.All[messenger.TagStamp](env) {
		values = append(values, stamp.Values...)
	}
	if decl, ok := registry.Lookup(env.MessageType()); ok {
		values = append(values, decl.Tags...)
	}
	return NewTags(values...)
}

// ForSchedule is the join key between a schedule task and its history.
func ForSchedule(schedule, taskID string) string {
	return fmt.Sprintf("%s%s%s%s%s", ScheduleTagRoot, TagDelimiter, schedule, TagDelimiter, taskID)
}

// Expand returns every prefix of a hierarchical tag, shortest first:
// "schedule:default:id" gives schedule, schedule:default, schedule:default:id.
func Expand(tag string) []string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil
	}
	parts := strings.Split(tag, TagDelimiter)
	out := make([]string, 0, len(parts))
	for i := range parts {
		out = append(out, strings.Join(parts[:i+1], TagDelimiter))
	}
	return out
}

// MatchesTag reports whether stored satisfies a filter on want: equal, or
// want is one of its hierarchical prefixes. "foo" never matches "foobar".
func MatchesTag(stored, want string) bool {
	return stored == want || strings.HasPrefix(stored, want+TagDelimiter)
}

func (t Tags) All() []string {
	return append([]string(nil), t...)
}

func (t Tags) Len() int {
	return len(t)
}

func (t Tags) Contains(tag string) bool {
	for _, v := range t {
		if v == tag {
			return true
		}
	}
	return false
}

// Matches reports whether any stored tag satisfies MatchesTag for want.
func (t Tags) Matches(want string) bool {
	for _, v := range t {
		if MatchesTag(v, want) {
			return true
		}
	}
	return false
}

// Implode joins the tags with sep, returning "" when empty.
func (t Tags) Implode(sep string) string {
	return strings.Join(t, sep)
}

func (t Tags) String() string {
	return t.Implode(TagSeparator)
}

// Paths returns the union of Expand over every tag, deduplicated.
func (t Tags) Paths() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tag := range t {
		for _, p := range Expand(tag) {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
