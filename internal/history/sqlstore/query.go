package sqlstore

import (
	"fmt"
	"strings"

	"msgmon/internal/history"
)

// paddedTags wraps the stored list in delimiters so every tag is matched as
// a whole segment.
const paddedTags = "(',' || tags || ',')"

// conditions translates a specification into AND-combined predicates with
// positional ? placeholders.
type conditions struct {
	clauses []string
	args    []any
}

func buildConditions(d Dialect, spec history.Specification) conditions {
	v := spec.Values()
	var c conditions

	if !v.From.IsZero() {
		c.add("finished_at >= ?", v.From.UnixMilli())
	}
	if !v.To.IsZero() {
		c.add("finished_at <= ?", v.To.UnixMilli())
	}
	if v.MessageType != "" {
		c.add("message_type = ?", v.MessageType)
	}
	if v.Transport != "" {
		c.add("transport = ?", v.Transport)
	}
	if v.RunID != 0 {
		c.add("run_id = ?", v.RunID)
	}

	switch v.Status {
	case history.Success:
		c.add("failure_type IS NULL")
	case history.Failed:
		c.add("failure_type IS NOT NULL")
	}

	match := tagClause(d)
	for _, tag := range v.Tags {
		c.add(match, tagArgs(tag)...)
	}
	for _, tag := range v.NotTags {
		c.add("(tags IS NULL OR tags = '' OR NOT "+match+")", tagArgs(tag)...)
	}

	return c
}

// tagClause matches a stored tag equal to the wanted tag or nested below it.
// Substring positions are case-sensitive on every dialect, unlike LIKE on
// SQLite.
func tagClause(d Dialect) string {
	found := fmt.Sprintf(d.Position, paddedTags, "?") + " > 0"
	return "(" + found + " OR " + found + ")"
}

func tagArgs(tag string) []any {
	return []any{
		"," + tag + ",",
		"," + tag + history.TagDelimiter,
	}
}

func (c *conditions) add(clause string, args ...any) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

func (c conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func orderBy(spec history.Specification) string {
	if spec.Values().Sort == history.SortAsc {
		return " ORDER BY finished_at ASC, id ASC"
	}
	return " ORDER BY finished_at DESC, id DESC"
}
