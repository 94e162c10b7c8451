package history

import (
	"strings"
	"time"

	"msgmon/internal/constants"
	"msgmon/pkg/errors"
)

type Status string

const (
	AnyStatus Status = ""
	Success   Status = "success"
	Failed    Status = "failed"
)

type Sort string

const (
	SortAsc  Sort = "asc"
	SortDesc Sort = "desc"
)

// Relative date presets accepted by Input.From and Input.To.
const (
	OneHourAgo   = "1-hour-ago"
	OneDayAgo    = "24-hours-ago"
	OneWeekAgo   = "7-days-ago"
	OneMonthAgo  = "30-days-ago"
	dateOnlyForm = "2006-01-02"
	dateTimeForm = "2006-01-02 15:04:05"
)

var datePresets = map[string]time.Duration{
	OneHourAgo:  time.Hour,
	OneDayAgo:   24 * time.Hour,
	OneWeekAgo:  7 * 24 * time.Hour,
	OneMonthAgo: 30 * 24 * time.Hour,
}

// Specification is an immutable filter over processed messages. Every
// builder returns a modified copy and leaves the receiver untouched.
type Specification struct {
	from        time.Time
	to          time.Time
	status      Status
	messageType string
	transport   string
	tags        []string
	notTags     []string
	sort        Sort
	runID       int64
}

// Values is a point-in-time copy of a Specification's filters.
type Values struct {
	From        time.Time `json:"from,omitempty"`
	To          time.Time `json:"to,omitempty"`
	Status      Status    `json:"status,omitempty"`
	MessageType string    `json:"message_type,omitempty"`
	Transport   string    `json:"transport,omitempty"`
	Tags        []string  `json:"tags"`
	NotTags     []string  `json:"not_tags"`
	Sort        Sort      `json:"sort"`
	RunID       int64     `json:"run_id,omitempty"`
}

// Input is the loosely typed form used by the CLI and the dashboard.
type Input struct {
	Period      string
	From        string
	To          string
	Status      string
	MessageType string
	Transport   string
	Tags        []string
	NotTags     []string
	Sort        string
	RunID       int64
}

func NewSpecification() Specification {
	return Specification{sort: SortDesc}
}

// ForPeriod resolves p against now.
func ForPeriod(p Period, now time.Time) Specification {
	from, to := p.Timestamps(now)
	return NewSpecification().From(from).To(to)
}

func Create(in Input) (Specification, error) {
	return CreateAt(in, time.Now())
}

// CreateAt builds a Specification from in. The period is resolved first and
// explicit from/to values override its bounds.
func CreateAt(in Input, now time.Time) (Specification, error) {
	spec := NewSpecification()

	if in.Period != "" {
		p, err := ParsePeriodOrFail(in.Period)
		if err != nil {
			return Specification{}, err
		}
		spec = ForPeriod(p, now)
	}

	if in.From != "" {
		from, err := ParseDate(in.From, now)
		if err != nil {
			return Specification{}, err
		}
		spec = spec.From(from)
	}

	if in.To != "" {
		to, err := ParseDate(in.To, now)
		if err != nil {
			return Specification{}, err
		}
		spec = spec.To(to)
	}

	switch Status(in.Status) {
	case AnyStatus:
	case Success:
		spec = spec.Successes()
	case Failed:
		spec = spec.Failures()
	default:
		return Specification{}, errors.ErrValidation.WithMessage("invalid status %q (expected success or failed)", in.Status)
	}

	switch Sort(strings.ToLower(in.Sort)) {
	case "", SortDesc:
	case SortAsc:
		spec = spec.Ascending()
	default:
		return Specification{}, errors.ErrValidation.WithMessage("invalid sort %q (expected asc or desc)", in.Sort)
	}

	return spec.
		For(in.MessageType).
		On(in.Transport).
		With(in.Tags...).
		Without(in.NotTags...).
		ForRun(in.RunID), nil
}

// ParseDate accepts a relative preset, RFC 3339, "2006-01-02 15:04:05" or
// "2006-01-02". Dates without a zone use now's location.
func ParseDate(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if d, ok := datePresets[value]; ok {
		return now.Add(-d), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range []string{dateTimeForm, dateOnlyForm} {
		if t, err := time.ParseInLocation(layout, value, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.ErrValidation.WithMessage("invalid date %q", value)
}

// From sets the inclusive lower bound on the finish time. Bounds are
// truncated to the storage time unit so every backend compares them alike.
func (s Specification) From(t time.Time) Specification {
	s.from = boundTime(t)
	return s
}

// To sets the inclusive upper bound on the finish time.
func (s Specification) To(t time.Time) Specification {
	s.to = boundTime(t)
	return s
}

func boundTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Round(0).Truncate(constants.StorageTimeUnit)
}

// For filters on message type. An empty type clears the filter.
func (s Specification) For(messageType string) Specification {
	s.messageType = messageType
	return s
}

func (s Specification) On(transport string) Specification {
	s.transport = transport
	return s
}

// With requires every given tag, in addition to those already required.
func (s Specification) With(tags ...string) Specification {
	s.tags = NewTags(append(append([]string(nil), s.tags...), tags...)...).All()
	return s
}

// Without excludes every given tag, in addition to those already excluded.
func (s Specification) Without(tags ...string) Specification {
	s.notTags = NewTags(append(append([]string(nil), s.notTags...), tags...)...).All()
	return s
}

func (s Specification) Successes() Specification {
	s.status = Success
	return s
}

func (s Specification) Failures() Specification {
	s.status = Failed
	return s
}

func (s Specification) AnyStatus() Specification {
	s.status = AnyStatus
	return s
}

func (s Specification) Ascending() Specification {
	s.sort = SortAsc
	return s
}

func (s Specification) Descending() Specification {
	s.sort = SortDesc
	return s
}

// ForRun filters on run id. Zero clears the filter.
func (s Specification) ForRun(runID int64) Specification {
	s.runID = runID
	return s
}

func (s Specification) Values() Values {
	sort := s.sort
	if sort == "" {
		sort = SortDesc
	}
	return Values{
		From:        s.from,
		To:          s.to,
		Status:      s.status,
		MessageType: s.messageType,
		Transport:   s.transport,
		Tags:        append([]string{}, s.tags...),
		NotTags:     append([]string{}, s.notTags...),
		Sort:        sort,
		RunID:       s.runID,
	}
}

// Matches evaluates the filters in process. Time bounds are inclusive and
// apply to the finish time.
func (s Specification) Matches(m *ProcessedMessage) bool {
	if !s.from.IsZero() && m.FinishedAt().Before(s.from) {
		return false
	}
	if !s.to.IsZero() && m.FinishedAt().After(s.to) {
		return false
	}
	switch s.status {
	case Success:
		if m.IsFailure() {
			return false
		}
	case Failed:
		if !m.IsFailure() {
			return false
		}
	}
	if s.messageType != "" && m.Type() != s.messageType {
		return false
	}
	if s.transport != "" && m.Transport() != s.transport {
		return false
	}
	if s.runID != 0 && m.RunID() != s.runID {
		return false
	}

	tags := m.Tags()
	for _, tag := range s.tags {
		if !tags.Matches(tag) {
			return false
		}
	}
	for _, tag := range s.notTags {
		if tags.Matches(tag) {
			return false
		}
	}
	return true
}

func (s Specification) Snapshot(storage Storage, opts ...SnapshotOption) *Snapshot {
	return NewSnapshot(storage, s, opts...)
}

func (s Specification) Filters(storage Storage) *Filters {
	return NewFilters(storage, s)
}
