package history

import (
	"fmt"
	"time"

	"msgmon/internal/constants"
	"msgmon/internal/messenger"
)

// Failure names the error type and message of a failed attempt.
type Failure struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %s", f.Type, f.Message)
}

func (f Failure) ShortType() string {
	return messenger.ShortName(f.Type)
}

// ProcessedMessage is the immutable record of one completed message attempt.
type ProcessedMessage struct {
	id             string
	runID          int64
	attempt        int
	messageType    string
	description    string
	dispatchedAt   time.Time
	receivedAt     time.Time
	finishedAt     time.Time
	transport      string
	tags           Tags
	results        Results
	failureType    string
	failureMessage string
	memoryUsage    uint64
}

// NewProcessedMessage builds the record for env, which must carry a received
// and finished MonitorStamp. failure is nil for successful attempts.
func NewProcessedMessage(env *messenger.Envelope, results Results, failure error, registry *messenger.Registry) (*ProcessedMessage, error) {
	stamp, ok := messenger.Last[MonitorStamp](env)
	if !ok {
		return nil, ErrMissingStamp
	}

	transport, err := stamp.Transport()
	if err != nil {
		return nil, err
	}
	receivedAt, err := stamp.ReceivedAt()
	if err != nil {
		return nil, err
	}
	finishedAt, err := stamp.FinishedAt()
	if err != nil {
		return nil, err
	}
	memory, err := stamp.MemoryUsage()
	if err != nil {
		return nil, err
	}

	messageType := env.MessageType()
	decl, _ := registry.Lookup(messageType)

	m := &ProcessedMessage{
		runID:        stamp.RunID(),
		attempt:      1,
		messageType:  messageType,
		description:  describe(env, decl),
		dispatchedAt: storageTime(stamp.DispatchedAt()),
		receivedAt:   storageTime(receivedAt),
		finishedAt:   storageTime(finishedAt),
		transport:    transport,
		tags:         TagsFromEnvelope(env, registry),
		results:      results,
		memoryUsage:  memory,
	}

	if redelivery, ok := messenger.Last[messenger.RedeliveryStamp](env); ok {
		m.attempt += redelivery.RetryCount
	}

	if failure != nil {
		m.failureType = messenger.ErrorType(failure)
		m.failureMessage = failure.Error()
	}

	if m.results == nil {
		m.results = Results{}
	}

	return m, nil
}

func describe(env *messenger.Envelope, decl messenger.Declaration) string {
	if stamp, ok := messenger.Last[messenger.DescriptionStamp](env); ok && stamp.Value != "" {
		return stamp.Value
	}
	if decl.Description != "" {
		return decl.Description
	}
	if s, ok := env.Message().(fmt.Stringer); ok {
		return s.String()
	}
	return ""
}

// storageTime drops the monotonic reading and truncates to the storage unit
// so records compare equal after a round trip through any backend.
func storageTime(t time.Time) time.Time {
	return t.Round(0).Truncate(constants.StorageTimeUnit).UTC()
}

func (m *ProcessedMessage) ID() string              { return m.id }
func (m *ProcessedMessage) RunID() int64            { return m.runID }
func (m *ProcessedMessage) Attempt() int            { return m.attempt }
func (m *ProcessedMessage) Type() string            { return m.messageType }
func (m *ProcessedMessage) Description() string     { return m.description }
func (m *ProcessedMessage) DispatchedAt() time.Time { return m.dispatchedAt }
func (m *ProcessedMessage) ReceivedAt() time.Time   { return m.receivedAt }
func (m *ProcessedMessage) FinishedAt() time.Time   { return m.finishedAt }
func (m *ProcessedMessage) Transport() string       { return m.transport }
func (m *ProcessedMessage) Tags() Tags              { return NewTags(m.tags...) }
func (m *ProcessedMessage) Results() Results        { return append(Results{}, m.results...) }
func (m *ProcessedMessage) MemoryUsage() uint64     { return m.memoryUsage }

// WithID returns a copy carrying the storage-assigned id.
func (m *ProcessedMessage) WithID(id string) *ProcessedMessage {
	clone := *m
	clone.id = id
	return &clone
}

// AssignID is called once by storage backends when the message is first
// persisted. Later calls are ignored.
func (m *ProcessedMessage) AssignID(id string) {
	if m.id == "" {
		m.id = id
	}
}

func (m *ProcessedMessage) IsFailure() bool {
	return m.failureType != ""
}

// Failure is nil for successful attempts.
func (m *ProcessedMessage) Failure() *Failure {
	if !m.IsFailure() {
		return nil
	}
	return &Failure{Type: m.failureType, Message: m.failureMessage}
}

func (m *ProcessedMessage) TimeInQueue() time.Duration {
	return max(0, m.receivedAt.Sub(m.dispatchedAt))
}

func (m *ProcessedMessage) TimeToHandle() time.Duration {
	return max(0, m.finishedAt.Sub(m.receivedAt))
}

// TimeToProcess is always TimeInQueue plus TimeToHandle, even under clock skew.
func (m *ProcessedMessage) TimeToProcess() time.Duration {
	return m.TimeInQueue() + m.TimeToHandle()
}

// Record is the flat persisted shape of a ProcessedMessage.
type Record struct {
	ID             string    `json:"id,omitempty"`
	RunID          int64     `json:"run_id"`
	Attempt        int       `json:"attempt"`
	Type           string    `json:"type"`
	Description    string    `json:"description,omitempty"`
	DispatchedAt   time.Time `json:"dispatched_at"`
	ReceivedAt     time.Time `json:"received_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Transport      string    `json:"transport"`
	Tags           []string  `json:"tags"`
	Results        Results   `json:"results"`
	FailureType    string    `json:"failure_type,omitempty"`
	FailureMessage string    `json:"failure_message,omitempty"`
	MemoryUsage    uint64    `json:"memory_usage"`
}

func (m *ProcessedMessage) Record() Record {
	return Record{
		ID:             m.id,
		RunID:          m.runID,
		Attempt:        m.attempt,
		Type:           m.messageType,
		Description:    m.description,
		DispatchedAt:   m.dispatchedAt,
		ReceivedAt:     m.receivedAt,
		FinishedAt:     m.finishedAt,
		Transport:      m.transport,
		Tags:           m.tags.All(),
		Results:        m.Results(),
		FailureType:    m.failureType,
		FailureMessage: m.failureMessage,
		MemoryUsage:    m.memoryUsage,
	}
}

// FromRecord rebuilds a ProcessedMessage read back from storage.
func FromRecord(r Record) *ProcessedMessage {
	results := r.Results
	if results == nil {
		results = Results{}
	}
	attempt := r.Attempt
	if attempt < 1 {
		attempt = 1
	}
	return &ProcessedMessage{
		id:             r.ID,
		runID:          r.RunID,
		attempt:        attempt,
		messageType:    r.Type,
		description:    r.Description,
		dispatchedAt:   storageTime(r.DispatchedAt),
		receivedAt:     storageTime(r.ReceivedAt),
		finishedAt:     storageTime(r.FinishedAt),
		transport:      r.Transport,
		tags:           NewTags(r.Tags...),
		results:        results,
		failureType:    r.FailureType,
		failureMessage: r.FailureMessage,
		memoryUsage:    r.MemoryUsage,
	}
}
