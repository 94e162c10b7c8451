package history

import (
	"math/rand/v2"
	"runtime/metrics"
	"time"

	"msgmon/pkg/errors"
	"msgmon/pkg/jsoncodec"
)

var (
	ErrNotReceived  = errors.ErrLifecycle.WithMessage("message not yet received")
	ErrNotFinished  = errors.ErrLifecycle.WithMessage("message not yet finished")
	ErrMissingStamp = errors.ErrLifecycle.WithMessage("required monitor stamp not available")
)

const maxRunID = 1_000_000_000

// MonitorStamp tracks one message attempt from dispatch to completion.
// Transitions return a new stamp; holders of an older stamp keep a valid value.
type MonitorStamp struct {
	runID        int64
	dispatchedAt time.Time
	transport    string
	receivedAt   time.Time
	finishedAt   time.Time
	memoryUsage  uint64
}

func NewMonitorStamp() MonitorStamp {
	return NewMonitorStampAt(time.Now())
}

// NewMonitorStampAt creates a dispatched stamp with a fresh run id.
func NewMonitorStampAt(dispatchedAt time.Time) MonitorStamp {
	return MonitorStamp{
		runID:        rand.Int64N(maxRunID) + 1,
		dispatchedAt: dispatchedAt,
	}
}

func (MonitorStamp) StampName() string { return "monitor" }

func (s MonitorStamp) RunID() int64 {
	return s.runID
}

func (s MonitorStamp) DispatchedAt() time.Time {
	return s.dispatchedAt
}

func (s MonitorStamp) IsReceived() bool {
	return !s.receivedAt.IsZero()
}

func (s MonitorStamp) IsFinished() bool {
	return !s.finishedAt.IsZero()
}

func (s MonitorStamp) MarkReceived(transport string) MonitorStamp {
	return s.MarkReceivedAt(transport, time.Now())
}

// MarkReceivedAt resets any previous completion so a redelivered stamp
// starts a clean attempt.
func (s MonitorStamp) MarkReceivedAt(transport string, at time.Time) MonitorStamp {
	s.transport = transport
	s.receivedAt = at
	s.finishedAt = time.Time{}
	s.memoryUsage = 0
	return s
}

func (s MonitorStamp) MarkFinished() (MonitorStamp, error) {
	return s.MarkFinishedAt(time.Now(), SampleMemory())
}

func (s MonitorStamp) MarkFinishedAt(at time.Time, memoryUsage uint64) (MonitorStamp, error) {
	if !s.IsReceived() {
		return s, ErrNotReceived
	}
	s.finishedAt = at
	s.memoryUsage = memoryUsage
	return s, nil
}

func (s MonitorStamp) Transport() (string, error) {
	if !s.IsReceived() {
		return "", ErrNotReceived
	}
	return s.transport, nil
}

func (s MonitorStamp) ReceivedAt() (time.Time, error) {
	if !s.IsReceived() {
		return time.Time{}, ErrNotReceived
	}
	return s.receivedAt, nil
}

func (s MonitorStamp) FinishedAt() (time.Time, error) {
	if !s.IsFinished() {
		return time.Time{}, ErrNotFinished
	}
	return s.finishedAt, nil
}

func (s MonitorStamp) MemoryUsage() (uint64, error) {
	if !s.IsFinished() {
		return 0, ErrNotFinished
	}
	return s.memoryUsage, nil
}

func (s MonitorStamp) MustTransport() string {
	return must(s.Transport())
}

func (s MonitorStamp) MustReceivedAt() time.Time {
	return must(s.ReceivedAt())
}

func (s MonitorStamp) MustFinishedAt() time.Time {
	return must(s.FinishedAt())
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

type monitorStampJSON struct {
	RunID        int64      `json:"run_id"`
	DispatchedAt time.Time  `json:"dispatched_at"`
	Transport    string     `json:"transport,omitempty"`
	ReceivedAt   *time.Time `json:"received_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	MemoryUsage  uint64     `json:"memory_usage,omitempty"`
}

func (s MonitorStamp) toJSON() monitorStampJSON {
	out := monitorStampJSON{
		RunID:        s.runID,
		DispatchedAt: s.dispatchedAt,
		Transport:    s.transport,
		MemoryUsage:  s.memoryUsage,
	}
	if s.IsReceived() {
		at := s.receivedAt
		out.ReceivedAt = &at
	}
	if s.IsFinished() {
		at := s.finishedAt
		out.FinishedAt = &at
	}
	return out
}

func (s *MonitorStamp) fromJSON(in monitorStampJSON) error {
	if in.RunID <= 0 || in.DispatchedAt.IsZero() {
		return errors.ErrValidation.WithMessage("monitor stamp requires run_id and dispatched_at")
	}
	if in.FinishedAt != nil && in.ReceivedAt == nil {
		return ErrNotReceived
	}
	*s = MonitorStamp{
		runID:        in.RunID,
		dispatchedAt: in.DispatchedAt,
		transport:    in.Transport,
		memoryUsage:  in.MemoryUsage,
	}
	if in.ReceivedAt != nil {
		s.receivedAt = *in.ReceivedAt
	}
	if in.FinishedAt != nil {
		s.finishedAt = *in.FinishedAt
	}
	return nil
}

func (s MonitorStamp) MarshalJSON() ([]byte, error) {
	return jsoncodec.Marshal(s.toJSON())
}

func (s *MonitorStamp) UnmarshalJSON(data []byte) error {
	var in monitorStampJSON
	if err := jsoncodec.Unmarshal(data, &in); err != nil {
		return err
	}
	return s.fromJSON(in)
}

var memorySample = []metrics.Sample{{Name: "/memory/classes/total:bytes"}}

// SampleMemory reports the bytes currently mapped by the Go runtime.
func SampleMemory() uint64 {
	samples := make([]metrics.Sample, len(memorySample))
	copy(samples, memorySample)
	metrics.Read(samples)
	if samples[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return samples[0].Value.Uint64()
}
