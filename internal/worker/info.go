package worker

import (
	"slices"
	"time"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
)

// Metadata describes what a worker consumes.
type Metadata struct {
	Transports []string `json:"transports"`
	Queues     []string `json:"queues,omitempty"`
}

// Info is the last reported state of a running worker.
type Info struct {
	ID              string    `json:"id"`
	Host            string    `json:"host,omitempty"`
	PID             int       `json:"pid,omitempty"`
	Metadata        Metadata  `json:"metadata"`
	Status          Status    `json:"status"`
	StartTime       time.Time `json:"start_time"`
	MessagesHandled int       `json:"messages_handled"`
	MemoryUsage     uint64    `json:"memory_usage"`
}

func (i Info) IsIdle() bool {
	return i.Status == StatusIdle
}

func (i Info) IsProcessing() bool {
	return i.Status == StatusProcessing
}

func (i Info) RunningFor(now time.Time) time.Duration {
	return max(0, now.Sub(i.StartTime))
}

func (i Info) ConsumesTransport(name string) bool {
	return slices.Contains(i.Metadata.Transports, name)
}

func (i Info) ConsumesQueue(name string) bool {
	return slices.Contains(i.Metadata.Queues, name)
}
