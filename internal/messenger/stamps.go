package messenger

import "time"

// TagStamp attaches call-site tags to a message.
type TagStamp struct {
	Values []string
}

func NewTagStamp(values ...string) TagStamp {
	return TagStamp{Values: values}
}

func (TagStamp) StampName() string { return "tag" }

// DescriptionStamp sets a human label for the message.
type DescriptionStamp struct {
	Value string
}

func (DescriptionStamp) StampName() string { return "description" }

// DisableMonitoringStamp opts a message out of history recording. With
// OnlyWhenNoHandler set, the opt-out applies only when no handler ran.
type DisableMonitoringStamp struct {
	OnlyWhenNoHandler bool
}

func (DisableMonitoringStamp) StampName() string { return "disable_monitoring" }

// RedeliveryStamp carries how many times the transport has redelivered the message.
type RedeliveryStamp struct {
	RetryCount int
}

func (RedeliveryStamp) StampName() string { return "redelivery" }

// HandledStamp records one successful handler invocation and its return value.
type HandledStamp struct {
	HandlerName string
	Result      any
}

func (HandledStamp) StampName() string { return "handled" }

// ScheduledStamp marks a message injected by a scheduler transport, which
// never fires a dispatch event.
type ScheduledStamp struct {
	Schedule    string
	TaskID      string
	TriggeredAt time.Time
}

func (ScheduledStamp) StampName() string { return "scheduled" }

// TransportMessageIDStamp carries the transport-native message id.
type TransportMessageIDStamp struct {
	ID string
}

func (TransportMessageIDStamp) StampName() string { return "transport_message_id" }
