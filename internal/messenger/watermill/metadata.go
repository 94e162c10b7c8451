// Package watermill connects the history and worker listeners to watermill
// publishers and routers. Stamps travel between processes as message
// metadata.
package watermill

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"msgmon/internal/history"
	"msgmon/internal/messenger"
	"msgmon/pkg/jsoncodec"
)

const (
	MetadataMessageType       = "message_type"
	MetadataMonitor           = "msgmon_monitor"
	MetadataTags              = "msgmon_tags"
	MetadataDescription       = "msgmon_description"
	MetadataDisableMonitoring = "msgmon_disable_monitoring"
	MetadataSchedule          = "msgmon_schedule"
	MetadataScheduleTask      = "msgmon_schedule_task"
	MetadataScheduledAt       = "msgmon_scheduled_at"
	MetadataRedelivery        = "msgmon_redelivery"
)

const (
	disableAlways            = "always"
	disableOnlyWhenNoHandler = "only_when_no_handler"
)

// Decode rebuilds an envelope from msg. The payload becomes the envelope
// message and the watermill UUID its transport message id.
func Decode(msg *message.Message) (*messenger.Envelope, error) {
	md := msg.Metadata
	env := messenger.NewEnvelope([]byte(msg.Payload), messenger.TransportMessageIDStamp{ID: msg.UUID})
	if t := md.Get(MetadataMessageType); t != "" {
		env = env.WithMessageType(t)
	}

	if raw := md.Get(MetadataMonitor); raw != "" {
		var stamp history.MonitorStamp
		if err := jsoncodec.UnmarshalString(raw, &stamp); err != nil {
			return nil, fmt.Errorf("failed to decode monitor stamp: %w", err)
		}
		env = env.With(stamp)
	}

	if tags := history.ParseTags(md.Get(MetadataTags)); tags.Len() > 0 {
		env = env.With(messenger.NewTagStamp(tags.All()...))
	}

	if d := md.Get(MetadataDescription); d != "" {
		env = env.With(messenger.DescriptionStamp{Value: d})
	}

	switch md.Get(MetadataDisableMonitoring) {
	case disableAlways:
		env = env.With(messenger.DisableMonitoringStamp{})
	case disableOnlyWhenNoHandler:
		env = env.With(messenger.DisableMonitoringStamp{OnlyWhenNoHandler: true})
	}

	if schedule := md.Get(MetadataSchedule); schedule != "" {
		stamp := messenger.ScheduledStamp{Schedule: schedule, TaskID: md.Get(MetadataScheduleTask)}
		if at := md.Get(MetadataScheduledAt); at != "" {
			parsed, err := time.Parse(time.RFC3339Nano, at)
			if err != nil {
				return nil, fmt.Errorf("failed to decode schedule trigger time: %w", err)
			}
			stamp.TriggeredAt = parsed
		}
		env = env.With(stamp)
	}

	if raw := md.Get(MetadataRedelivery); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode redelivery count: %w", err)
		}
		env = env.With(messenger.RedeliveryStamp{RetryCount: count})
	}

	return env, nil
}

// Encode writes the monitoring stamps of env into md. Keys for stamps the
// envelope does not carry are left untouched, as is the message type.
func Encode(env *messenger.Envelope, md message.Metadata) error {
	if stamp, ok := messenger.Last[history.MonitorStamp](env); ok {
		raw, err := jsoncodec.MarshalString(stamp)
		if err != nil {
			return fmt.Errorf("failed to encode monitor stamp: %w", err)
		}
		md.Set(MetadataMonitor, raw)
	}

	var tags []string
	for _, stamp := range messenger.All[messenger.TagStamp](env) {
		tags = append(tags, stamp.Values...)
	}
	if t := history.NewTags(tags...); t.Len() > 0 {
		md.Set(MetadataTags, t.Implode(","))
	}

	if stamp, ok := messenger.Last[messenger.DescriptionStamp](env); ok {
		md.Set(MetadataDescription, stamp.Value)
	}

	if stamp, ok := messenger.Last[messenger.DisableMonitoringStamp](env); ok {
		value := disableAlways
		if stamp.OnlyWhenNoHandler {
			value = disableOnlyWhenNoHandler
		}
		md.Set(MetadataDisableMonitoring, value)
	}

	if stamp, ok := messenger.Last[messenger.ScheduledStamp](env); ok {
		md.Set(MetadataSchedule, stamp.Schedule)
		md.Set(MetadataScheduleTask, stamp.TaskID)
		if !stamp.TriggeredAt.IsZero() {
			md.Set(MetadataScheduledAt, stamp.TriggeredAt.UTC().Format(time.RFC3339Nano))
		}
	}

	if stamp, ok := messenger.Last[messenger.RedeliveryStamp](env); ok {
		md.Set(MetadataRedelivery, strconv.Itoa(stamp.RetryCount))
	}

	return nil
}

// Redeliveries returns the redelivery count carried by md.
func Redeliveries(md message.Metadata) int {
	count, _ := strconv.Atoi(md.Get(MetadataRedelivery))
	return count
}
