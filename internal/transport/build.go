package transport

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"msgmon/internal/config"
	"msgmon/internal/constants"
	"msgmon/internal/messenger"
)

// Dependencies are the clients transports are built on. Fields may be nil
// when no configured transport needs them.
type Dependencies struct {
	Redis        *redis.Client
	KafkaBrokers []string
	KafkaGroup   string
	Registry     *messenger.Registry
}

// FromConfig builds the configured transports plus one scheduler transport
// per schedule.
func FromConfig(transports []config.TransportConfig, schedules []config.ScheduleConfig, deps Dependencies) ([]Named, error) {
	out := make([]Named, 0, len(transports)+len(schedules))
	for _, cfg := range transports {
		t, err := build(cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("transport %s: %w", cfg.Name, err)
		}
		out = append(out, Named{Name: cfg.Name, Transport: t})
	}
	for _, s := range schedules {
		out = append(out, Named{Name: SchedulerTransportName(s.Name), Transport: &SchedulerTransport{Schedule: s.Name}})
	}
	return out, nil
}

func build(cfg config.TransportConfig, deps Dependencies) (Transport, error) {
	topic := cfg.Topic
	if topic == "" {
		topic = cfg.Name
	}

	switch cfg.Type {
	case constants.TransportSync:
		return &SyncTransport{}, nil
	case constants.TransportMemory:
		return NewMemoryTransport(deps.Registry), nil
	case constants.TransportScheduler:
		return &SchedulerTransport{Schedule: cfg.Name}, nil
	case constants.TransportRedisList, constants.TransportRedisStream:
		if deps.Redis == nil {
			return nil, fmt.Errorf("%s transports require a redis connection", cfg.Type)
		}
		if cfg.Type == constants.TransportRedisStream {
			return NewRedisStreamTransport(deps.Redis, topic, deps.Registry), nil
		}
		return NewRedisListTransport(deps.Redis, topic, deps.Registry), nil
	case constants.TransportKafka:
		if len(deps.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka transports require brokers")
		}
		group := cfg.Group
		if group == "" {
			group = deps.KafkaGroup
		}
		return NewKafkaTransport(deps.KafkaBrokers, topic, group), nil
	default:
		return nil, fmt.Errorf("unknown transport type: %q", cfg.Type)
	}
}
