package transport

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"msgmon/internal/constants"
	"msgmon/pkg/metrics"
)

// KafkaTransport counts the messages a consumer group has yet to commit on
// a topic. Kafka offers no cheap way to list them.
type KafkaTransport struct {
	client *kafka.Client
	topic  string
	group  string
}

func NewKafkaTransport(brokers []string, topic, group string) *KafkaTransport {
	return &KafkaTransport{
		client: &kafka.Client{
			Addr:    kafka.TCP(brokers...),
			Timeout: constants.KafkaDialTimeout,
		},
		topic: topic,
		group: group,
	}
}

func (*KafkaTransport) Kind() string { return constants.TransportKafka }

// Count sums the lag of every partition. Partitions without a committed
// offset count from the oldest retained message.
func (t *KafkaTransport) Count(ctx context.Context) (int, error) {
	meta, err := t.client.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{t.topic}})
	if err != nil {
		return 0, fmt.Errorf("failed to load metadata for %s: %w", t.topic, err)
	}
	if len(meta.Topics) == 0 {
		return 0, nil
	}
	if meta.Topics[0].Error != nil {
		return 0, fmt.Errorf("failed to load metadata for %s: %w", t.topic, meta.Topics[0].Error)
	}

	partitions := make([]int, 0, len(meta.Topics[0].Partitions))
	requests := make([]kafka.OffsetRequest, 0, len(meta.Topics[0].Partitions))
	for _, p := range meta.Topics[0].Partitions {
		partitions = append(partitions, p.ID)
		requests = append(requests, kafka.FirstOffsetOf(p.ID), kafka.LastOffsetOf(p.ID))
	}

	offsets, err := t.client.ListOffsets(ctx, &kafka.ListOffsetsRequest{
		Topics: map[string][]kafka.OffsetRequest{t.topic: requests},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list offsets for %s: %w", t.topic, err)
	}

	committed, err := t.client.OffsetFetch(ctx, &kafka.OffsetFetchRequest{
		GroupID: t.group,
		Topics:  map[string][]int{t.topic: partitions},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch offsets for group %s: %w", t.group, err)
	}
	if committed.Error != nil {
		return 0, fmt.Errorf("failed to fetch offsets for group %s: %w", t.group, committed.Error)
	}

	commits := make(map[int]int64, len(partitions))
	for _, p := range committed.Topics[t.topic] {
		commits[p.Partition] = p.CommittedOffset
	}

	total := int64(0)
	for _, p := range offsets.Topics[t.topic] {
		if p.Error != nil {
			return 0, fmt.Errorf("failed to list offsets for %s/%d: %w", t.topic, p.Partition, p.Error)
		}
		from, ok := commits[p.Partition]
		if !ok || from < p.FirstOffset {
			from = p.FirstOffset
		}
		lag := max(0, p.LastOffset-from)
		metrics.SetKafkaConsumerLag(t.group, t.topic, p.Partition, lag)
		total += lag
	}
	return int(total), nil
}
