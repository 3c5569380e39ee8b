package notify

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"
)

// flushTimeoutMs bounds how long Close waits for queued events.
const flushTimeoutMs = 5000

// KafkaJournal produces every event to a Kafka topic, keyed by event topic.
type KafkaJournal struct {
	producer *kafka.Producer
	topic    string
	logger   *logrus.Logger
}

// NewKafkaJournal creates the producer and starts its delivery report loop.
func NewKafkaJournal(broker, topic string, logger *logrus.Logger) (*KafkaJournal, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": broker,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	j := &KafkaJournal{producer: producer, topic: topic, logger: logger}
	j.startDeliveryReport()
	logger.Info("Kafka journal initialized successfully")
	return j, nil
}

// startDeliveryReport drains producer events and logs failed deliveries.
func (j *KafkaJournal) startDeliveryReport() {
	go func() {
		for e := range j.producer.Events() {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					j.logger.Errorf("Journal delivery failed: %v", ev.TopicPartition.Error)
				}
			}
		}
	}()
}

// Record enqueues ev for delivery.
func (j *KafkaJournal) Record(_ context.Context, ev Event) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}
	return j.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &j.topic, Partition: kafka.PartitionAny},
		Key:            []byte(ev.Topic),
		Value:          data,
	}, nil)
}

// Close flushes outstanding events and closes the producer.
func (j *KafkaJournal) Close() {
	if remaining := j.producer.Flush(flushTimeoutMs); remaining > 0 {
		j.logger.Warnf("Kafka journal closed with %d undelivered events", remaining)
	}
	j.producer.Close()
	j.logger.Info("Kafka journal closed")
}
