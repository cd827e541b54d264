package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/IBM/sarama"
)

// KafkaSink publishes session events as JSON, keyed by room so every event of
// one session lands on the same partition in commit order.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaConfig returns the producer settings the sink expects.
func NewKafkaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	return cfg
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewKafkaConfig())
	if err != nil {
		return nil, err
	}
	return NewKafkaSinkWithProducer(producer, topic), nil
}

func NewKafkaSinkWithProducer(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (k *KafkaSink) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(e.Room),
		Value: sarama.ByteEncoder(value),
	}
	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return err
	}
	log.Printf("INFO: %s for %s sent to partition %d at offset %d", e.Kind, e.Room, partition, offset)
	return nil
}

func (k *KafkaSink) Close() error {
	return k.producer.Close()
}
