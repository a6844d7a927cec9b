package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaPublisher struct {
	brokers []string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	return &KafkaPublisher{brokers: brokers, writers: map[string]*kafka.Writer{}}, nil
}

func (p *KafkaPublisher) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	p.writers[topic] = w
	return w
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, ev Event) error {
	return PublishJSON(ctx, p.writer(topic), key, ev)
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka: close %s: %w", topic, err))
		}
	}
	p.writers = map[string]*kafka.Writer{}
	return errors.Join(errs...)
}

func PublishJSON(ctx context.Context, writer *kafka.Writer, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}
	if err := writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data, Time: time.Now().UTC()}); err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}
	return nil
}
