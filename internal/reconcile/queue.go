package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Task is one payment notification waiting to be reconciled.
type Task struct {
	PaymentID  string    `json:"paymentId"`
	RequestID  string    `json:"requestId,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type Handler func(ctx context.Context, task Task)

type Queue interface {
	Enqueue(ctx context.Context, task Task) error
}

// WorkerPool runs tasks on a fixed set of goroutines. Nothing survives a
// restart; the provider's own redelivery covers lost tasks.
type WorkerPool struct {
	tasks   chan Task
	handle  Handler
	workers int
	wg      sync.WaitGroup
}

func NewWorkerPool(workers, buffer int, handle Handler) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &WorkerPool{
		tasks:   make(chan Task, buffer),
		handle:  handle,
		workers: workers,
	}
}

// Run blocks until ctx is cancelled and all workers have returned.
func (p *WorkerPool) Run(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task := <-p.tasks:
					p.handle(context.WithoutCancel(ctx), task)
				}
			}
		}()
	}
	<-ctx.Done()
	p.wg.Wait()
}

// Enqueue never blocks the webhook. A full buffer spills into a detached
// goroutine.
func (p *WorkerPool) Enqueue(ctx context.Context, task Task) error {
	select {
	case p.tasks <- task:
		return nil
	default:
		log.Printf("[RECONCILE] [WARN] worker queue full, running payment %s detached", task.PaymentID)
		go p.handle(context.WithoutCancel(ctx), task)
		return nil
	}
}

const DefaultPaymentsTopic = "payment-notifications"

type KafkaQueue struct {
	writer  *kafka.Writer
	brokers []string
	topic   string
	groupID string
}

func NewKafkaQueue(brokers []string, topic string) *KafkaQueue {
	if topic == "" {
		topic = DefaultPaymentsTopic
	}
	return &KafkaQueue{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           3 * time.Second,
		},
		brokers: brokers,
		topic:   topic,
		groupID: "bikestore-reconciler",
	}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, task Task) error {
	value, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	// Keyed by payment id so redeliveries land on the same partition in order.
	if err := q.writer.WriteMessages(ctx, kafka.Message{Key: []byte(task.PaymentID), Value: value}); err != nil {
		return fmt.Errorf("publish payment %s: %w", task.PaymentID, err)
	}
	return nil
}

// Consume reads tasks with a consumer group until ctx is cancelled.
func (q *KafkaQueue) Consume(ctx context.Context, handle Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  q.brokers,
		Topic:    q.topic,
		GroupID:  q.groupID,
		MaxBytes: 1e6,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			log.Printf("[RECONCILE] [WARN] closing kafka reader: %v", err)
		}
	}()

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			log.Printf("[RECONCILE] [ERROR] reading kafka message: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		var task Task
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Printf("[RECONCILE] [ERROR] dropping undecodable message at offset %d: %v", m.Offset, err)
			continue
		}
		// The offset is already committed; let the pass finish on shutdown.
		handle(context.WithoutCancel(ctx), task)
	}
}

func (q *KafkaQueue) Close() error {
	return q.writer.Close()
}
