package queue

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"
)

// channelName is the NSQ channel shared by all backend consumers; one
// channel per topic gives queue (not pub/sub) semantics.
const channelName = "inkwell"

// NSQBroker backs the runtime with nsqd. Publishing goes straight to the
// daemon; consumers discover it through nsqlookupd, falling back to a direct
// connection when lookupd is unavailable.
type NSQBroker struct {
	producer  *nsq.Producer
	nsqdAddr  string
	lookupd   string
	consumers []*nsq.Consumer
}

func NewNSQBroker(nsqdAddr, lookupdAddr string) (*NSQBroker, error) {
	producer, err := nsq.NewProducer(nsqdAddr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("nsq producer: %w", err)
	}
	return &NSQBroker{producer: producer, nsqdAddr: nsqdAddr, lookupd: lookupdAddr}, nil
}

func (b *NSQBroker) Publish(queue string, body []byte) error {
	return b.producer.Publish(queue, body)
}

func (b *NSQBroker) PublishDeferred(queue string, delay time.Duration, body []byte) error {
	return b.producer.DeferredPublish(queue, delay, body)
}

func (b *NSQBroker) Subscribe(queue string, concurrency int, fn func(body []byte) error) error {
	if concurrency < 1 {
		concurrency = 1
	}

	cfg := nsq.NewConfig()
	// Generation jobs hold a message for minutes; stop nsqd from requeueing
	// mid-run. Retries are the runtime's job, not the broker's.
	cfg.MsgTimeout = 15 * time.Minute
	cfg.MaxAttempts = 0
	// Without this go-nsq holds one message in flight and the handler pool
	// below never sees a second delivery.
	cfg.MaxInFlight = concurrency

	consumer, err := nsq.NewConsumer(queue, channelName, cfg)
	if err != nil {
		return fmt.Errorf("nsq consumer for %s: %w", queue, err)
	}

	consumer.AddConcurrentHandlers(nsq.HandlerFunc(func(m *nsq.Message) error {
		return fn(m.Body)
	}), concurrency)

	if err := consumer.ConnectToNSQLookupd(b.lookupd); err != nil {
		slog.Warn("lookupd unavailable, connecting to nsqd directly", "queue", queue, "error", err)
		if err := consumer.ConnectToNSQD(b.nsqdAddr); err != nil {
			return fmt.Errorf("nsq connect for %s: %w", queue, err)
		}
	}

	b.consumers = append(b.consumers, consumer)
	return nil
}

func (b *NSQBroker) Close() error {
	for _, c := range b.consumers {
		c.Stop()
	}
	for _, c := range b.consumers {
		<-c.StopChan
	}
	b.producer.Stop()
	return nil
}
