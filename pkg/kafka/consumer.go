package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer reads from one reader per registered topic and dispatches
// through a shared worker pool. A per-partition mutex keeps at most one
// message in flight per (topic, partition), which preserves per-key
// ordering for hash-balanced producers.
type Consumer struct {
	cfg       *ConsumerConfig
	readers   map[string]*kafka.Reader
	handlers  map[string]MessageHandler
	msgChan   chan *message
	dlq       *kafka.Writer
	hook      ConsumerHook
	plMu      sync.Mutex
	partLocks map[string]map[int]*sync.Mutex

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type message struct {
	topic string
	data  []byte
	km    kafka.Message
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "default",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:       cfg,
		readers:   make(map[string]*kafka.Reader),
		handlers:  make(map[string]MessageHandler),
		stopChan:  make(chan struct{}),
		msgChan:   make(chan *message, cfg.BufferSize),
		partLocks: make(map[string]map[int]*sync.Mutex),
		hook:      NoopHook{},
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}

	initConsumerMetrics()
	return c, nil
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler registers a message handler for a specific topic.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		log.Printf("warn: handler already registered for topic %s", topic)
		return
	}
	c.handlers[topic] = handler
}

// Start launches one reader goroutine per registered topic plus the
// worker pool. Handlers must be registered before Start.
func (c *Consumer) Start() error {
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		log.Printf("kafka consumer: registered topic=%s", topic)
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.messageWorker()
	}
	for topic, reader := range c.readers {
		c.wg.Add(1)
		go c.readLoop(topic, reader)
	}

	log.Printf("kafka consumer: started topics=%d workers=%d", len(c.readers), c.cfg.WorkerCount)
	return nil
}

// Stop stops the Kafka consumer gracefully.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		log.Println("kafka consumer: stopping...")
		close(c.stopChan)
		close(c.msgChan)
		stopErr = c.waitForWg(ctx)

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				log.Printf("error closing reader for topic %s: %v", topic, err)
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				log.Printf("error closing dlq writer: %v", err)
			}
		}
		if stopErr == nil {
			log.Println("kafka consumer: stopped successfully")
		}
	})
	return stopErr
}

func (c *Consumer) waitForWg(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
	case <-done:
		return nil
	}
}

// readLoop fetches messages with a short read timeout so the stop signal
// is noticed promptly.
func (c *Consumer) readLoop(topic string, reader *kafka.Reader) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msg, err := reader.ReadMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				log.Printf("error reading message from topic %s: %v", topic, err)
			}
			continue
		}
		if !c.enqueue(&message{topic: topic, data: msg.Value, km: msg}) {
			return
		}
	}
}

// enqueue hands a message to the worker pool, applying backpressure instead
// of dropping. Returns false when the consumer is stopping.
func (c *Consumer) enqueue(m *message) bool {
	for {
		select {
		case c.msgChan <- m:
			c.observeQueue(m.topic)
			return true
		case <-c.stopChan:
			return false
		default:
			full := c.observeQueue(m.topic)
			if full > 0.8 {
				time.Sleep(10 * time.Millisecond)
			} else {
				runtime.Gosched()
			}
		}
	}
}

// observeQueue records gauges and returns the current fullness ratio.
func (c *Consumer) observeQueue(topic string) float64 {
	full := float64(len(c.msgChan)) / float64(cap(c.msgChan))
	if consumerQueueDepth != nil {
		consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgChan)))
		consumerQueueFullness.WithLabelValues(topic).Set(full)
	}
	return full
}

// messageWorker drains the channel, dispatching each message to its
// topic handler.
func (c *Consumer) messageWorker() {
	defer c.wg.Done()

	for msg := range c.msgChan {
		handler, ok := c.handlers[msg.topic]
		if !ok {
			continue
		}
		start := time.Now()
		c.processMessage(handler, msg)
		if consumerHandleLatency != nil {
			consumerHandleLatency.WithLabelValues(msg.topic).Observe(time.Since(start).Seconds())
		}
	}
}

// processMessage runs one message through the retry path, then routes the
// final failure to the DLQ. Offsets are committed on success or after DLQ
// so a poison message cannot wedge the partition.
func (c *Consumer) processMessage(handler MessageHandler, msg *message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic in message handler for topic %s: %v", handler.Topic(), r)
		}
	}()

	pl := c.partitionLock(msg.topic, msg.km.Partition)
	pl.Lock()
	defer pl.Unlock()

	err, attempts := c.handleWithRetry(handler, msg)
	if err != nil {
		c.hook.OnError(context.Background(), msg.topic, msg.km, msg.data, err)
		log.Printf("error handling message from topic %s after %d attempts: %v", handler.Topic(), attempts, err)
		c.sendToDLQ(msg)
	}

	if err == nil || c.dlq != nil {
		if reader := c.readers[msg.topic]; reader != nil {
			_ = c.commitWithRetry(reader, msg.km, 3)
		}
	}
}

// handleWithRetry invokes the handler with hook callbacks and bounded
// backoff. Returns the final error (nil on success) and the retry count.
func (c *Consumer) handleWithRetry(handler MessageHandler, msg *message) (error, int) {
	var err error
	attempts := 0
	for {
		attempts++
		hctx, hmsg, hdata, berr := c.hook.BeforeHandle(context.Background(), msg.topic, msg.km, msg.data)
		if berr != nil {
			return berr, attempts - 1
		}

		err = handler.Handle(hctx, hdata)
		c.hook.AfterHandle(hctx, msg.topic, hmsg, hdata, err)
		if err == nil || attempts > c.cfg.RetryMax {
			return err, attempts - 1
		}

		c.hook.OnError(hctx, msg.topic, hmsg, hdata, err)
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.stopChan:
			return err, attempts - 1
		}
	}
}

func (c *Consumer) sendToDLQ(msg *message) {
	if c.dlq == nil {
		return
	}
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Value:   msg.data,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(msg.topic)}},
	})
	if err != nil {
		log.Printf("error writing to DLQ topic %s: %v", c.cfg.DLQTopic, err)
	}
}

// commitWithRetry commits a single message offset with bounded retries.
func (c *Consumer) commitWithRetry(reader *kafka.Reader, km kafka.Message, max int) error {
	if max <= 0 {
		max = 1
	}
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	log.Printf("error committing message after %d attempts: %v", max, err)
	return err
}

// partitionLock is only reached from worker goroutines holding no other
// locks; creation is guarded by plMu.
func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.plMu.Lock()
	defer c.plMu.Unlock()
	m, ok := c.partLocks[topic]
	if !ok {
		m = make(map[int]*sync.Mutex)
		c.partLocks[topic] = m
	}
	l, ok := m[partition]
	if !ok {
		l = &sync.Mutex{}
		m[partition] = l
	}
	return l
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max {
		exp = max
	}
	jitter := time.Duration(rand.Int63n(int64(exp) / 2))
	return exp - jitter
}

var (
	consumerMetricsOnce sync.Once

	consumerQueueDepth    *prometheus.GaugeVec
	consumerQueueFullness *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerRegisterer    prometheus.Registerer
)

// SetConsumerMetricsRegisterer overrides the default Prometheus registry
// for consumer metrics. Must be called before NewConsumer.
func SetConsumerMetricsRegisterer(reg prometheus.Registerer) { consumerRegisterer = reg }

func initConsumerMetrics() {
	consumerMetricsOnce.Do(func() {
		consumerQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cryptowatcher_kafka_consumer_queue_depth",
			Help: "Number of messages waiting in consumer queue",
		}, []string{"topic"})
		consumerQueueFullness = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cryptowatcher_kafka_consumer_queue_fullness",
			Help: "Queue utilization ratio (len/cap)",
		}, []string{"topic"})
		consumerHandleLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "cryptowatcher_kafka_consumer_handle_seconds",
			Help: "Handling time per message",
		}, []string{"topic"})

		reg := consumerRegisterer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(consumerQueueDepth, consumerQueueFullness, consumerHandleLatency)
	})
}
