// Package kafka 提供了访问事件在 Kafka 上的生产与消费。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"crm-gateway-go/internal/config"
	"crm-gateway-go/pkg/log"
	"crm-gateway-go/pkg/metrics"
	"crm-gateway-go/pkg/tasks"
)

// maxAttempts 是单条消息处理失败后的最大尝试次数，超过后提交 offset 放弃该消息。
const maxAttempts = 3

// EventProcessor 处理从 Kafka 读到的访问事件。
type EventProcessor interface {
	Process(ctx context.Context, event tasks.AccessEvent) error
}

// messageWriter 是 kafka.Writer 中生产者用到的部分。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 把访问事件写入 Kafka。
type Producer struct {
	writer messageWriter
}

// NewProducer 初始化 Kafka 生产者。
// 写入是异步的：Publish 只把消息放进批次，批次最多攒 10ms，结果由 onCompletion 记录。
func NewProducer(cfg config.KafkaConfig) *Producer {
	p := &Producer{}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers(cfg.Brokers)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		Async:                  true,
		Completion:             p.onCompletion,
	}
	log.Info("Kafka 生产者初始化成功")
	return p
}

// Publish 发送一个访问事件，以事件 ID 作为消息 key。
// 返回的错误只包含入队失败，投递结果在 onCompletion 中统计。
func (p *Producer) Publish(ctx context.Context, event tasks.AccessEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.EventID),
		Value: value,
	})
	if err != nil {
		metrics.JournalEventsTotal.WithLabelValues("kafka", "error").Inc()
		return err
	}
	return nil
}

// onCompletion 在一个批次写完后被 kafka.Writer 调用。
func (p *Producer) onCompletion(messages []kafka.Message, err error) {
	if err != nil {
		metrics.JournalEventsTotal.WithLabelValues("kafka", "error").Add(float64(len(messages)))
		log.Errorw("写入 Kafka 失败", "count", len(messages), "error", err)
		return
	}
	metrics.JournalEventsTotal.WithLabelValues("kafka", "ok").Add(float64(len(messages)))
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// messageReader 是 kafka.Reader 中消费者用到的部分。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StartConsumer 启动消费者，把访问事件交给 processor，直到 ctx 结束。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor EventProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  time.Second,
	})
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)
	consume(ctx, r, processor)
}

func consume(ctx context.Context, r messageReader, processor EventProcessor) {
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info("Kafka 消费者已停止")
			} else {
				log.Error("从 Kafka 读取消息失败", err)
			}
			return
		}

		var event tasks.AccessEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(ctx, r, m)
			continue
		}

		if !processWithRetry(ctx, processor, event) && ctx.Err() != nil {
			// 停机时不提交，下次启动后重新投递
			return
		}
		commit(ctx, r, m)
	}
}

// processWithRetry 在内存中重试同一条消息，最多 maxAttempts 次。返回是否处理成功。
func processWithRetry(ctx context.Context, processor EventProcessor, event tasks.AccessEvent) bool {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := processor.Process(ctx, event)
		if err == nil {
			return true
		}
		log.Errorf("处理访问事件失败: event=%s, attempt=%d, error: %v", event.EventID, attempt, err)
		if attempt == maxAttempts || !retryPause(ctx) {
			break
		}
	}
	log.Errorf("访问事件多次处理失败，提交 offset 放弃: event=%s", event.EventID)
	return false
}

func commit(ctx context.Context, r messageReader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

func retryPause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(200 * time.Millisecond):
		return true
	}
}

func brokers(list string) []string {
	var out []string
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
