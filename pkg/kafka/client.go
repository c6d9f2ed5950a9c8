// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"file-processor/internal/config"
	"file-processor/pkg/log"
	"file-processor/pkg/tasks"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
)

// 处理失败的消息最多尝试的次数，超过后提交 offset 放弃。
const maxTaskAttempts = 3

// TaskHandler 处理一条上传完成请求。
// 返回 nil 表示消息已处理完毕（包括流程给出的终态失败），返回错误表示应重试。
type TaskHandler interface {
	HandleTask(ctx context.Context, task tasks.FileUploadTask) error
}

// Producer 把处理结果发布到结果主题。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.ResultTopic,
		Balancer: &kafka.LeastBytes{},
	}}
}

// Publish 发送一条处理结果。
func (p *Producer) Publish(ctx context.Context, outcome tasks.UploadOutcome) error {
	value, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(outcome.TenantID + ":" + outcome.RequestID),
		Value: value,
	})
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理上传完成请求，ctx 取消时退出。
// kafka-go 的 reader 在 FetchMessage 之后不会重新投递同一条消息，
// 因此失败的任务在当前循环内重试，之后再提交 offset。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, handler TaskHandler) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	fetchBackOff := newFetchBackOff()
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Errorw("从 Kafka 读取消息失败", "topic", cfg.Topic, "error", err, "alert", true)
			if !waitBeforeRefetch(ctx, fetchBackOff) {
				log.Info("Kafka 消费者已停止")
				return
			}
			continue
		}
		fetchBackOff.Reset()

		var task tasks.FileUploadTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(ctx, r, m)
			continue
		}

		attempts, err := handleWithRetry(ctx, handler, task, newTaskBackOff(ctx))
		if err != nil {
			if ctx.Err() != nil {
				// 停机中断了重试，不提交 offset，重启后重新投递。
				log.Warnw("停机中断了上传任务的重试", "request", task.RequestID, "attempts", attempts)
				return
			}
			log.Errorw("上传任务多次失败，提交 offset 终止重试",
				"request", task.RequestID, "tenant", task.TenantID, "attempts", attempts, "error", err, "alert", true)
		}
		commit(ctx, r, m)
	}
}

// 任务重试的初始间隔，测试中可调小。
var taskRetryInterval = time.Second

func newTaskBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = taskRetryInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, maxTaskAttempts-1), ctx)
}

// handleWithRetry 对同一条任务调用 handler，直到成功或 b 用尽，返回实际尝试次数。
func handleWithRetry(ctx context.Context, handler TaskHandler, task tasks.FileUploadTask, b backoff.BackOff) (int, error) {
	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		return handler.HandleTask(ctx, task)
	}, b, func(err error, wait time.Duration) {
		log.Warnw("处理上传任务失败，准备重试", "request", task.RequestID, "attempt", attempts, "wait", wait.String(), "error", err)
	})
	return attempts, err
}

func newFetchBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// waitBeforeRefetch 在读取失败后等待一个退避间隔。ctx 取消时返回 false。
func waitBeforeRefetch(ctx context.Context, b backoff.BackOff) bool {
	timer := time.NewTimer(b.NextBackOff())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func commit(ctx context.Context, r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
