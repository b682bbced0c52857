package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"crm-gateway-go/internal/apperror"
	"crm-gateway-go/internal/model"
	"crm-gateway-go/internal/repository"
	"crm-gateway-go/pkg/database"
	"crm-gateway-go/pkg/log"
	"crm-gateway-go/pkg/metrics"
	"crm-gateway-go/pkg/tasks"
)

// JournalService 把访问事件写入 access_journal 表。
// 它既可以直接作为 Publisher 使用，也可以作为 Kafka 消费端的处理器。
type JournalService struct {
	repo repository.JournalRepository
}

// NewJournalService 创建一个新的 JournalService 实例。
func NewJournalService(repo repository.JournalRepository) *JournalService {
	return &JournalService{repo: repo}
}

// Publish 同步写入一条访问记录。
func (s *JournalService) Publish(ctx context.Context, event tasks.AccessEvent) error {
	if err := s.repo.Create(ctx, model.NewAccessRecord(event)); err != nil {
		metrics.JournalEventsTotal.WithLabelValues("mysql", "error").Inc()
		return err
	}
	metrics.JournalEventsTotal.WithLabelValues("mysql", "ok").Inc()
	return nil
}

// Process 处理 Kafka 投递的事件，已经写入过的事件直接跳过。
func (s *JournalService) Process(ctx context.Context, event tasks.AccessEvent) error {
	exists, err := s.repo.ExistsByEventID(ctx, event.EventID)
	if err != nil {
		return err
	}
	if exists {
		log.Debugf("[Journal] 事件已存在，跳过: %s", event.EventID)
		return nil
	}
	return s.Publish(ctx, event)
}

// AccessRecorder 在请求结束后构造访问事件并在后台发布，发布失败只记录日志。
type AccessRecorder struct {
	publisher tasks.Publisher
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewAccessRecorder 创建一个新的 AccessRecorder 实例，publisher 为 nil 时丢弃所有事件。
func NewAccessRecorder(publisher tasks.Publisher) *AccessRecorder {
	if publisher == nil {
		publisher = tasks.NopPublisher{}
	}
	return &AccessRecorder{publisher: publisher, timeout: 3 * time.Second}
}

// Record 构造访问事件后立即返回，发布在后台进行，不占用请求的响应时间。
// ctx 被取消（例如客户端已断开）不影响发布。
func (r *AccessRecorder) Record(ctx context.Context, kind string, opts database.Options, target string, start time.Time, err error) {
	event := NewAccessEvent(kind, opts, target, start, err)
	pubCtx := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(pubCtx, r.timeout)
		defer cancel()
		if pubErr := r.publisher.Publish(ctx, event); pubErr != nil {
			log.Warnw("发布访问事件失败", "event", event.EventID, "kind", kind, "error", pubErr)
		}
	}()
}

// Wait 等待所有在途的访问事件发布完成，停机时在关闭 publisher 之前调用。
func (r *AccessRecorder) Wait() {
	r.wg.Wait()
}

// NewAccessEvent 根据请求结果构造访问事件，失败时 outcome 为错误类别。
func NewAccessEvent(kind string, opts database.Options, target string, start time.Time, err error) tasks.AccessEvent {
	event := tasks.AccessEvent{
		EventID:    uuid.NewString(),
		Kind:       kind,
		DBHost:     opts.Host,
		DBPath:     opts.Path,
		Target:     target,
		Outcome:    tasks.OutcomeOK,
		DurationMs: time.Since(start).Milliseconds(),
		OccurredAt: start.UTC(),
	}
	if err != nil {
		event.Outcome = string(apperror.KindOf(err))
		event.Detail = err.Error()
	}
	return event
}
