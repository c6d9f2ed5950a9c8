// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"errors"
	"file-processor/internal/model"
	"file-processor/internal/pipeline"
	"file-processor/internal/repository"
	"file-processor/internal/schema"
	"file-processor/pkg/log"
	"file-processor/pkg/pathutil"
	"file-processor/pkg/tasks"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// KindInvalidInput 标记流程开始前就被拒绝的请求（参数形状、路径片段、未知租户）。
const KindInvalidInput = "INVALID_INPUT"

// ErrInvalidRequest 表示请求在进入流程前即被拒绝。
var ErrInvalidRequest = errors.New("invalid upload request")

// CatalogResolver 根据租户返回 schema 目录。
type CatalogResolver interface {
	Resolve(ctx context.Context, tenantID string) (*schema.Catalog, error)
}

// Finalizer 是上传完成流程。
type Finalizer interface {
	Process(ctx context.Context, catalog pipeline.Catalog, req model.UploadRequest) (string, error)
}

// EventPublisher 发布处理结果。
type EventPublisher interface {
	Publish(ctx context.Context, outcome tasks.UploadOutcome) error
}

// FinalizeInput 是已通过参数形状校验的上传完成请求。
type FinalizeInput struct {
	Tenant     model.TenantContext
	Name       string
	ObjectID   string
	FieldID    string
	FileName   string
	Type       string
	Size       int64
	UploadedBy string
	Info       json.RawMessage
}

// UploadService 接口定义了上传完成相关的业务操作。
type UploadService interface {
	Finalize(ctx context.Context, in FinalizeInput) (string, error)
	HandleTask(ctx context.Context, task tasks.FileUploadTask) error
}

type uploadService struct {
	resolver  CatalogResolver
	processor Finalizer
	outcomes  repository.OutcomeRepository
	publisher EventPublisher
	paths     pathutil.Builder
	fs        afero.Fs
}

// NewUploadService 创建一个新的 UploadService 实例。outcomes 与 publisher 可以为 nil。
func NewUploadService(
	resolver CatalogResolver,
	processor Finalizer,
	outcomes repository.OutcomeRepository,
	publisher EventPublisher,
	paths pathutil.Builder,
	fs afero.Fs,
) UploadService {
	return &uploadService{
		resolver:  resolver,
		processor: processor,
		outcomes:  outcomes,
		publisher: publisher,
		paths:     paths,
		fs:        fs,
	}
}

// Finalize 解析租户目录、计算路径并运行上传完成流程。
func (s *uploadService) Finalize(ctx context.Context, in FinalizeInput) (string, error) {
	tenant := in.Tenant
	log.Infof("[Finalize] 开始处理上传完成请求, tenant: %s, request: %s, object: %s, field: %s", tenant.TenantID, tenant.RequestID, in.ObjectID, in.FieldID)

	if recordID, ok := s.cachedOutcome(ctx, tenant); ok {
		log.Infof("[Finalize] 请求已完成过，直接返回记录 %s, request: %s", recordID, tenant.RequestID)
		return recordID, nil
	}

	catalog, err := s.resolver.Resolve(ctx, tenant.TenantID)
	if err != nil {
		if errors.Is(err, schema.ErrUnknownTenant) {
			return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		log.Errorw("[Finalize] Error initializing schema catalog", "tenant", tenant.TenantID, "error", err)
		return "", err
	}

	tempPath, err := s.paths.TempPath(tenant.TenantID, in.Name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	destDir, err := s.paths.DestPath(tenant.TenantID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	s.checkDeclaredType(tempPath, in.Type)

	req := model.UploadRequest{
		Tenant:               tenant,
		ObjectID:             in.ObjectID,
		FieldID:              in.FieldID,
		TemporaryPath:        tempPath,
		DestinationDirectory: destDir,
		FileName:             in.Name,
		OriginalName:         in.FileName,
		DeclaredSize:         in.Size,
		DeclaredType:         in.Type,
		UploaderID:           in.UploadedBy,
		AuxiliaryInfo:        in.Info,
	}
	recordID, err := s.processor.Process(ctx, catalog, req)
	s.report(ctx, tenant, recordID, err)
	if err != nil {
		return "", err
	}

	if s.outcomes != nil && tenant.RequestID != "" {
		if err := s.outcomes.SaveRecordID(ctx, tenant.TenantID, tenant.RequestID, recordID); err != nil {
			log.Warnw("[Finalize] 缓存处理结果失败", "request", tenant.RequestID, "error", err)
		}
	}
	return recordID, nil
}

// HandleTask 处理来自 Kafka 的请求。流程给出的失败是终态，不再重试；
// 只有流程开始前的基础设施错误才返回给消费者重试。
func (s *uploadService) HandleTask(ctx context.Context, task tasks.FileUploadTask) error {
	tenant := model.TenantContext{TenantID: task.TenantID, RequestID: task.RequestID}
	if err := task.Validate(); err != nil {
		log.Warnw("[HandleTask] 上传任务参数无效", "request", task.RequestID, "error", err)
		s.publish(ctx, tasks.UploadOutcome{
			RequestID: task.RequestID,
			TenantID:  task.TenantID,
			Status:    tasks.StatusFailed,
			Kind:      KindInvalidInput,
			Message:   err.Error(),
		})
		return nil
	}

	_, err := s.Finalize(ctx, FinalizeInput{
		Tenant:     tenant,
		Name:       task.Name,
		ObjectID:   task.Object,
		FieldID:    task.Field,
		FileName:   task.FileName,
		Type:       task.Type,
		Size:       task.Size,
		UploadedBy: task.UploadedBy,
		Info:       task.Info,
	})
	if err == nil {
		return nil
	}
	if _, ok := pipeline.AsFailure(err); ok {
		return nil
	}
	if errors.Is(err, ErrInvalidRequest) {
		s.publish(ctx, tasks.UploadOutcome{
			RequestID: task.RequestID,
			TenantID:  task.TenantID,
			Status:    tasks.StatusFailed,
			Kind:      KindInvalidInput,
			Message:   err.Error(),
		})
		return nil
	}
	return err
}

func (s *uploadService) cachedOutcome(ctx context.Context, tenant model.TenantContext) (string, bool) {
	if s.outcomes == nil || tenant.RequestID == "" {
		return "", false
	}
	recordID, found, err := s.outcomes.GetRecordID(ctx, tenant.TenantID, tenant.RequestID)
	if err != nil {
		log.Warnw("[Finalize] 读取处理结果缓存失败", "request", tenant.RequestID, "error", err)
		return "", false
	}
	return recordID, found
}

// report 记录并发布结果。系统故障以 alert 标记的 error 日志上报，拒绝只记 warn。
func (s *uploadService) report(ctx context.Context, tenant model.TenantContext, recordID string, err error) {
	outcome := tasks.UploadOutcome{
		RequestID: tenant.RequestID,
		TenantID:  tenant.TenantID,
		Status:    tasks.StatusCompleted,
		UUID:      recordID,
	}
	if err != nil {
		outcome.Status = tasks.StatusFailed
		outcome.Message = err.Error()
		if f, ok := pipeline.AsFailure(err); ok {
			outcome.Stage = string(f.Stage)
			outcome.Kind = string(f.Kind)
			outcome.Incident = f.Kind.Incident()
		}
		fields := []interface{}{
			"tenant", tenant.TenantID,
			"request", tenant.RequestID,
			"stage", outcome.Stage,
			"kind", outcome.Kind,
			"error", err,
		}
		if outcome.Incident {
			log.Errorw("[Finalize] Error uploading file", append(fields, "alert", true)...)
		} else {
			log.Warnw("[Finalize] upload rejected", fields...)
		}
	}
	s.publish(ctx, outcome)
}

func (s *uploadService) publish(ctx context.Context, outcome tasks.UploadOutcome) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, outcome); err != nil {
		log.Warnw("[Finalize] 发布处理结果失败", "request", outcome.RequestID, "error", err)
	}
}

// checkDeclaredType 嗅探临时文件内容，与声明的类型不符时只记录警告。
func (s *uploadService) checkDeclaredType(path, declared string) {
	if declared == "" {
		return
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	detected, err := mimetype.DetectReader(f)
	if err != nil {
		return
	}
	if !detected.Is(declared) {
		log.Warnw("[Finalize] 声明的文件类型与内容不符", "path", path, "declared", declared, "detected", detected.String())
	}
}
