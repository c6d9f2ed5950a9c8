// Package pipeline 定义了上传完成的核心流程：
// 引用校验 -> 恶意软件扫描 -> 目标目录准备 -> 原子移动 -> 元数据写入。
package pipeline

import (
	"context"
	"file-processor/internal/model"
	"file-processor/pkg/log"
	"fmt"

	"github.com/dustin/go-humanize"
	"gorm.io/datatypes"
)

// Gate 是恶意软件扫描阶段。
type Gate interface {
	Check(ctx context.Context, path string) error
}

// DirectoryEnsurer 是目标目录准备阶段。
type DirectoryEnsurer interface {
	Ensure(dir string) error
}

// FileMover 是文件移动阶段。
type FileMover interface {
	Relocate(tempPath, destDir, fileName string) (string, error)
}

// RecordPersister 是元数据写入阶段。
type RecordPersister interface {
	Persist(ctx context.Context, record *model.StoredFile) (string, error)
}

// Processor 是唯一负责编排各阶段顺序的组件。
// 任一阶段失败立即进入 StateFailed，不会执行后续阶段，也不会回滚之前的阶段。
type Processor struct {
	validator    ReferenceValidator
	gate         Gate
	preparer     DirectoryEnsurer
	mover        FileMover
	persister    RecordPersister
	onTransition func(from, to State)
}

// Option 配置 Processor。
type Option func(*Processor)

// WithTransitionHook 在每次状态迁移时回调。
func WithTransitionHook(fn func(from, to State)) Option {
	return func(p *Processor) { p.onTransition = fn }
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(gate Gate, preparer DirectoryEnsurer, mover FileMover, persister RecordPersister, opts ...Option) *Processor {
	p := &Processor{
		gate:      gate,
		preparer:  preparer,
		mover:     mover,
		persister: persister,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type stage struct {
	state State
	run   func() error
}

// Process 执行一次上传完成流程，成功时返回新记录的 ID，失败时返回 *Failure。
// 流程一旦开始就不响应取消，只有在开始前已取消的 ctx 会被拒绝。
func (p *Processor) Process(ctx context.Context, catalog Catalog, req model.UploadRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("上传完成流程未开始: %w", err)
	}
	ctx = context.WithoutCancel(ctx)

	var finalPath, recordID string
	stages := []stage{
		{StateValidating, func() error {
			return p.validator.Validate(catalog, req.ObjectID, req.FieldID)
		}},
		{StateScanning, func() error {
			return p.gate.Check(ctx, req.TemporaryPath)
		}},
		{StatePreparing, func() error {
			return p.preparer.Ensure(req.DestinationDirectory)
		}},
		{StateRelocating, func() (err error) {
			finalPath, err = p.mover.Relocate(req.TemporaryPath, req.DestinationDirectory, req.FileName)
			if err == nil {
				log.Infof("[Processor] moved file [%s] -> [%s]", req.TemporaryPath, finalPath)
			}
			return err
		}},
		{StatePersisting, func() (err error) {
			recordID, err = p.persister.Persist(ctx, newStoredFile(req, finalPath))
			return err
		}},
	}

	current := StateValidating
	p.transition("", current)
	for i, s := range stages {
		if err := s.run(); err != nil {
			p.transition(current, StateFailed)
			return "", &Failure{Stage: s.state, Kind: classify(s.state, err), Cause: err}
		}
		next := StateCompleted
		if i+1 < len(stages) {
			next = stages[i+1].state
		}
		p.transition(current, next)
		current = next
	}

	log.Infow("[Processor] file entry saved",
		"uuid", recordID,
		"tenant", req.Tenant.TenantID,
		"request", req.Tenant.RequestID,
		"pathFile", finalPath,
		"size", humanize.Bytes(uint64(max(req.DeclaredSize, 0))),
	)
	return recordID, nil
}

func (p *Processor) transition(from, to State) {
	log.Debugw("[Processor] state transition", "from", from, "to", to)
	if p.onTransition != nil {
		p.onTransition(from, to)
	}
}

func newStoredFile(req model.UploadRequest, storedPath string) *model.StoredFile {
	var info datatypes.JSON
	if len(req.AuxiliaryInfo) > 0 {
		info = datatypes.JSON(req.AuxiliaryInfo)
	}
	return &model.StoredFile{
		FileName:   req.DisplayName(),
		StoredPath: storedPath,
		Size:       req.DeclaredSize,
		Type:       req.DeclaredType,
		Info:       info,
		ObjectID:   req.ObjectID,
		FieldID:    req.FieldID,
		UploadedBy: req.UploaderID,
	}
}
