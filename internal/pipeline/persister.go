package pipeline

import (
	"context"
	"file-processor/internal/model"
	"fmt"
)

// RecordStore 是外部元数据存储的写入接口，ID 由存储端生成。
type RecordStore interface {
	Create(ctx context.Context, record *model.StoredFile) error
}

// MetadataPersister 写入文件记录。重试全部委托给 RetryPolicy，自身不做任何重试。
type MetadataPersister struct {
	store  RecordStore
	policy RetryPolicy
}

// NewMetadataPersister 创建 MetadataPersister。
func NewMetadataPersister(store RecordStore, policy RetryPolicy) *MetadataPersister {
	return &MetadataPersister{store: store, policy: policy}
}

// Persist 每次尝试都发起一次全新的创建调用，返回最终成功记录的 ID。
func (p *MetadataPersister) Persist(ctx context.Context, record *model.StoredFile) (string, error) {
	var recordID string
	attempts, err := p.policy.Do(ctx, func(ctx context.Context) error {
		entry := *record
		entry.ID = ""
		if err := p.store.Create(ctx, &entry); err != nil {
			return err
		}
		recordID = entry.ID
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("写入文件记录失败 (attempts=%d): %w", attempts, err)
	}
	return recordID, nil
}
