// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"errors"
	"file-processor/internal/model"

	"gorm.io/gorm"
)

// FileRepository 接口定义了文件元数据的持久化操作。
type FileRepository interface {
	Create(ctx context.Context, record *model.StoredFile) error
	ExistsByStoredPath(ctx context.Context, storedPath string) (bool, error)
}

// fileRepository 是 FileRepository 接口的 GORM 实现。
type fileRepository struct {
	db *gorm.DB
}

// NewFileRepository 创建一个新的 FileRepository 实例。
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

// Create 在 site_file 表中插入一条新记录，ID 由 BeforeCreate 生成。
func (r *fileRepository) Create(ctx context.Context, record *model.StoredFile) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// ExistsByStoredPath 检查是否存在指向该落盘路径的记录。
func (r *fileRepository) ExistsByStoredPath(ctx context.Context, storedPath string) (bool, error) {
	var record model.StoredFile
	err := r.db.WithContext(ctx).Select("id").Where("stored_path = ?", storedPath).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
