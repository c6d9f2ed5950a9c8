package repository

import (
	"context"
	"file-processor/internal/model"

	"gorm.io/gorm"
)

// SchemaRepository 读取租户的对象与字段定义。
type SchemaRepository interface {
	FindObjectsByTenant(ctx context.Context, tenantID string) ([]model.SchemaObject, error)
}

type schemaRepository struct {
	db *gorm.DB
}

// NewSchemaRepository 创建一个新的 SchemaRepository 实例。
func NewSchemaRepository(db *gorm.DB) SchemaRepository {
	return &schemaRepository{db: db}
}

// FindObjectsByTenant 返回租户的全部对象，并预加载字段。
func (r *schemaRepository) FindObjectsByTenant(ctx context.Context, tenantID string) ([]model.SchemaObject, error) {
	var objects []model.SchemaObject
	err := r.db.WithContext(ctx).Preload("Fields").Where("tenant_id = ?", tenantID).Find(&objects).Error
	return objects, err
}
