// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StoredFile 定义了 site_file 表的 ORM 模型。
// 每次成功的上传完成流程恰好创建一条记录，之后不再由本服务修改。
type StoredFile struct {
	ID         string         `gorm:"type:varchar(36);primaryKey" json:"uuid"`
	FileName   string         `gorm:"type:varchar(255);not null" json:"file"`
	StoredPath string         `gorm:"type:varchar(512);not null;index" json:"pathFile"`
	Size       int64          `gorm:"not null" json:"size"`
	Type       string         `gorm:"type:varchar(128)" json:"type"`
	Info       datatypes.JSON `json:"info"`
	ObjectID   string         `gorm:"type:varchar(36);not null;index" json:"object"`
	FieldID    string         `gorm:"type:varchar(64);not null" json:"field"`
	UploadedBy string         `gorm:"type:varchar(64)" json:"uploadedBy"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (StoredFile) TableName() string {
	return "site_file"
}

// BeforeCreate 由持久层生成记录 ID。
func (f *StoredFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
