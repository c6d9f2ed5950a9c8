package pipeline

import (
	"file-processor/internal/model"
	"fmt"
)

// DefaultImageField 是保留的虚拟字段，总是存在，跳过字段查找。
const DefaultImageField = "defaultImage"

// Catalog 是流程所需的租户 schema 视图。
type Catalog interface {
	ObjectByID(objectID string) (*model.SchemaObject, bool)
	FieldByID(objectID, fieldID string) (*model.SchemaField, bool)
}

// ReferenceValidator 确认对象和字段存在于租户 schema 中。无副作用。
type ReferenceValidator struct{}

// Validate 返回 nil、ErrUnknownObject 或 ErrUnknownField。
func (ReferenceValidator) Validate(catalog Catalog, objectID, fieldID string) error {
	if _, ok := catalog.ObjectByID(objectID); !ok {
		return fmt.Errorf("%w: object=%s", ErrUnknownObject, objectID)
	}
	if fieldID == DefaultImageField {
		return nil
	}
	if _, ok := catalog.FieldByID(objectID, fieldID); !ok {
		return fmt.Errorf("%w: object=%s field=%s", ErrUnknownField, objectID, fieldID)
	}
	return nil
}
