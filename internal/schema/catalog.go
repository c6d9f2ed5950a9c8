// Package schema 提供租户 schema 目录（对象与字段）的解析与缓存。
package schema

import (
	"file-processor/internal/model"
)

// Catalog 是租户对象/字段定义的只读视图。
type Catalog struct {
	objects map[string]*model.SchemaObject
	fields  map[string]map[string]*model.SchemaField
}

// NewCatalog 根据对象列表构建目录。
func NewCatalog(objects []model.SchemaObject) *Catalog {
	c := &Catalog{
		objects: make(map[string]*model.SchemaObject, len(objects)),
		fields:  make(map[string]map[string]*model.SchemaField, len(objects)),
	}
	for i := range objects {
		obj := &objects[i]
		c.objects[obj.ID] = obj
		byID := make(map[string]*model.SchemaField, len(obj.Fields))
		for j := range obj.Fields {
			byID[obj.Fields[j].ID] = &obj.Fields[j]
		}
		c.fields[obj.ID] = byID
	}
	return c
}

// ObjectByID 查找对象。
func (c *Catalog) ObjectByID(objectID string) (*model.SchemaObject, bool) {
	obj, ok := c.objects[objectID]
	return obj, ok
}

// FieldByID 在对象内查找字段。
func (c *Catalog) FieldByID(objectID, fieldID string) (*model.SchemaField, bool) {
	byID, ok := c.fields[objectID]
	if !ok {
		return nil, false
	}
	f, ok := byID[fieldID]
	return f, ok
}

// Objects 返回目录中的全部对象，用于缓存序列化。
func (c *Catalog) Objects() []model.SchemaObject {
	out := make([]model.SchemaObject, 0, len(c.objects))
	for _, obj := range c.objects {
		out = append(out, *obj)
	}
	return out
}
