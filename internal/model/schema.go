package model

// SchemaObject 对应 'schema_object' 表，是租户自定义的对象定义。
type SchemaObject struct {
	ID       string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	TenantID string        `gorm:"type:varchar(64);not null;index" json:"tenantId"`
	Name     string        `gorm:"type:varchar(255);not null" json:"name"`
	Fields   []SchemaField `gorm:"foreignKey:ObjectID" json:"fields"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (SchemaObject) TableName() string {
	return "schema_object"
}

// SchemaField 对应 'schema_field' 表。字段属于某个对象，可作为文件上传的目标。
type SchemaField struct {
	ID       string `gorm:"type:varchar(64);primaryKey" json:"id"`
	ObjectID string `gorm:"type:varchar(36);not null;index" json:"objectId"`
	Key      string `gorm:"type:varchar(255);not null" json:"key"`
	Type     string `gorm:"type:varchar(64)" json:"type"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (SchemaField) TableName() string {
	return "schema_field"
}
