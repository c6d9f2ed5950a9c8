package model

import "encoding/json"

// TenantContext 标识一次请求所属的租户。
type TenantContext struct {
	TenantID  string
	RequestID string
}

// UploadRequest 描述一次上传完成尝试。构造后在流程执行期间不会被修改。
type UploadRequest struct {
	Tenant               TenantContext
	ObjectID             string
	FieldID              string
	TemporaryPath        string
	DestinationDirectory string
	// FileName 是落盘文件名，OriginalName 是记录中展示给用户的原始文件名。
	FileName      string
	OriginalName  string
	DeclaredSize  int64
	DeclaredType  string
	UploaderID    string
	AuxiliaryInfo json.RawMessage
}

// DisplayName 返回记录中使用的文件名。
func (r UploadRequest) DisplayName() string {
	if r.OriginalName != "" {
		return r.OriginalName
	}
	return r.FileName
}
