// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"errors"
	"file-processor/internal/middleware"
	"file-processor/internal/model"
	"file-processor/internal/pipeline"
	"file-processor/internal/service"
	"file-processor/pkg/log"
	"file-processor/pkg/token"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UploadHandler 负责处理上传完成相关的 API 请求。
type UploadHandler struct {
	uploadService service.UploadService
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// FinalizeUploadRequest 定义了上传完成 API 的请求体结构。
type FinalizeUploadRequest struct {
	Name      string          `json:"name" binding:"required"`
	Object    string          `json:"object" binding:"required,uuid"`
	Field     string          `json:"field" binding:"required"`
	Size      *int64          `json:"size" binding:"required,gte=0"`
	Type      string          `json:"type" binding:"required"`
	FileName  string          `json:"fileName" binding:"required"`
	Info      json.RawMessage `json:"info"`
	RequestID string          `json:"requestId"`
}

// FinalizeUpload 把已经落在临时目录的文件转为正式存储并登记元数据。
func (h *UploadHandler) FinalizeUpload(c *gin.Context) {
	var req FinalizeUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("FinalizeUpload: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少必要的参数或参数无效", "data": nil})
		return
	}
	if len(req.Info) > 0 && !json.Valid(req.Info) {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "info 不是合法的 JSON", "data": nil})
		return
	}

	claims := c.MustGet(middleware.ClaimsKey).(*token.CustomClaims)
	recordID, err := h.uploadService.Finalize(c.Request.Context(), service.FinalizeInput{
		Tenant:     model.TenantContext{TenantID: claims.TenantID, RequestID: req.RequestID},
		Name:       req.Name,
		ObjectID:   req.Object,
		FieldID:    req.Field,
		FileName:   req.FileName,
		Type:       req.Type,
		Size:       *req.Size,
		UploadedBy: claims.UserID,
		Info:       req.Info,
	})
	if err != nil {
		status := statusFor(err)
		c.JSON(status, gin.H{"code": status, "message": err.Error(), "data": failureData(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"uuid": recordID})
}

// statusFor 把失败分类映射为 HTTP 状态码。
func statusFor(err error) int {
	if errors.Is(err, service.ErrInvalidRequest) {
		return http.StatusBadRequest
	}
	f, ok := pipeline.AsFailure(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch f.Kind {
	case pipeline.KindUnknownObject, pipeline.KindUnknownField:
		return http.StatusBadRequest
	case pipeline.KindMalwareDetected:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func failureData(err error) gin.H {
	f, ok := pipeline.AsFailure(err)
	if !ok {
		return nil
	}
	return gin.H{"stage": f.Stage, "kind": f.Kind}
}
