package handler

import (
	"context"
	"errors"
	"file-processor/internal/middleware"
	"file-processor/internal/service"
	"file-processor/pkg/log"
	"file-processor/pkg/token"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// SchemaInvalidator 丢弃租户的 schema 目录缓存。
type SchemaInvalidator interface {
	Invalidate(ctx context.Context, tenantID string) error
}

// AdminHandler 负责处理运维相关的 API 请求。
// 管理员只能操作自己 token 中的租户。
type AdminHandler struct {
	reconcileService service.ReconcileService
	schemas          SchemaInvalidator
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(reconcileService service.ReconcileService, schemas SchemaInvalidator) *AdminHandler {
	return &AdminHandler{
		reconcileService: reconcileService,
		schemas:          schemas,
	}
}

// tenantScope 返回本次操作的租户。tenant 参数可省略，给出时必须与 token 中的租户一致。
func tenantScope(c *gin.Context) (string, bool) {
	claims := c.MustGet(middleware.ClaimsKey).(*token.CustomClaims)
	tenantID := c.DefaultQuery("tenant", claims.TenantID)
	if tenantID != claims.TenantID {
		log.Warnf("admin %s of tenant %s tried to access tenant %s", claims.UserID, claims.TenantID, tenantID)
		c.JSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "无权操作其他租户", "data": nil})
		return "", false
	}
	return tenantID, true
}

// ListOrphans 列出租户目标目录中没有元数据记录的文件，remove=true 时一并删除。
func (h *AdminHandler) ListOrphans(c *gin.Context) {
	tenantID, ok := tenantScope(c)
	if !ok {
		return
	}
	remove, _ := strconv.ParseBool(c.DefaultQuery("remove", "false"))

	var (
		orphans []service.Orphan
		err     error
	)
	if remove {
		orphans, err = h.reconcileService.RemoveOrphans(c.Request.Context(), tenantID)
	} else {
		orphans, err = h.reconcileService.FindOrphans(c.Request.Context(), tenantID)
	}
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error(), "data": nil})
			return
		}
		log.Error("ListOrphans: failed to reconcile", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "孤儿文件扫描失败", "data": orphans})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"removed": remove, "orphans": orphans}})
}

// InvalidateSchema 在租户 schema 变更后丢弃缓存，下一次请求从数据库重新加载。
func (h *AdminHandler) InvalidateSchema(c *gin.Context) {
	tenantID, ok := tenantScope(c)
	if !ok {
		return
	}
	if err := h.schemas.Invalidate(c.Request.Context(), tenantID); err != nil {
		log.Error("InvalidateSchema: failed to drop schema cache", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "清除 schema 缓存失败", "data": nil})
		return
	}
	log.Infof("schema cache invalidated for tenant %s", tenantID)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}
