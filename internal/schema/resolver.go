package schema

import (
	"context"
	"encoding/json"
	"errors"
	"file-processor/internal/model"
	"file-processor/internal/repository"
	"file-processor/pkg/log"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrUnknownTenant 表示租户没有任何 schema 定义。
var ErrUnknownTenant = errors.New("schema: unknown tenant")

// Resolver 根据租户加载 schema 目录，Redis 作为读穿缓存。
type Resolver struct {
	repo        repository.SchemaRepository
	redisClient *redis.Client
	ttl         time.Duration
}

// NewResolver 创建 Resolver。redisClient 为 nil 时不使用缓存。
func NewResolver(repo repository.SchemaRepository, redisClient *redis.Client, ttl time.Duration) *Resolver {
	return &Resolver{repo: repo, redisClient: redisClient, ttl: ttl}
}

func cacheKey(tenantID string) string {
	return "schema:catalog:" + tenantID
}

// Resolve 返回租户的目录。缓存读写失败只记录日志，回落到数据库。
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (*Catalog, error) {
	if objects, ok := r.readCache(ctx, tenantID); ok {
		return NewCatalog(objects), nil
	}

	objects, err := r.repo.FindObjectsByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("加载租户 %s 的 schema 失败: %w", tenantID, err)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTenant, tenantID)
	}
	catalog := NewCatalog(objects)
	r.writeCache(ctx, tenantID, catalog)
	return catalog, nil
}

// Invalidate 删除租户的缓存目录，schema 变更后调用。
func (r *Resolver) Invalidate(ctx context.Context, tenantID string) error {
	if r.redisClient == nil {
		return nil
	}
	return r.redisClient.Del(ctx, cacheKey(tenantID)).Err()
}

func (r *Resolver) readCache(ctx context.Context, tenantID string) ([]model.SchemaObject, bool) {
	if r.redisClient == nil {
		return nil, false
	}
	raw, err := r.redisClient.Get(ctx, cacheKey(tenantID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warnw("[Resolver] 读取 schema 缓存失败", "tenant", tenantID, "error", err)
		}
		return nil, false
	}
	var objects []model.SchemaObject
	if err := json.Unmarshal(raw, &objects); err != nil {
		log.Warnw("[Resolver] schema 缓存内容无法解析", "tenant", tenantID, "error", err)
		return nil, false
	}
	return objects, true
}

func (r *Resolver) writeCache(ctx context.Context, tenantID string, catalog *Catalog) {
	if r.redisClient == nil {
		return
	}
	raw, err := json.Marshal(catalog.Objects())
	if err != nil {
		return
	}
	if err := r.redisClient.Set(ctx, cacheKey(tenantID), raw, r.ttl).Err(); err != nil {
		log.Warnw("[Resolver] 写入 schema 缓存失败", "tenant", tenantID, "error", err)
	}
}
