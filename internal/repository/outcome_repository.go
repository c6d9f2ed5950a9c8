package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const outcomeTTL = 7 * 24 * time.Hour

// OutcomeRepository 记住已完成请求的记录 ID，使重复投递的请求不会再次执行流程。
type OutcomeRepository interface {
	GetRecordID(ctx context.Context, tenantID, requestID string) (string, bool, error)
	SaveRecordID(ctx context.Context, tenantID, requestID, recordID string) error
}

type outcomeRepository struct {
	redisClient *redis.Client
}

// NewOutcomeRepository 创建一个新的 Redis 实现。
func NewOutcomeRepository(redisClient *redis.Client) OutcomeRepository {
	return &outcomeRepository{redisClient: redisClient}
}

func (r *outcomeRepository) key(tenantID, requestID string) string {
	return "file_processor:upload:" + tenantID + ":" + requestID
}

// GetRecordID 返回请求已完成时缓存的记录 ID。
func (r *outcomeRepository) GetRecordID(ctx context.Context, tenantID, requestID string) (string, bool, error) {
	val, err := r.redisClient.Get(ctx, r.key(tenantID, requestID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SaveRecordID 缓存已完成请求的记录 ID。
func (r *outcomeRepository) SaveRecordID(ctx context.Context, tenantID, requestID, recordID string) error {
	return r.redisClient.Set(ctx, r.key(tenantID, requestID), recordID, outcomeTTL).Err()
}
