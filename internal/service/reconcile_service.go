package service

import (
	"context"
	"errors"
	"file-processor/internal/repository"
	"file-processor/pkg/log"
	"file-processor/pkg/pathutil"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
)

// Orphan 是目标目录中没有对应元数据记录的文件。
// 元数据写入在重试耗尽后失败时会留下这样的文件。
type Orphan struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// ReconcileService 扫描并清理孤儿文件。
type ReconcileService interface {
	FindOrphans(ctx context.Context, tenantID string) ([]Orphan, error)
	RemoveOrphans(ctx context.Context, tenantID string) ([]Orphan, error)
}

type reconcileService struct {
	fileRepo    repository.FileRepository
	paths       pathutil.Builder
	fs          afero.Fs
	gracePeriod time.Duration
	now         func() time.Time
}

// NewReconcileService 创建 ReconcileService。比 gracePeriod 新的文件不会被视为孤儿，
// 它们可能仍处于元数据写入的重试过程中。
func NewReconcileService(fileRepo repository.FileRepository, paths pathutil.Builder, fs afero.Fs, gracePeriod time.Duration) ReconcileService {
	return &reconcileService{
		fileRepo:    fileRepo,
		paths:       paths,
		fs:          fs,
		gracePeriod: gracePeriod,
		now:         time.Now,
	}
}

// FindOrphans 遍历租户的目标目录，返回没有记录的文件。
func (s *reconcileService) FindOrphans(ctx context.Context, tenantID string) ([]Orphan, error) {
	root, err := s.paths.DestPath(tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	exists, err := afero.DirExists(s.fs, root)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []Orphan{}, nil
	}

	cutoff := s.now().Add(-s.gracePeriod)
	orphans := []Orphan{}
	err = afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() || info.ModTime().After(cutoff) {
			return nil
		}
		found, err := s.fileRepo.ExistsByStoredPath(ctx, path)
		if err != nil {
			return fmt.Errorf("查询记录 %s 失败: %w", path, err)
		}
		if !found {
			orphans = append(orphans, Orphan{Path: path, Size: info.Size(), ModTime: info.ModTime()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Reconcile] 租户 %s 扫描完成，发现 %d 个孤儿文件", tenantID, len(orphans))
	return orphans, nil
}

// RemoveOrphans 删除孤儿文件，返回已删除的文件。
func (s *reconcileService) RemoveOrphans(ctx context.Context, tenantID string) ([]Orphan, error) {
	orphans, err := s.FindOrphans(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	removed := make([]Orphan, 0, len(orphans))
	var errs []error
	for _, o := range orphans {
		if err := s.fs.Remove(o.Path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		log.Infow("[Reconcile] removed orphaned file", "tenant", tenantID, "path", o.Path)
		removed = append(removed, o)
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("删除孤儿文件部分失败: %w", errors.Join(errs...))
	}
	return removed, nil
}
