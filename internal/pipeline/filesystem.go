package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

const destinationDirMode os.FileMode = 0o755

// DirectoryPreparer 确保目标目录存在。
// MkdirAll 对已存在的目录返回 nil，因此并发创建同一目录不会出错。
type DirectoryPreparer struct {
	fs afero.Fs
}

// NewDirectoryPreparer 创建 DirectoryPreparer。
func NewDirectoryPreparer(fs afero.Fs) *DirectoryPreparer {
	return &DirectoryPreparer{fs: fs}
}

// Ensure 创建目录树。
func (p *DirectoryPreparer) Ensure(dir string) error {
	if err := p.fs.MkdirAll(dir, destinationDirMode); err != nil {
		return fmt.Errorf("创建目标目录 %s 失败: %w", dir, err)
	}
	return nil
}

// Relocator 在同一个卷内通过 rename 原子地移动文件。
// 跨卷移动会直接失败而不是退化为复制，避免目标路径出现半写文件。
type Relocator struct {
	fs afero.Fs
}

// NewRelocator 创建 Relocator。
func NewRelocator(fs afero.Fs) *Relocator {
	return &Relocator{fs: fs}
}

// Relocate 把 tempPath 移动到 destDir/fileName，并确认文件已在目标位置。
// rename 保留原文件的修改时间，这里把它刷新为移动时刻，孤儿清扫按这个时间计算宽限期。
func (r *Relocator) Relocate(tempPath, destDir, fileName string) (string, error) {
	finalPath := filepath.Join(destDir, fileName)
	if err := r.fs.Rename(tempPath, finalPath); err != nil {
		return "", fmt.Errorf("移动文件 [%s] -> [%s] 失败: %w", tempPath, finalPath, err)
	}
	now := time.Now()
	if err := r.fs.Chtimes(finalPath, now, now); err != nil {
		return "", fmt.Errorf("刷新文件 [%s] 的修改时间失败: %w", finalPath, err)
	}
	info, err := r.fs.Stat(finalPath)
	if err != nil {
		return "", fmt.Errorf("确认文件 [%s] 失败: %w", finalPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("目标 [%s] 是一个目录", finalPath)
	}
	return finalPath, nil
}
