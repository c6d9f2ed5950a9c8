// Package pathutil 根据租户计算临时路径与目标目录。
package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// destSubdir 是租户目录下存放已完成上传的子目录。
const destSubdir = "file_processor"

// Builder 是纯函数式的路径策略。
type Builder struct {
	TempRoot string
	DestRoot string
}

// TempPath 返回 <TempRoot>/<tenant>/<name>。
func (b Builder) TempPath(tenantID, name string) (string, error) {
	if err := checkSegment("tenant", tenantID); err != nil {
		return "", err
	}
	if err := checkSegment("name", name); err != nil {
		return "", err
	}
	return filepath.Join(b.TempRoot, tenantID, name), nil
}

// DestPath 返回 <DestRoot>/<tenant>/file_processor。
func (b Builder) DestPath(tenantID string) (string, error) {
	if err := checkSegment("tenant", tenantID); err != nil {
		return "", err
	}
	return filepath.Join(b.DestRoot, tenantID, destSubdir), nil
}

// checkSegment 确保值是单个安全的路径片段，不能借此跳出根目录。
func checkSegment(label, value string) error {
	if value == "" || value == "." || value == ".." {
		return fmt.Errorf("无效的 %s 路径片段: %q", label, value)
	}
	if strings.ContainsAny(value, `/\`) || strings.ContainsRune(value, 0) {
		return fmt.Errorf("%s 路径片段不能包含分隔符: %q", label, value)
	}
	return nil
}
