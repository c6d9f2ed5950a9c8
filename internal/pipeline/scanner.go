package pipeline

import (
	"context"
	"file-processor/pkg/log"
	"fmt"
	"strings"
	"time"

	execute "github.com/alexellis/go-execute/v2"
)

// clamdscan 的退出码 1 表示发现病毒，其他非零值表示扫描器自身出错。
const clamInfectedExitCode = 1

// Scanner 对路径上的文件给出判定：nil 为干净，ErrMalwareDetected 为检出，
// 包装了 ErrScanFailed 的错误为扫描器故障。
type Scanner interface {
	Scan(ctx context.Context, path string) error
}

// ClamAV 通过 clamdscan 进程扫描，并要求扫描器自己删除受感染文件。
type ClamAV struct {
	binary  string
	timeout time.Duration
}

// NewClamAV 创建 ClamAV 扫描器。binary 为空时使用 clamdscan。
func NewClamAV(binary string, timeout time.Duration) *ClamAV {
	if binary == "" {
		binary = "clamdscan"
	}
	return &ClamAV{binary: binary, timeout: timeout}
}

// Scan 运行 clamdscan <path> --remove=yes --quiet。
func (c *ClamAV) Scan(ctx context.Context, path string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	task := execute.ExecTask{
		Command: c.binary,
		Args:    []string{path, "--remove=yes", "--quiet"},
	}
	result, err := task.Execute(ctx)
	if err != nil {
		return fmt.Errorf("%w: running %s: %v", ErrScanFailed, c.binary, err)
	}
	switch result.ExitCode {
	case 0:
		return nil
	case clamInfectedExitCode:
		return fmt.Errorf("%w: %s", ErrMalwareDetected, path)
	}
	stderr := strings.TrimSpace(result.Stderr)
	log.Warnw("[ClamAV] Problem running ClamAV", "path", path, "exitCode", result.ExitCode, "stderr", stderr)
	return fmt.Errorf("%w: %s exited with code %d: %s", ErrScanFailed, c.binary, result.ExitCode, stderr)
}

// MalwareGate 在部署开关关闭时不调用扫描器，直接视为干净。
type MalwareGate struct {
	enabled bool
	scanner Scanner
}

// NewMalwareGate 创建扫描阶段。
func NewMalwareGate(enabled bool, scanner Scanner) *MalwareGate {
	return &MalwareGate{enabled: enabled, scanner: scanner}
}

// Check 扫描临时文件。
func (g *MalwareGate) Check(ctx context.Context, path string) error {
	if !g.enabled {
		return nil
	}
	return g.scanner.Scan(ctx, path)
}
