package pipeline

import (
	"errors"
	"fmt"
)

// State 是上传完成流程的状态。前五个状态同时标识失败发生在哪个阶段。
type State string

const (
	StateValidating State = "validating"
	StateScanning   State = "scanning"
	StatePreparing  State = "preparing"
	StateRelocating State = "relocating"
	StatePersisting State = "persisting"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Kind 是失败分类，调用方据此决定是拒绝请求还是告警。
type Kind string

const (
	KindUnknownObject      Kind = "UNKNOWN_OBJECT"
	KindUnknownField       Kind = "UNKNOWN_FIELD"
	KindMalwareDetected    Kind = "MALWARE_DETECTED"
	KindScanSystemFailure  Kind = "SCAN_SYSTEM_FAILURE"
	KindSystemFailure      Kind = "SYSTEM_FAILURE"
	KindPersistenceFailure Kind = "PERSISTENCE_FAILURE"
)

// Incident 报告该失败是否属于需要运维介入的系统故障。
// 引用校验失败和检出恶意软件只是对请求的拒绝。
func (k Kind) Incident() bool {
	switch k {
	case KindUnknownObject, KindUnknownField, KindMalwareDetected:
		return false
	}
	return true
}

// 各阶段组件返回的哨兵错误，由 Processor 归类。
var (
	ErrUnknownObject   = errors.New("unknown object reference")
	ErrUnknownField    = errors.New("unknown field reference")
	ErrMalwareDetected = errors.New("malware detected in upload")
	ErrScanFailed      = errors.New("malware scanner failed")
)

// Failure 是流程失败的唯一出口，携带 (stage, kind, cause)。
type Failure struct {
	Stage State
	Kind  Kind
	Cause error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("file_processor.file_upload: %s failed (%s): %v", f.Stage, f.Kind, f.Cause)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// AsFailure 从错误链中取出 *Failure。
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// classify 根据阶段和组件返回的错误确定失败分类。
func classify(stage State, err error) Kind {
	switch stage {
	case StateValidating:
		if errors.Is(err, ErrUnknownField) {
			return KindUnknownField
		}
		return KindUnknownObject
	case StateScanning:
		if errors.Is(err, ErrMalwareDetected) {
			return KindMalwareDetected
		}
		return KindScanSystemFailure
	case StatePersisting:
		return KindPersistenceFailure
	}
	return KindSystemFailure
}
