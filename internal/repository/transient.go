package repository

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// MySQL 中可重试的错误码：锁等待超时、死锁。两者都由服务端回滚了语句。
const (
	errLockWaitTimeout uint16 = 1205
	errDeadlock        uint16 = 1213
)

// IsTransient 判断一次写入失败是否值得重试。
// 只重试确定没有提交的失败：锁竞争，以及驱动在发送语句前就发现的坏连接（driver.ErrBadConn）。
// 语句发出后连接断开（ErrInvalidConn、unexpected EOF、2006/2013、网络超时）时 INSERT 可能已经提交，
// 重试会产生第二条记录，因此不重试。
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == errLockWaitTimeout || myErr.Number == errDeadlock
	}
	return false
}
