// Package errors provides the structured error codes used across the clustering service.
//
// 错误码格式为 AABBCCC：AA 为服务，BB 为类别，CCC 为类别内序号。
//
//	return errors.ErrInvalidRequest.WithMessage("project_id is required")
//	return errors.ErrStoreFailure.WithCause(err)
package errors

import (
	stderrors "errors"
	"fmt"
	"sync"

	"google.golang.org/grpc/codes"
)

// Errno 带错误码与中英文消息的错误。
// 派生副本（WithCause、WithMessage）与原值按错误码相等。
type Errno struct {
	Code      int        `json:"code"`
	GRPCCode  codes.Code `json:"-"`
	MessageEN string     `json:"message"`
	MessageZH string     `json:"message_zh,omitempty"`

	cause error
}

// New creates a new Errno.
func New(code int, grpcCode codes.Code, messageEN, messageZH string) *Errno {
	return &Errno{
		Code:      code,
		GRPCCode:  grpcCode,
		MessageEN: messageEN,
		MessageZH: messageZH,
	}
}

func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d: %s: %v", e.Code, e.MessageEN, e.cause)
	}
	return fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
}

func (e *Errno) Unwrap() error {
	return e.cause
}

// Is 按错误码匹配。
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	return ok && e.Code == t.Code
}

// WithCause returns a copy carrying cause.
func (e *Errno) WithCause(cause error) *Errno {
	cp := *e
	cp.cause = cause
	return &cp
}

// WithMessage returns a copy with a custom English message.
func (e *Errno) WithMessage(msg string) *Errno {
	cp := *e
	cp.MessageEN = msg
	return &cp
}

// WithMessagef returns a copy with a formatted English message.
func (e *Errno) WithMessagef(format string, args ...interface{}) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Message 按语言返回消息，缺少中文时回退英文。
func (e *Errno) Message(lang string) string {
	switch lang {
	case "zh", "zh-CN", "zh_CN":
		if e.MessageZH != "" {
			return e.MessageZH
		}
	}
	return e.MessageEN
}

// GRPCStatus returns the gRPC status code, Internal when unset.
func (e *Errno) GRPCStatus() codes.Code {
	if e.GRPCCode == codes.OK {
		return codes.Internal
	}
	return e.GRPCCode
}

// ExitCode 命令行退出码：参数与配置错误为 2，资源不存在为 3，网络与超时为 4，其余为 1。
func (e *Errno) ExitCode() int {
	if e.Code == 0 {
		return 0
	}
	_, category, _ := ParseCode(e.Code)
	switch category {
	case CategoryRequest, CategoryConfig:
		return 2
	case CategoryResource:
		return 3
	case CategoryNetwork, CategoryTimeout:
		return 4
	default:
		return 1
	}
}

// As 返回错误链中第一个 Errno。
func As(err error) (*Errno, bool) {
	var e *Errno
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of the first Errno in err's chain, or -1.
func CodeOf(err error) int {
	if e, ok := As(err); ok {
		return e.Code
	}
	return -1
}

var (
	registryMu sync.RWMutex
	registry   = make(map[int]*Errno)
)

// Register 登记错误码，重复登记会 panic。
func Register(e *Errno) *Errno {
	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := registry[e.Code]; ok {
		panic(fmt.Sprintf("errno code %d already registered: %s", e.Code, existing.MessageEN))
	}
	registry[e.Code] = e
	return e
}

// Lookup returns the registered Errno for code.
func Lookup(code int) (*Errno, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[code]
	return e, ok
}
