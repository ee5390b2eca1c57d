package logger

import (
	"context"
	"fmt"
)

// UnwrapError 沿 Unwrap 链收集每一层的错误信息。
func UnwrapError(err error) []string {
	var messages []string
	for err != nil {
		messages = append(messages, err.Error())
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return messages
}

// LogErrorChain logs err with its type and complete unwrap chain.
func LogErrorChain(ctx context.Context, msg string, err error, keysAndValues ...interface{}) {
	fields := append([]interface{}{
		"error", err.Error(),
		"error_type", fmt.Sprintf("%T", err),
		"error_chain", UnwrapError(err),
	}, keysAndValues...)
	GetLogger(ctx).Errorw(msg, fields...)
}

// LogInfo logs an info message with context fields.
func LogInfo(ctx context.Context, msg string, keysAndValues ...interface{}) {
	GetLogger(ctx).Infow(msg, keysAndValues...)
}

// LogDebug logs a debug message with context fields.
func LogDebug(ctx context.Context, msg string, keysAndValues ...interface{}) {
	GetLogger(ctx).Debugw(msg, keysAndValues...)
}

// LogWarn logs a warning message with context fields.
func LogWarn(ctx context.Context, msg string, keysAndValues ...interface{}) {
	GetLogger(ctx).Warnw(msg, keysAndValues...)
}
