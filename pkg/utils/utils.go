// Package utils 提供重试等通用工具函数。
package utils

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Permanent 标记 err 为不可重试，RetryWithBackoff 遇到时立即返回内部错误。
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// RetryWithBackoff 带指数退避的重试，最多执行 maxAttempts 次。
// ctx 取消时立即返回最后一次失败的错误。
func RetryWithBackoff(ctx context.Context, maxAttempts int, initialDelay, maxDelay time.Duration, fn func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialDelay
	b.MaxInterval = maxDelay
	b.Multiplier = 1.5

	var lastErr error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn(ctx)
		if err != nil {
			lastErr = err
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	if ctx.Err() != nil && lastErr != nil {
		return lastErr
	}
	return err
}
