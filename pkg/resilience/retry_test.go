// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jllopis/orchestra/pkg/errors"
)

func TestDo_SucceedsAfterRecoverableFailure(t *testing.T) {
	attempts := 0
	cfg := DefaultRetryConfig().WithInitialDelay(time.Millisecond)

	err := cfg.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New(errors.CodeLLMError, "flaky provider", nil).WithRecoverable(true)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_StopsOnUnrecoverable(t *testing.T) {
	attempts := 0
	cfg := DefaultRetryConfig().WithInitialDelay(time.Millisecond)

	fatal := errors.New(errors.CodeBudgetExceeded, "ceiling breached", nil)
	err := cfg.Do(context.Background(), func() error {
		attempts++
		return fatal
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("unrecoverable error must not be retried, got %d attempts", attempts)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	cfg := DefaultRetryConfig().WithMaxAttempts(2).WithInitialDelay(time.Millisecond)

	err := cfg.Do(context.Background(), func() error {
		attempts++
		return errors.New(errors.CodeLLMError, "always down", nil).WithRecoverable(true)
	})
	if err == nil {
		t.Fatal("expected last error after exhausting attempts")
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestDo_PlainErrorsNotRetried(t *testing.T) {
	attempts := 0
	cfg := DefaultRetryConfig().WithInitialDelay(time.Millisecond)

	err := cfg.Do(context.Background(), func() error {
		attempts++
		return stderrors.New("plain failure")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("plain errors must not be retried by default, got %d attempts", attempts)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultRetryConfig().WithInitialDelay(time.Hour)
	err := cfg.Do(ctx, func() error {
		return errors.New(errors.CodeLLMError, "down", nil).WithRecoverable(true)
	})
	if !errors.IsCode(err, errors.CodeContextLost) {
		t.Errorf("expected CONTEXT_LOST, got %v", err)
	}
}
