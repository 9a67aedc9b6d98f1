// SPDX-License-Identifier: Apache-2.0
package errors

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("disk full")
	oe := New(CodePersistence, "turn log append failed", cause)

	if oe.Code != CodePersistence {
		t.Errorf("expected CodePersistence, got %v", oe.Code)
	}
	if oe.Message != "turn log append failed" {
		t.Errorf("expected message 'turn log append failed', got %q", oe.Message)
	}
	if oe.Err != cause {
		t.Errorf("expected cause to be preserved")
	}
	if !errors.Is(oe, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
}

func TestWithContext(t *testing.T) {
	oe := New(CodeAgentFailure, "turn failed", nil)
	oe.WithContext("agent", "claude").
		WithContext("round", 3)

	if oe.Context["agent"] != "claude" {
		t.Errorf("expected context agent to be 'claude'")
	}
	if oe.Context["round"] != 3 {
		t.Errorf("expected context round to be set")
	}
}

func TestWithAttribute(t *testing.T) {
	oe := New(CodeBudgetExceeded, "token ceiling breached", nil)
	oe.WithAttribute("dimension", "tokens").
		WithAttribute("ceiling", "1000")

	if oe.Attributes["dimension"] != "tokens" {
		t.Errorf("expected attribute dimension")
	}
	if oe.Attributes["ceiling"] != "1000" {
		t.Errorf("expected attribute ceiling")
	}
}

func TestWithRecoverable(t *testing.T) {
	oe := New(CodeAgentFailure, "network error", nil)
	if oe.Recoverable {
		t.Errorf("expected recoverable to be false by default")
	}
	oe.WithRecoverable(true)
	if !oe.Recoverable {
		t.Errorf("expected recoverable to be true after WithRecoverable")
	}
}

func TestIsCode(t *testing.T) {
	inner := New(CodeBudgetExceeded, "cost ceiling breached", nil)
	outer := New(CodeInternal, "round halted", inner)

	if !IsCode(outer, CodeBudgetExceeded) {
		t.Errorf("expected IsCode to find BUDGET_EXCEEDED in chain")
	}
	if IsCode(outer, CodeConfig) {
		t.Errorf("did not expect CONFIG_ERROR in chain")
	}
	if IsCode(nil, CodeInternal) {
		t.Errorf("nil error should not match any code")
	}
}

func TestAsOrchestraError(t *testing.T) {
	plain := errors.New("plain")
	oe := AsOrchestraError(plain)
	if oe.Code != CodeInternal {
		t.Errorf("expected plain errors to wrap as internal, got %v", oe.Code)
	}

	typed := New(CodeConfig, "bad roster", nil)
	if AsOrchestraError(typed) != typed {
		t.Errorf("expected typed errors to pass through")
	}

	if AsOrchestraError(nil) != nil {
		t.Errorf("expected nil for nil error")
	}
}

func TestMarshalJSON(t *testing.T) {
	oe := New(CodeBudgetExceeded, "denied", nil).WithRecoverable(false)
	data, err := json.Marshal(oe)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out["code"] != string(CodeBudgetExceeded) {
		t.Errorf("expected code in JSON, got %v", out["code"])
	}
}
