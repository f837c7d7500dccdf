package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/phistudioco/holdingmanager-sub001/internal/alert"
	"github.com/phistudioco/holdingmanager-sub001/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap/zaptest"
)

type fakeScanner struct {
	called  bool
	trigger alert.Trigger
	summary alert.Summary
}

func (f *fakeScanner) Scan(ctx context.Context, trigger alert.Trigger) alert.Summary {
	f.called = true
	f.trigger = trigger
	return f.summary
}

func newScanTask(t *testing.T, p tasks.AlertScanPayload) *asynq.Task {
	t.Helper()
	task, err := tasks.NewAlertScanTask(p)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return task
}

func TestAlertHandlerHandleAlertScan_Success(t *testing.T) {
	scanner := &fakeScanner{summary: alert.Summary{
		Rules:   3,
		Created: map[string]int{alert.RuleInvoiceOverdue: 2},
		Errors:  []alert.RuleError{{Rule: alert.RuleContractExpiring, Message: "timeout"}},
	}}
	h := NewAlertHandler(scanner, zaptest.NewLogger(t))
	task := newScanTask(t, tasks.AlertScanPayload{Trigger: alert.TriggerManual, RequestedBy: "adm-1"})
	if err := h.HandleAlertScan(context.Background(), task); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !scanner.called || scanner.trigger.Source != alert.TriggerManual || scanner.trigger.RequestedBy != "adm-1" {
		t.Fatalf("scanner not invoked correctly: %+v", scanner.trigger)
	}
}

func TestAlertHandlerHandleAlertScan_DefaultTrigger(t *testing.T) {
	scanner := &fakeScanner{}
	h := NewAlertHandler(scanner, zaptest.NewLogger(t))
	if err := h.HandleAlertScan(context.Background(), newScanTask(t, tasks.AlertScanPayload{})); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if scanner.trigger.Source != alert.TriggerSchedule {
		t.Fatalf("expected schedule trigger, got %q", scanner.trigger.Source)
	}
}

func TestAlertHandlerHandleAlertScan_AllRulesFailed(t *testing.T) {
	scanner := &fakeScanner{summary: alert.Summary{
		Rules: 2,
		Errors: []alert.RuleError{
			{Rule: alert.RuleInvoiceOverdue, Message: "db down"},
			{Rule: alert.RuleContractExpiring, Message: "db down"},
		},
	}}
	h := NewAlertHandler(scanner, zaptest.NewLogger(t))
	if err := h.HandleAlertScan(context.Background(), newScanTask(t, tasks.AlertScanPayload{})); err == nil {
		t.Fatalf("expected error when every rule failed")
	}
}

func TestAlertHandlerHandleAlertScan_Locked(t *testing.T) {
	scanner := &fakeScanner{summary: alert.Summary{Rules: 2, Locked: true}}
	h := NewAlertHandler(scanner, zaptest.NewLogger(t))
	if err := h.HandleAlertScan(context.Background(), newScanTask(t, tasks.AlertScanPayload{})); err != nil {
		t.Fatalf("locked scan should not be retried, got %v", err)
	}
}

func TestAlertHandlerHandleAlertScan_InvalidPayload(t *testing.T) {
	scanner := &fakeScanner{}
	h := NewAlertHandler(scanner, zaptest.NewLogger(t))
	task := asynq.NewTask(tasks.TypeAlertScan, []byte("not-json"))
	err := h.HandleAlertScan(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
	if scanner.called {
		t.Fatalf("scanner should not be called when payload invalid")
	}
	var p tasks.AlertScanPayload
	if json.Unmarshal(task.Payload(), &p) == nil {
		t.Fatalf("payload should be invalid json")
	}
}
