package alert

import (
	"testing"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverdueSeverity(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		days int
		want Severity
	}{
		{45, SeverityCritical},
		{31, SeverityCritical},
		{30, SeverityHigh},
		{20, SeverityHigh},
		{15, SeverityHigh},
		{14, SeverityMedium},
		{5, SeverityMedium},
		{1, SeverityMedium},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, OverdueSeverity(tc.days, th), "days=%d", tc.days)
	}
}

func TestDueSoonAndContractSeverity(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, SeverityHigh, DueSoonSeverity(0, th))
	assert.Equal(t, SeverityHigh, DueSoonSeverity(3, th))
	assert.Equal(t, SeverityMedium, DueSoonSeverity(4, th))
	assert.Equal(t, SeverityMedium, DueSoonSeverity(7, th))

	assert.Equal(t, SeverityCritical, ContractSeverity(-1, th))
	assert.Equal(t, SeverityHigh, ContractSeverity(0, th))
	assert.Equal(t, SeverityHigh, ContractSeverity(7, th))
	assert.Equal(t, SeverityMedium, ContractSeverity(8, th))
}

func TestDaysBetweenUsesCalendarDays(t *testing.T) {
	late := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	early := time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, daysBetween(late, early))
	assert.Equal(t, 0, daysBetween(early, early.Add(time.Hour)))
	assert.Equal(t, -45, daysBetween(testNow, testNow.AddDate(0, 0, -45)))
}

func TestWorkflowCandidate(t *testing.T) {
	registry := workflow.DefaultRegistry()
	base := workflow.Event{InstanceID: "inst-1", Numero: "ACH-2026-0001", WorkflowType: "achat"}

	evt := base
	evt.Kind = workflow.EventStepAdvanced
	evt.Step = 2
	c, ok := WorkflowCandidate(evt, registry)
	require.True(t, ok)
	assert.Equal(t, TypeWorkflowStepPending, c.Type)
	assert.Equal(t, SeverityMedium, c.Severity)
	assert.Equal(t, EntityWorkflowStep, c.LinkedEntityType)
	assert.Equal(t, "inst-1:2", c.LinkedEntityID)
	assert.Contains(t, c.Message, "directeur")
	assert.True(t, c.Once)

	evt = base
	evt.Kind = workflow.EventApproved
	evt.Step = 2
	c, ok = WorkflowCandidate(evt, registry)
	require.True(t, ok)
	assert.Equal(t, TypeWorkflowApproved, c.Type)
	assert.Equal(t, SeverityLow, c.Severity)
	assert.Equal(t, EntityWorkflowInstance, c.LinkedEntityType)
	assert.Equal(t, "inst-1", c.LinkedEntityID)

	evt = base
	evt.Kind = workflow.EventRejected
	evt.Step = 1
	evt.Comment = "Budget épuisé"
	c, ok = WorkflowCandidate(evt, registry)
	require.True(t, ok)
	assert.Equal(t, TypeWorkflowRejected, c.Type)
	assert.Equal(t, SeverityMedium, c.Severity)
	assert.Contains(t, c.Message, "Budget épuisé")

	evt = base
	evt.Kind = workflow.EventCancelled
	_, ok = WorkflowCandidate(evt, registry)
	assert.False(t, ok)

	// 未知类型仍能生成告警
	evt = base
	evt.WorkflowType = "inconnu"
	evt.Kind = workflow.EventSubmitted
	evt.Step = 1
	c, ok = WorkflowCandidate(evt, registry)
	require.True(t, ok)
	assert.Equal(t, "inst-1:1", c.LinkedEntityID)
}
