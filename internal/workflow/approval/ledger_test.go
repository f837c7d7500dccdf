package approval

import (
	"context"
	"testing"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/internal/workflow"

	"github.com/stretchr/testify/require"
)

func TestLedgerRecordRejectsDuplicateAndOutOfSequence(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()
	inst := createSubmitted(t, mgr, employe, "achat", achatPayload())
	ledger := mgr.Ledger()

	_, err := ledger.Record(ctx, RecordInput{InstanceID: inst.ID, StepOrdinal: 2, ApproverID: "dir-1", Decision: workflow.DecisionApproved})
	require.ErrorIs(t, err, workflow.ErrStepOutOfSequence)

	rec, err := ledger.Record(ctx, RecordInput{InstanceID: inst.ID, StepOrdinal: 1, ApproverID: "resp-1", Decision: workflow.DecisionApproved, Comment: "ok"})
	require.NoError(t, err)
	require.False(t, rec.DecidedAt.IsZero())

	_, err = ledger.Record(ctx, RecordInput{InstanceID: inst.ID, StepOrdinal: 1, ApproverID: "resp-2", Decision: workflow.DecisionRejected, Comment: "non"})
	require.ErrorIs(t, err, workflow.ErrDuplicateStepDecision)

	records, err := ledger.ListFor(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "resp-1", records[0].ApproverID, "first decision is never overwritten")

	_, err = ledger.Record(ctx, RecordInput{InstanceID: "missing", StepOrdinal: 1, ApproverID: "x", Decision: workflow.DecisionApproved})
	require.ErrorIs(t, err, workflow.ErrInstanceNotFound)

	_, err = ledger.Record(ctx, RecordInput{InstanceID: inst.ID, StepOrdinal: 1, ApproverID: "x", Decision: "peut-être"})
	require.ErrorIs(t, err, workflow.ErrInvalidPayload)
}

func TestLedgerDecidedBy(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()
	a := createSubmitted(t, mgr, employe, "achat", achatPayload())
	b := createSubmitted(t, mgr, employe, "achat", achatPayload())
	_, err := mgr.ApproveStep(ctx, responsable, a.ID, DecisionInput{})
	require.NoError(t, err)

	decided, err := mgr.Ledger().DecidedBy(ctx, responsable.UserID, []string{a.ID, b.ID})
	require.NoError(t, err)
	require.Contains(t, decided, a.ID)
	require.NotContains(t, decided, b.ID)

	empty, err := mgr.Ledger().DecidedBy(ctx, responsable.UserID, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestLedgerEventsSince(t *testing.T) {
	mgr, _, clock := newTestManager(t)
	ctx := context.Background()

	// avant la fenêtre
	clock.Set(time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC))
	old := createSubmitted(t, mgr, employe, "conge", congePayload())
	_, err := mgr.ApproveStep(ctx, responsable, old.ID, DecisionInput{})
	require.NoError(t, err)

	since := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	clock.Set(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	submitted := createSubmitted(t, mgr, employe, "conge", congePayload())

	advanced := createSubmitted(t, mgr, employe, "achat", achatPayload())
	_, err = mgr.ApproveStep(ctx, responsable, advanced.ID, DecisionInput{})
	require.NoError(t, err)

	approved := createSubmitted(t, mgr, employe, "achat", achatPayload())
	_, err = mgr.ApproveStep(ctx, responsable, approved.ID, DecisionInput{})
	require.NoError(t, err)
	_, err = mgr.ApproveStep(ctx, directeur, approved.ID, DecisionInput{})
	require.NoError(t, err)

	rejected := createSubmitted(t, mgr, employe, "conge", congePayload())
	_, err = mgr.RejectStep(ctx, responsable, rejected.ID, DecisionInput{Comment: "Effectif insuffisant"})
	require.NoError(t, err)

	cancelled := createSubmitted(t, mgr, employe, "achat", achatPayload())
	_, err = mgr.ApproveStep(ctx, responsable, cancelled.ID, DecisionInput{})
	require.NoError(t, err)
	_, err = mgr.Cancel(ctx, employe, cancelled.ID)
	require.NoError(t, err)

	events, err := mgr.Ledger().EventsSince(ctx, since)
	require.NoError(t, err)

	got := make(map[string][]workflow.Event)
	for _, evt := range events {
		got[evt.InstanceID] = append(got[evt.InstanceID], evt)
	}

	require.NotContains(t, got, old.ID)
	require.NotContains(t, got, cancelled.ID)

	require.Len(t, got[submitted.ID], 1)
	require.Equal(t, workflow.EventSubmitted, got[submitted.ID][0].Kind)
	require.Equal(t, 1, got[submitted.ID][0].Step)

	require.Len(t, got[advanced.ID], 1)
	require.Equal(t, workflow.EventStepAdvanced, got[advanced.ID][0].Kind)
	require.Equal(t, 2, got[advanced.ID][0].Step)

	require.Len(t, got[approved.ID], 1, "the superseded step-1 advance is dropped")
	require.Equal(t, workflow.EventApproved, got[approved.ID][0].Kind)
	require.Equal(t, 2, got[approved.ID][0].Step)

	require.Len(t, got[rejected.ID], 1)
	require.Equal(t, workflow.EventRejected, got[rejected.ID][0].Kind)
	require.Equal(t, "Effectif insuffisant", got[rejected.ID][0].Comment)
	require.Equal(t, "conge", got[rejected.ID][0].WorkflowType)
}
