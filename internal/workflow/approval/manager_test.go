package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/internal/auth"
	"github.com/phistudioco/holdingmanager-sub001/internal/workflow"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	employe     = auth.Caller{UserID: "emp-1", Role: auth.RoleEmploye}
	responsable = auth.Caller{UserID: "resp-1", Role: auth.RoleResponsable}
	directeur   = auth.Caller{UserID: "dir-1", Role: auth.RoleDirecteur}
	admin       = auth.Caller{UserID: "adm-1", Role: auth.RoleAdmin}
)

type recordingAlerter struct {
	mu     sync.Mutex
	events []workflow.Event
	err    error
}

func (a *recordingAlerter) OnWorkflowEvent(_ context.Context, evt workflow.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, evt)
	return a.err
}

func (a *recordingAlerter) kinds() []workflow.EventKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]workflow.EventKind, 0, len(a.events))
	for _, evt := range a.events {
		out = append(out, evt.Kind)
	}
	return out
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 单连接串行化事务，避免内存库并发写锁
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *recordingAlerter, *fixedClock) {
	t.Helper()
	db := openTestDB(t)
	alerter := &recordingAlerter{}
	clock := &fixedClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	base := []ManagerOption{
		WithAlerter(alerter),
		WithClock(clock.Now),
		WithManagerLogger(zaptest.NewLogger(t)),
	}
	return NewManager(db, workflow.DefaultRegistry(), append(base, opts...)...), alerter, clock
}

func congePayload() map[string]any {
	return map[string]any{"date_debut": "2026-04-01", "date_fin": "2026-04-10", "motif": "Congés annuels"}
}

func achatPayload() map[string]any {
	return map[string]any{"fournisseur": "Bureau Vallée", "montant": 1250.0}
}

func recrutementPayload() map[string]any {
	return map[string]any{"poste": "Comptable", "filiale": "PHI Services"}
}

func createSubmitted(t *testing.T, mgr *Manager, submitter auth.Caller, workflowType string, payload map[string]any) *workflow.Instance {
	t.Helper()
	ctx := context.Background()
	inst, err := mgr.Create(ctx, submitter, workflowType, payload)
	require.NoError(t, err)
	inst, err = mgr.Submit(ctx, submitter, inst.ID)
	require.NoError(t, err)
	return inst
}

func TestCongeScenario(t *testing.T) {
	mgr, alerter, _ := newTestManager(t)
	ctx := context.Background()

	inst, err := mgr.Create(ctx, employe, "conge", congePayload())
	require.NoError(t, err)
	require.Equal(t, workflow.StatusDraft, inst.Status)
	require.Equal(t, 0, inst.CurrentStep)
	require.Equal(t, "CGE-2026-0001", inst.Numero)
	require.Nil(t, inst.SubmittedAt)

	inst, err = mgr.Submit(ctx, employe, inst.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusInProgress, inst.Status)
	require.Equal(t, 1, inst.CurrentStep)
	require.NotNil(t, inst.SubmittedAt)

	inst, err = mgr.ApproveStep(ctx, responsable, inst.ID, DecisionInput{Comment: "Bon repos"})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusApproved, inst.Status)
	require.NotNil(t, inst.FinalizedAt)

	history, err := mgr.History(ctx, inst.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusApproved, history.Instance.Status)
	require.Len(t, history.Records, 1)
	require.Equal(t, 1, history.Records[0].StepOrdinal)
	require.Equal(t, workflow.DecisionApproved, history.Records[0].Decision)
	require.Equal(t, responsable.UserID, history.Records[0].ApproverID)
	require.Equal(t, "Bon repos", history.Records[0].Comment)

	require.Equal(t, []workflow.EventKind{workflow.EventSubmitted, workflow.EventApproved}, alerter.kinds())
}

func TestApproveEveryStepInOrder(t *testing.T) {
	mgr, alerter, _ := newTestManager(t)
	ctx := context.Background()
	inst := createSubmitted(t, mgr, employe, "recrutement", recrutementPayload())

	approvers := []auth.Caller{responsable, directeur, admin}
	for i, approver := range approvers {
		var err error
		inst, err = mgr.ApproveStep(ctx, approver, inst.ID, DecisionInput{})
		require.NoError(t, err)
		if i < len(approvers)-1 {
			require.Equal(t, workflow.StatusInProgress, inst.Status)
			require.Equal(t, i+2, inst.CurrentStep)
		}
	}
	require.Equal(t, workflow.StatusApproved, inst.Status)

	records, err := mgr.Ledger().ListFor(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		require.Equal(t, i+1, rec.StepOrdinal)
		require.Equal(t, workflow.DecisionApproved, rec.Decision)
		require.Equal(t, approvers[i].UserID, rec.ApproverID)
	}

	require.Equal(t, []workflow.EventKind{
		workflow.EventSubmitted,
		workflow.EventStepAdvanced,
		workflow.EventStepAdvanced,
		workflow.EventApproved,
	}, alerter.kinds())
}

func TestRejectAtAnyStep(t *testing.T) {
	for _, rejectAt := range []int{1, 2} {
		t.Run(fmt.Sprintf("step_%d", rejectAt), func(t *testing.T) {
			mgr, _, _ := newTestManager(t)
			ctx := context.Background()
			inst := createSubmitted(t, mgr, employe, "achat", achatPayload())

			if rejectAt == 2 {
				var err error
				inst, err = mgr.ApproveStep(ctx, responsable, inst.ID, DecisionInput{})
				require.NoError(t, err)
			}

			inst, err := mgr.RejectStep(ctx, directeur, inst.ID, DecisionInput{Comment: "Budget épuisé"})
			require.NoError(t, err)
			require.Equal(t, workflow.StatusRejected, inst.Status)
			require.NotNil(t, inst.FinalizedAt)

			records, err := mgr.Ledger().ListFor(ctx, inst.ID)
			require.NoError(t, err)
			require.Len(t, records, rejectAt)
			require.Equal(t, workflow.DecisionRejected, records[rejectAt-1].Decision)

			_, err = mgr.ApproveStep(ctx, directeur, inst.ID, DecisionInput{})
			require.ErrorIs(t, err, workflow.ErrInvalidTransition)
			_, err = mgr.RejectStep(ctx, directeur, inst.ID, DecisionInput{Comment: "encore"})
			require.ErrorIs(t, err, workflow.ErrInvalidTransition)

			after, err := mgr.Ledger().ListFor(ctx, inst.ID)
			require.NoError(t, err)
			require.Len(t, after, rejectAt)
		})
	}
}

func TestRejectRequiresComment(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	inst := createSubmitted(t, mgr, employe, "conge", congePayload())

	_, err := mgr.RejectStep(context.Background(), responsable, inst.ID, DecisionInput{Comment: "   "})
	require.ErrorIs(t, err, workflow.ErrInvalidPayload)

	current, err := mgr.Get(context.Background(), inst.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusInProgress, current.Status)
}

func TestApproverBelowRequiredRoleIsForbidden(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()
	inst := createSubmitted(t, mgr, employe, "achat", achatPayload())

	_, err := mgr.ApproveStep(ctx, auth.Caller{UserID: "emp-2", Role: auth.RoleEmploye}, inst.ID, DecisionInput{})
	require.ErrorIs(t, err, workflow.ErrForbidden)

	records, err := mgr.Ledger().ListFor(ctx, inst.ID)
	require.NoError(t, err)
	require.Empty(t, records)

	inst, err = mgr.ApproveStep(ctx, responsable, inst.ID, DecisionInput{})
	require.NoError(t, err)
	require.Equal(t, 2, inst.CurrentStep)

	_, err = mgr.ApproveStep(ctx, auth.Caller{UserID: "resp-2", Role: auth.RoleResponsable}, inst.ID, DecisionInput{})
	require.ErrorIs(t, err, workflow.ErrForbidden)

	// un niveau supérieur au niveau requis suffit
	inst, err = mgr.ApproveStep(ctx, admin, inst.ID, DecisionInput{})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusApproved, inst.Status)
}

func TestInvalidTransitions(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	draft, err := mgr.Create(ctx, employe, "conge", congePayload())
	require.NoError(t, err)

	_, err = mgr.ApproveStep(ctx, responsable, draft.ID, DecisionInput{})
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = mgr.Submit(ctx, employe, draft.ID)
	require.NoError(t, err)
	_, err = mgr.Submit(ctx, employe, draft.ID)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	other, err := mgr.Create(ctx, employe, "conge", congePayload())
	require.NoError(t, err)
	cancelled, err := mgr.Cancel(ctx, employe, other.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.FinalizedAt)

	_, err = mgr.Submit(ctx, employe, other.ID)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
	_, err = mgr.Cancel(ctx, employe, other.ID)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	inProgress, err := mgr.Cancel(ctx, employe, draft.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCancelled, inProgress.Status)
}

func TestTerminalStatesAreFinal(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	approved := createSubmitted(t, mgr, employe, "conge", congePayload())
	_, err := mgr.ApproveStep(ctx, responsable, approved.ID, DecisionInput{})
	require.NoError(t, err)

	rejected := createSubmitted(t, mgr, employe, "conge", congePayload())
	_, err = mgr.RejectStep(ctx, responsable, rejected.ID, DecisionInput{Comment: "Période chargée"})
	require.NoError(t, err)

	cancelled := createSubmitted(t, mgr, employe, "conge", congePayload())
	_, err = mgr.Cancel(ctx, employe, cancelled.ID)
	require.NoError(t, err)

	for _, id := range []string{approved.ID, rejected.ID, cancelled.ID} {
		before, err := mgr.Get(ctx, id)
		require.NoError(t, err)

		_, err = mgr.Submit(ctx, employe, id)
		require.ErrorIs(t, err, workflow.ErrInvalidTransition)
		_, err = mgr.ApproveStep(ctx, admin, id, DecisionInput{})
		require.ErrorIs(t, err, workflow.ErrInvalidTransition)
		_, err = mgr.RejectStep(ctx, admin, id, DecisionInput{Comment: "non"})
		require.ErrorIs(t, err, workflow.ErrInvalidTransition)
		_, err = mgr.Cancel(ctx, admin, id)
		require.ErrorIs(t, err, workflow.ErrInvalidTransition)

		after, err := mgr.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, before.Status, after.Status)
		require.Equal(t, before.CurrentStep, after.CurrentStep)
	}
}

func TestConcurrentApprovalsOnSameStep(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()
	inst := createSubmitted(t, mgr, employe, "achat", achatPayload())

	const approvers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < approvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller := auth.Caller{UserID: fmt.Sprintf("resp-%d", i), Role: auth.RoleResponsable}
			_, err := mgr.ApproveStep(ctx, caller, inst.ID, DecisionInput{ExpectedStep: 1})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Len(t, failures, approvers-1)
	for _, err := range failures {
		require.ErrorIs(t, err, workflow.ErrConflict)
		require.ErrorIs(t, err, workflow.ErrDuplicateStepDecision)
		var conflict *workflow.ConflictError
		require.True(t, errors.As(err, &conflict))
		require.NotNil(t, conflict.Current)
		require.Equal(t, 2, conflict.Current.CurrentStep)
		require.True(t, workflow.IsRetryable(err))
	}

	current, err := mgr.Get(ctx, inst.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusInProgress, current.Status)
	require.Equal(t, 2, current.CurrentStep)

	records, err := mgr.Ledger().ListFor(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestStaleExpectedStep(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	inst := createSubmitted(t, mgr, employe, "conge", congePayload())
	_, err := mgr.ApproveStep(ctx, responsable, inst.ID, DecisionInput{ExpectedStep: 3})
	require.ErrorIs(t, err, workflow.ErrConflict)
	require.ErrorIs(t, err, workflow.ErrStepOutOfSequence)

	_, err = mgr.ApproveStep(ctx, responsable, inst.ID, DecisionInput{ExpectedStep: 1})
	require.NoError(t, err)

	// double clic après la décision finale
	_, err = mgr.ApproveStep(ctx, responsable, inst.ID, DecisionInput{ExpectedStep: 1})
	require.ErrorIs(t, err, workflow.ErrConflict)
	require.ErrorIs(t, err, workflow.ErrDuplicateStepDecision)

	_, err = mgr.ApproveStep(ctx, responsable, inst.ID, DecisionInput{})
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestApproverDecidesOncePerInstance(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()
	inst := createSubmitted(t, mgr, employe, "achat", achatPayload())

	// double clic d'un directeur, dont le rôle couvre les deux étapes
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.ApproveStep(ctx, directeur, inst.ID, DecisionInput{})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Len(t, failures, 1)
	require.True(t, errors.Is(failures[0], workflow.ErrForbidden) || errors.Is(failures[0], workflow.ErrConflict),
		"erreur inattendue: %v", failures[0])

	current, err := mgr.Get(ctx, inst.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusInProgress, current.Status)
	require.Equal(t, 2, current.CurrentStep)

	records, err := mgr.Ledger().ListFor(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = mgr.RejectStep(ctx, directeur, inst.ID, DecisionInput{Comment: "changement d'avis"})
	require.ErrorIs(t, err, workflow.ErrForbidden)

	other := auth.Caller{UserID: "dir-2", Role: auth.RoleDirecteur}
	inst, err = mgr.ApproveStep(ctx, other, inst.ID, DecisionInput{})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusApproved, inst.Status)
}

func TestSubmitterCannotDecideOwnRequest(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()
	inst := createSubmitted(t, mgr, directeur, "achat", achatPayload())

	_, err := mgr.ApproveStep(ctx, directeur, inst.ID, DecisionInput{})
	require.ErrorIs(t, err, workflow.ErrForbidden)

	inst, err = mgr.ApproveStep(ctx, responsable, inst.ID, DecisionInput{})
	require.NoError(t, err)
	require.Equal(t, 2, inst.CurrentStep)

	_, err = mgr.ApproveStep(ctx, directeur, inst.ID, DecisionInput{ExpectedStep: 2})
	require.ErrorIs(t, err, workflow.ErrForbidden)
	_, err = mgr.RejectStep(ctx, directeur, inst.ID, DecisionInput{Comment: "finalement non"})
	require.ErrorIs(t, err, workflow.ErrForbidden)

	pending, err := mgr.PendingFor(ctx, directeur)
	require.NoError(t, err)
	require.Empty(t, pending)

	inst, err = mgr.ApproveStep(ctx, admin, inst.ID, DecisionInput{})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusApproved, inst.Status)

	records, err := mgr.Ledger().ListFor(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestNumeroSequence(t *testing.T) {
	mgr, _, clock := newTestManager(t)
	ctx := context.Background()

	var numeros []string
	for i := 0; i < 3; i++ {
		inst, err := mgr.Create(ctx, employe, "achat", achatPayload())
		require.NoError(t, err)
		numeros = append(numeros, inst.Numero)
	}
	require.Equal(t, []string{"ACH-2026-0001", "ACH-2026-0002", "ACH-2026-0003"}, numeros)

	conge, err := mgr.Create(ctx, employe, "conge", congePayload())
	require.NoError(t, err)
	require.Equal(t, "CGE-2026-0001", conge.Numero)

	clock.Set(time.Date(2027, 1, 2, 8, 0, 0, 0, time.UTC))
	next, err := mgr.Create(ctx, employe, "achat", achatPayload())
	require.NoError(t, err)
	require.Equal(t, "ACH-2027-0001", next.Numero)

	require.Equal(t, "NDF-2026-12345", FormatNumero("NDF", 2026, 12345))
}

func TestCreateValidation(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx, employe, "voyage", map[string]any{})
	require.ErrorIs(t, err, workflow.ErrUnknownWorkflowType)

	_, err = mgr.Create(ctx, employe, "achat", map[string]any{"fournisseur": "Dell"})
	require.ErrorIs(t, err, workflow.ErrInvalidPayload)

	_, err = mgr.Create(ctx, employe, "achat", map[string]any{"fournisseur": "Dell", "montant": -5})
	require.ErrorIs(t, err, workflow.ErrInvalidPayload)

	_, err = mgr.Create(ctx, auth.Caller{Role: auth.RoleEmploye}, "conge", congePayload())
	require.ErrorIs(t, err, workflow.ErrInvalidPayload)

	_, err = mgr.Create(ctx, auth.Caller{UserID: "x", Role: "stagiaire"}, "conge", congePayload())
	require.ErrorIs(t, err, workflow.ErrForbidden)
}

func TestCreateKeepsPayloadCopy(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	payload := congePayload()

	inst, err := mgr.Create(context.Background(), employe, "conge", payload)
	require.NoError(t, err)
	payload["motif"] = "modifié"

	stored, err := mgr.Get(context.Background(), inst.ID)
	require.NoError(t, err)
	require.Equal(t, "Congés annuels", stored.Payload["motif"])
}

func TestUnknownInstance(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.ApproveStep(ctx, responsable, "missing", DecisionInput{})
	require.ErrorIs(t, err, workflow.ErrInstanceNotFound)
	_, err = mgr.Submit(ctx, employe, "missing")
	require.ErrorIs(t, err, workflow.ErrInstanceNotFound)
	_, err = mgr.History(ctx, "missing")
	require.ErrorIs(t, err, workflow.ErrInstanceNotFound)
}

func TestPendingFor(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	conge := createSubmitted(t, mgr, employe, "conge", congePayload())
	achat := createSubmitted(t, mgr, employe, "achat", achatPayload())
	_, err := mgr.ApproveStep(ctx, responsable, achat.ID, DecisionInput{})
	require.NoError(t, err)

	otherResp := auth.Caller{UserID: "resp-2", Role: auth.RoleResponsable}
	ownConge := createSubmitted(t, mgr, otherResp, "conge", congePayload())

	draft, err := mgr.Create(ctx, employe, "conge", congePayload())
	require.NoError(t, err)

	ids := func(list []workflow.Instance) []string {
		out := make([]string, 0, len(list))
		for _, inst := range list {
			out = append(out, inst.ID)
		}
		return out
	}

	pending, err := mgr.PendingFor(ctx, otherResp)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{conge.ID}, ids(pending))

	pending, err = mgr.PendingFor(ctx, responsable)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{conge.ID, ownConge.ID}, ids(pending))

	pending, err = mgr.PendingFor(ctx, directeur)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{conge.ID, achat.ID, ownConge.ID}, ids(pending))
	require.NotContains(t, ids(pending), draft.ID)

	pending, err = mgr.PendingFor(ctx, employe)
	require.NoError(t, err)
	require.Empty(t, pending)

	_, err = mgr.PendingFor(ctx, auth.Caller{})
	require.ErrorIs(t, err, workflow.ErrForbidden)
}

func TestAlerterFailureDoesNotFailTransition(t *testing.T) {
	mgr, alerter, _ := newTestManager(t)
	alerter.err = errors.New("alert store down")

	inst := createSubmitted(t, mgr, employe, "conge", congePayload())
	inst, err := mgr.ApproveStep(context.Background(), responsable, inst.ID, DecisionInput{})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusApproved, inst.Status)
	require.Len(t, alerter.kinds(), 2)
}

func TestManagerPublishesEvents(t *testing.T) {
	bus := NewEventBus(&EventBusConfig{BufferSize: 4})
	mgr, _, _ := newTestManager(t, WithEventBus(bus))
	ctx := context.Background()

	inst, err := mgr.Create(ctx, employe, "achat", achatPayload())
	require.NoError(t, err)
	ch, cancel := mgr.Subscribe(inst.ID)
	defer cancel()

	_, err = mgr.Submit(ctx, employe, inst.ID)
	require.NoError(t, err)
	_, err = mgr.ApproveStep(ctx, responsable, inst.ID, DecisionInput{Comment: "ok"})
	require.NoError(t, err)

	submitted := <-ch
	require.Equal(t, workflow.EventSubmitted, submitted.Kind)
	require.Equal(t, 1, submitted.Step)
	require.Equal(t, inst.Numero, submitted.Numero)

	advanced := <-ch
	require.Equal(t, workflow.EventStepAdvanced, advanced.Kind)
	require.Equal(t, 2, advanced.Step)
	require.Equal(t, responsable.UserID, advanced.ActorID)
	require.Equal(t, "achat", advanced.WorkflowType)
}

func TestCountInProgress(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	createSubmitted(t, mgr, employe, "conge", congePayload())
	createSubmitted(t, mgr, employe, "conge", congePayload())
	createSubmitted(t, mgr, employe, "achat", achatPayload())

	counts, err := mgr.CountInProgress(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"conge": 2, "achat": 1}, counts)
}
