package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/phistudioco/holdingmanager-sub001/internal/workflow"
)

// 规则名称，同时作为指标标签
const (
	RuleInvoiceOverdue   = "invoice_overdue"
	RuleInvoiceDueSoon   = "invoice_due_soon"
	RuleContractExpiring = "contract_expiring"
	RuleWorkflowEvents   = "workflow_events"
)

// Candidate 规则产出的待写入告警
type Candidate struct {
	Type             string
	Severity         Severity
	Title            string
	Message          string
	LinkedEntityType string
	LinkedEntityID   string
	DueDate          *time.Time
	// Once 为 true 时已解决的同键告警也视为已存在，事件类告警只发一次
	Once bool
}

// Key 去重键
func (c Candidate) Key() DedupKey {
	return DedupKey{Type: c.Type, LinkedEntityType: c.LinkedEntityType, LinkedEntityID: c.LinkedEntityID}
}

// Rule 告警规则
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, now time.Time) ([]Candidate, error)
}

// Thresholds 各规则阈值（天）
type Thresholds struct {
	OverdueCriticalDays    int
	OverdueHighDays        int
	DueSoonDays            int
	DueSoonHighDays        int
	ContractExpiryDays     int
	ContractExpiryHighDays int
	WorkflowEventLookback  time.Duration
}

// DefaultThresholds 默认阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		OverdueCriticalDays:    30,
		OverdueHighDays:        14,
		DueSoonDays:            7,
		DueSoonHighDays:        3,
		ContractExpiryDays:     30,
		ContractExpiryHighDays: 7,
		WorkflowEventLookback:  7 * 24 * time.Hour,
	}
}

// DefaultRules 按固定顺序组装规则；数据源为 nil 的规则被跳过
func DefaultRules(invoices InvoiceSource, contracts ContractSource, events WorkflowEventSource, registry *workflow.Registry, th Thresholds) []Rule {
	var rules []Rule
	if invoices != nil {
		rules = append(rules,
			&OverdueInvoiceRule{Source: invoices, Thresholds: th},
			&DueSoonInvoiceRule{Source: invoices, Thresholds: th},
		)
	}
	if contracts != nil {
		rules = append(rules, &ContractExpiryRule{Source: contracts, Thresholds: th})
	}
	if events != nil {
		rules = append(rules, &WorkflowEventRule{Source: events, Registry: registry, Lookback: th.WorkflowEventLookback})
	}
	return rules
}

// startOfDay 当天 00:00 UTC
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween 两个日期相差的自然日数
func daysBetween(from, to time.Time) int {
	return int(startOfDay(to).Sub(startOfDay(from)).Hours() / 24)
}

func formatAmount(amount float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

func dateOf(t time.Time) *time.Time {
	d := startOfDay(t)
	return &d
}

// OverdueSeverity 逾期天数对应的级别
func OverdueSeverity(daysOverdue int, th Thresholds) Severity {
	switch {
	case daysOverdue > th.OverdueCriticalDays:
		return SeverityCritical
	case daysOverdue > th.OverdueHighDays:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// DueSoonSeverity 剩余天数对应的级别
func DueSoonSeverity(daysLeft int, th Thresholds) Severity {
	if daysLeft <= th.DueSoonHighDays {
		return SeverityHigh
	}
	return SeverityMedium
}

// ContractSeverity 合同剩余天数对应的级别，负数表示已过期
func ContractSeverity(daysLeft int, th Thresholds) Severity {
	switch {
	case daysLeft < 0:
		return SeverityCritical
	case daysLeft <= th.ContractExpiryHighDays:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// OverdueInvoiceRule 逾期发票
type OverdueInvoiceRule struct {
	Source     InvoiceSource
	Thresholds Thresholds
}

// Name 规则名
func (r *OverdueInvoiceRule) Name() string { return RuleInvoiceOverdue }

// Evaluate 实现 Rule
func (r *OverdueInvoiceRule) Evaluate(ctx context.Context, now time.Time) ([]Candidate, error) {
	invoices, err := r.Source.Overdue(ctx, startOfDay(now))
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(invoices))
	for _, inv := range invoices {
		days := daysBetween(inv.DueDate, now)
		out = append(out, Candidate{
			Type:     TypeInvoiceOverdue,
			Severity: OverdueSeverity(days, r.Thresholds),
			Title:    fmt.Sprintf("Facture %s en retard", inv.Numero),
			Message: fmt.Sprintf("La facture %s (%s) de %s est en retard de %d jour(s), échéance le %s.",
				inv.Numero, inv.ClientName, formatAmount(inv.Amount, inv.Currency), days, inv.DueDate.UTC().Format("02/01/2006")),
			LinkedEntityType: EntityInvoice,
			LinkedEntityID:   inv.ID,
			DueDate:          dateOf(inv.DueDate),
		})
	}
	return out, nil
}

// DueSoonInvoiceRule 即将到期的发票
type DueSoonInvoiceRule struct {
	Source     InvoiceSource
	Thresholds Thresholds
}

// Name 规则名
func (r *DueSoonInvoiceRule) Name() string { return RuleInvoiceDueSoon }

// Evaluate 实现 Rule
func (r *DueSoonInvoiceRule) Evaluate(ctx context.Context, now time.Time) ([]Candidate, error) {
	today := startOfDay(now)
	invoices, err := r.Source.DueBetween(ctx, today, today.AddDate(0, 0, r.Thresholds.DueSoonDays+1))
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(invoices))
	for _, inv := range invoices {
		days := daysBetween(now, inv.DueDate)
		out = append(out, Candidate{
			Type:     TypeInvoiceDueSoon,
			Severity: DueSoonSeverity(days, r.Thresholds),
			Title:    fmt.Sprintf("Facture %s à échéance dans %d jour(s)", inv.Numero, days),
			Message: fmt.Sprintf("La facture %s (%s) de %s arrive à échéance le %s.",
				inv.Numero, inv.ClientName, formatAmount(inv.Amount, inv.Currency), inv.DueDate.UTC().Format("02/01/2006")),
			LinkedEntityType: EntityInvoice,
			LinkedEntityID:   inv.ID,
			DueDate:          dateOf(inv.DueDate),
		})
	}
	return out, nil
}

// ContractExpiryRule 即将到期或已过期的生效合同
type ContractExpiryRule struct {
	Source     ContractSource
	Thresholds Thresholds
}

// Name 规则名
func (r *ContractExpiryRule) Name() string { return RuleContractExpiring }

// Evaluate 实现 Rule
func (r *ContractExpiryRule) Evaluate(ctx context.Context, now time.Time) ([]Candidate, error) {
	until := startOfDay(now).AddDate(0, 0, r.Thresholds.ContractExpiryDays+1)
	contracts, err := r.Source.ActiveEndingBefore(ctx, until)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(contracts))
	for _, c := range contracts {
		days := daysBetween(now, c.EndDate)
		title := fmt.Sprintf("Contrat %s expire dans %d jour(s)", c.Numero, days)
		if days < 0 {
			title = fmt.Sprintf("Contrat %s expiré depuis %d jour(s)", c.Numero, -days)
		}
		out = append(out, Candidate{
			Type:     TypeContractExpiring,
			Severity: ContractSeverity(days, r.Thresholds),
			Title:    title,
			Message: fmt.Sprintf("Le contrat %s « %s » avec %s se termine le %s.",
				c.Numero, c.Title, c.ClientName, c.EndDate.UTC().Format("02/01/2006")),
			LinkedEntityType: EntityContract,
			LinkedEntityID:   c.ID,
			DueDate:          dateOf(c.EndDate),
		})
	}
	return out, nil
}

// WorkflowEventRule 从审批账本补发遗漏的工作流告警
type WorkflowEventRule struct {
	Source   WorkflowEventSource
	Registry *workflow.Registry
	Lookback time.Duration
}

// Name 规则名
func (r *WorkflowEventRule) Name() string { return RuleWorkflowEvents }

// Evaluate 实现 Rule
func (r *WorkflowEventRule) Evaluate(ctx context.Context, now time.Time) ([]Candidate, error) {
	lookback := r.Lookback
	if lookback <= 0 {
		lookback = DefaultThresholds().WorkflowEventLookback
	}
	events, err := r.Source.EventsSince(ctx, now.Add(-lookback))
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, evt := range events {
		if c, ok := WorkflowCandidate(evt, r.Registry); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// WorkflowCandidate 工作流事件对应的告警；取消不产生告警
func WorkflowCandidate(evt workflow.Event, registry *workflow.Registry) (Candidate, bool) {
	label := evt.WorkflowType
	var step workflow.StepDefinition
	var hasStep bool
	if registry != nil {
		if def, err := registry.DefinitionFor(evt.WorkflowType); err == nil {
			if def.Label != "" {
				label = def.Label
			}
			step, hasStep = def.Step(evt.Step)
		}
	}

	switch evt.Kind {
	case workflow.EventSubmitted, workflow.EventStepAdvanced:
		msg := fmt.Sprintf("La demande %s (%s) attend une décision à l'étape %d.", evt.Numero, label, evt.Step)
		if hasStep {
			msg = fmt.Sprintf("La demande %s (%s) attend une décision à l'étape %d « %s » (rôle requis : %s).",
				evt.Numero, label, evt.Step, step.Name, step.RequiredRole)
		}
		return Candidate{
			Type:             TypeWorkflowStepPending,
			Severity:         SeverityMedium,
			Title:            fmt.Sprintf("Approbation requise : %s", evt.Numero),
			Message:          msg,
			LinkedEntityType: EntityWorkflowStep,
			LinkedEntityID:   fmt.Sprintf("%s:%d", evt.InstanceID, evt.Step),
			Once:             true,
		}, true
	case workflow.EventApproved:
		return Candidate{
			Type:             TypeWorkflowApproved,
			Severity:         SeverityLow,
			Title:            fmt.Sprintf("Demande approuvée : %s", evt.Numero),
			Message:          fmt.Sprintf("La demande %s (%s) a été approuvée.", evt.Numero, label),
			LinkedEntityType: EntityWorkflowInstance,
			LinkedEntityID:   evt.InstanceID,
			Once:             true,
		}, true
	case workflow.EventRejected:
		msg := fmt.Sprintf("La demande %s (%s) a été rejetée à l'étape %d.", evt.Numero, label, evt.Step)
		if evt.Comment != "" {
			msg += " Motif : " + evt.Comment
		}
		return Candidate{
			Type:             TypeWorkflowRejected,
			Severity:         SeverityMedium,
			Title:            fmt.Sprintf("Demande rejetée : %s", evt.Numero),
			Message:          msg,
			LinkedEntityType: EntityWorkflowInstance,
			LinkedEntityID:   evt.InstanceID,
			Once:             true,
		}, true
	default:
		return Candidate{}, false
	}
}
