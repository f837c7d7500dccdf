package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
)

// Registry 工作流配置注册表，启动时加载一次，之后只读
type Registry struct {
	entries map[string]*registryEntry
	types   []string
}

type registryEntry struct {
	def   Definition
	rules []*govaluate.EvaluableExpression
}

// NewRegistry 校验并注册工作流定义，任何非法定义都会导致失败
func NewRegistry(defs []Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, errors.New("至少需要一个工作流定义")
	}

	r := &Registry{entries: make(map[string]*registryEntry, len(defs))}
	prefixes := make(map[string]string, len(defs))

	for _, raw := range defs {
		def := raw.clone()
		def.Type = strings.TrimSpace(def.Type)
		def.Prefix = strings.TrimSpace(def.Prefix)

		if def.Type == "" {
			return nil, errors.New("工作流类型不能为空")
		}
		if _, exists := r.entries[def.Type]; exists {
			return nil, fmt.Errorf("工作流类型重复: %s", def.Type)
		}
		if !validPrefix(def.Prefix) {
			return nil, fmt.Errorf("工作流 %s 的编号前缀必须为三个大写字母: %q", def.Type, def.Prefix)
		}
		if other, exists := prefixes[def.Prefix]; exists {
			return nil, fmt.Errorf("编号前缀 %s 同时被 %s 与 %s 使用", def.Prefix, other, def.Type)
		}
		if err := normalizeSteps(&def); err != nil {
			return nil, err
		}

		entry := &registryEntry{def: def}
		for _, rule := range def.Rules {
			expr, err := govaluate.NewEvaluableExpression(rule)
			if err != nil {
				return nil, fmt.Errorf("工作流 %s 的校验规则 %q 无法编译: %w", def.Type, rule, err)
			}
			entry.rules = append(entry.rules, expr)
		}

		prefixes[def.Prefix] = def.Type
		r.entries[def.Type] = entry
		r.types = append(r.types, def.Type)
	}

	sort.Strings(r.types)
	return r, nil
}

// DefaultRegistry 使用内置定义构建注册表
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultDefinitions())
	if err != nil {
		panic(fmt.Sprintf("内置工作流定义非法: %v", err))
	}
	return r
}

// LoadRegistry 从文件加载；path 为空时使用内置定义
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return NewRegistry(DefaultDefinitions())
	}
	defs, err := LoadDefinitions(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry(defs)
}

// DefinitionFor 返回类型定义的副本
func (r *Registry) DefinitionFor(workflowType string) (Definition, error) {
	entry, ok := r.entries[workflowType]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownWorkflowType, workflowType)
	}
	return entry.def.clone(), nil
}

// Types 已注册类型（按字母排序）
func (r *Registry) Types() []string {
	return append([]string(nil), r.types...)
}

// Definitions 全部定义，顺序同 Types
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, r.entries[t].def.clone())
	}
	return out
}

// ValidatePayload 检查必填字段并执行校验规则
func (r *Registry) ValidatePayload(workflowType string, payload map[string]any) error {
	entry, ok := r.entries[workflowType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWorkflowType, workflowType)
	}

	var missing []string
	for _, field := range entry.def.RequiredFields {
		if isBlank(payload[field]) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: champs manquants: %s", ErrInvalidPayload, strings.Join(missing, ", "))
	}

	for i, expr := range entry.rules {
		result, err := expr.Evaluate(payload)
		if err != nil {
			return fmt.Errorf("%w: règle %q: %v", ErrInvalidPayload, entry.def.Rules[i], err)
		}
		if ok, _ := result.(bool); !ok {
			return fmt.Errorf("%w: règle non respectée: %s", ErrInvalidPayload, entry.def.Rules[i])
		}
	}
	return nil
}

func normalizeSteps(def *Definition) error {
	if len(def.Steps) == 0 {
		return fmt.Errorf("工作流 %s 至少需要一个审批步骤", def.Type)
	}
	sort.SliceStable(def.Steps, func(i, j int) bool {
		return def.Steps[i].Ordinal < def.Steps[j].Ordinal
	})
	for i := range def.Steps {
		step := &def.Steps[i]
		if step.Ordinal != i+1 {
			return fmt.Errorf("工作流 %s 的步骤序号必须从 1 开始连续，第 %d 个步骤为 %d", def.Type, i+1, step.Ordinal)
		}
		if !step.RequiredRole.Valid() {
			return fmt.Errorf("工作流 %s 步骤 %d 的角色未知: %q", def.Type, step.Ordinal, step.RequiredRole)
		}
		if strings.TrimSpace(step.Name) == "" {
			step.Name = fmt.Sprintf("Étape %d", step.Ordinal)
		}
	}
	return nil
}

func validPrefix(prefix string) bool {
	if len(prefix) != 3 {
		return false
	}
	for _, c := range prefix {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}
