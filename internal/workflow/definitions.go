package workflow

import (
	"fmt"
	"os"

	"github.com/phistudioco/holdingmanager-sub001/internal/auth"

	"gopkg.in/yaml.v3"
)

// StepDefinition 审批步骤
type StepDefinition struct {
	Ordinal      int       `yaml:"ordinal" json:"ordinal"`
	Name         string    `yaml:"name" json:"name"`
	RequiredRole auth.Role `yaml:"required_role" json:"requiredRole"`
}

// Definition 工作流类型定义，加载后不可变
type Definition struct {
	Type           string           `yaml:"type" json:"type"`
	Prefix         string           `yaml:"prefix" json:"prefix"`
	Label          string           `yaml:"label" json:"label"`
	RequiredFields []string         `yaml:"required_fields" json:"requiredFields"`
	Rules          []string         `yaml:"rules" json:"rules,omitempty"`
	Steps          []StepDefinition `yaml:"steps" json:"steps"`
}

// Step 按序号查找步骤
func (d Definition) Step(ordinal int) (StepDefinition, bool) {
	if ordinal < 1 || ordinal > len(d.Steps) {
		return StepDefinition{}, false
	}
	return d.Steps[ordinal-1], true
}

// LastOrdinal 最后一个步骤序号
func (d Definition) LastOrdinal() int {
	return len(d.Steps)
}

func (d Definition) clone() Definition {
	out := d
	out.RequiredFields = append([]string(nil), d.RequiredFields...)
	out.Rules = append([]string(nil), d.Rules...)
	out.Steps = append([]StepDefinition(nil), d.Steps...)
	return out
}

// definitionsFile YAML 文件结构
type definitionsFile struct {
	Workflows []Definition `yaml:"workflows"`
}

// LoadDefinitions 从 YAML 文件读取工作流定义
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取工作流定义失败: %w", err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions 解析 YAML 格式的工作流定义
func ParseDefinitions(data []byte) ([]Definition, error) {
	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("解析工作流定义失败: %w", err)
	}
	if len(file.Workflows) == 0 {
		return nil, fmt.Errorf("工作流定义为空")
	}
	return file.Workflows, nil
}

// DefaultDefinitions 内置的集团审批流程
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Type:           "conge",
			Prefix:         "CGE",
			Label:          "Demande de congé",
			RequiredFields: []string{"date_debut", "date_fin", "motif"},
			Steps: []StepDefinition{
				{Ordinal: 1, Name: "Validation responsable", RequiredRole: auth.RoleResponsable},
			},
		},
		{
			Type:           "achat",
			Prefix:         "ACH",
			Label:          "Demande d'achat",
			RequiredFields: []string{"fournisseur", "montant"},
			Rules:          []string{"montant > 0"},
			Steps: []StepDefinition{
				{Ordinal: 1, Name: "Validation responsable", RequiredRole: auth.RoleResponsable},
				{Ordinal: 2, Name: "Validation direction", RequiredRole: auth.RoleDirecteur},
			},
		},
		{
			Type:           "note_frais",
			Prefix:         "NDF",
			Label:          "Note de frais",
			RequiredFields: []string{"montant", "justificatif"},
			Rules:          []string{"montant > 0"},
			Steps: []StepDefinition{
				{Ordinal: 1, Name: "Validation responsable", RequiredRole: auth.RoleResponsable},
				{Ordinal: 2, Name: "Validation direction", RequiredRole: auth.RoleDirecteur},
			},
		},
		{
			Type:           "recrutement",
			Prefix:         "REC",
			Label:          "Demande de recrutement",
			RequiredFields: []string{"poste", "filiale"},
			Steps: []StepDefinition{
				{Ordinal: 1, Name: "Validation responsable", RequiredRole: auth.RoleResponsable},
				{Ordinal: 2, Name: "Validation direction", RequiredRole: auth.RoleDirecteur},
				{Ordinal: 3, Name: "Validation administration", RequiredRole: auth.RoleAdmin},
			},
		},
		{
			Type:           "contrat",
			Prefix:         "CTR",
			Label:          "Validation de contrat",
			RequiredFields: []string{"client", "montant", "date_debut"},
			Rules:          []string{"montant > 0"},
			Steps: []StepDefinition{
				{Ordinal: 1, Name: "Validation direction", RequiredRole: auth.RoleDirecteur},
				{Ordinal: 2, Name: "Validation administration", RequiredRole: auth.RoleAdmin},
			},
		},
	}
}
