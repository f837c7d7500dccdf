package auth

import (
	"fmt"
	"strings"
)

// ============ 角色层级 ============

// Role 控股集团角色标识
type Role string

const (
	RoleEmploye     Role = "employe"     // 员工
	RoleResponsable Role = "responsable" // 部门负责人
	RoleDirecteur   Role = "directeur"   // 总监
	RoleAdmin       Role = "admin"       // 管理员
	RoleSuperAdmin  Role = "super_admin" // 超级管理员
)

// RoleLevel 角色层级，数值越大权限越高
type RoleLevel int

const (
	RoleLevelUnknown     RoleLevel = 0
	RoleLevelEmploye     RoleLevel = 10
	RoleLevelResponsable RoleLevel = 20
	RoleLevelDirecteur   RoleLevel = 30
	RoleLevelAdmin       RoleLevel = 40
	RoleLevelSuperAdmin  RoleLevel = 50
)

var roleLevels = map[Role]RoleLevel{
	RoleEmploye:     RoleLevelEmploye,
	RoleResponsable: RoleLevelResponsable,
	RoleDirecteur:   RoleLevelDirecteur,
	RoleAdmin:       RoleLevelAdmin,
	RoleSuperAdmin:  RoleLevelSuperAdmin,
}

// Roles 按层级升序返回全部角色
func Roles() []Role {
	return []Role{RoleEmploye, RoleResponsable, RoleDirecteur, RoleAdmin, RoleSuperAdmin}
}

// Level 返回角色层级，未知角色为 RoleLevelUnknown
func (r Role) Level() RoleLevel {
	return roleLevels[r]
}

// Valid 是否为已知角色
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// ParseRole 解析角色名称，兼容大小写、重音与连字符写法（employé、Super-Admin）
func ParseRole(name string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.NewReplacer(
		"é", "e", "è", "e", "ê", "e",
		"-", "_", " ", "_",
	).Replace(normalized)
	if normalized == "superadmin" {
		normalized = string(RoleSuperAdmin)
	}
	role := Role(normalized)
	if !role.Valid() {
		return "", fmt.Errorf("未知角色: %q", name)
	}
	return role, nil
}

// RoleLevelAtLeast 判断 role 的层级是否不低于 required。
// 任一角色未知时返回 false。
func RoleLevelAtLeast(role, required Role) bool {
	if !role.Valid() || !required.Valid() {
		return false
	}
	return role.Level() >= required.Level()
}

// ============ 模块 × 操作权限表 ============

// Module 业务模块
type Module string

const (
	ModuleWorkflows    Module = "workflows"
	ModuleAlerts       Module = "alerts"
	ModuleInvoices     Module = "invoices"
	ModuleContracts    Module = "contracts"
	ModuleSubsidiaries Module = "subsidiaries"
	ModuleEmployees    Module = "employees"
	ModuleClients      Module = "clients"
	ModuleProjects     Module = "projects"
)

// Action 模块操作
type Action string

const (
	ActionRead    Action = "read"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
)

var allModules = []Module{
	ModuleWorkflows, ModuleAlerts, ModuleInvoices, ModuleContracts,
	ModuleSubsidiaries, ModuleEmployees, ModuleClients, ModuleProjects,
}

var allActions = []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionApprove}

// grant 描述某角色在某模块上新增的操作
type grant struct {
	module  Module
	actions []Action
}

// roleGrants 每个角色在下级角色基础上新增的授权
var roleGrants = map[Role][]grant{
	RoleEmploye: {
		{ModuleWorkflows, []Action{ActionRead, ActionCreate}},
		{ModuleAlerts, []Action{ActionRead}},
		{ModuleProjects, []Action{ActionRead}},
		{ModuleClients, []Action{ActionRead}},
	},
	RoleResponsable: {
		{ModuleWorkflows, []Action{ActionApprove}},
		{ModuleAlerts, []Action{ActionUpdate}},
		{ModuleInvoices, []Action{ActionRead, ActionCreate, ActionUpdate}},
		{ModuleContracts, []Action{ActionRead}},
		{ModuleEmployees, []Action{ActionRead}},
		{ModuleClients, []Action{ActionCreate, ActionUpdate}},
		{ModuleProjects, []Action{ActionCreate, ActionUpdate}},
	},
	RoleDirecteur: {
		{ModuleInvoices, []Action{ActionDelete, ActionApprove}},
		{ModuleContracts, []Action{ActionCreate, ActionUpdate, ActionApprove}},
		{ModuleSubsidiaries, []Action{ActionRead}},
		{ModuleEmployees, []Action{ActionCreate, ActionUpdate}},
		{ModuleClients, []Action{ActionDelete}},
		{ModuleProjects, []Action{ActionDelete, ActionApprove}},
	},
	RoleAdmin: {
		{ModuleWorkflows, []Action{ActionUpdate, ActionDelete}},
		{ModuleAlerts, []Action{ActionCreate, ActionDelete}},
		{ModuleContracts, []Action{ActionDelete}},
		{ModuleSubsidiaries, []Action{ActionCreate, ActionUpdate}},
		{ModuleEmployees, []Action{ActionDelete}},
	},
}

// permissionTable role -> module -> action 集合，初始化后只读
var permissionTable = buildPermissionTable()

func buildPermissionTable() map[Role]map[Module]map[Action]struct{} {
	table := make(map[Role]map[Module]map[Action]struct{}, len(roleLevels))
	inherited := make(map[Module]map[Action]struct{})

	for _, role := range Roles() {
		current := make(map[Module]map[Action]struct{}, len(allModules))
		for module, actions := range inherited {
			current[module] = copyActions(actions)
		}

		if role == RoleSuperAdmin {
			for _, module := range allModules {
				current[module] = make(map[Action]struct{}, len(allActions))
				for _, action := range allActions {
					current[module][action] = struct{}{}
				}
			}
		}

		for _, g := range roleGrants[role] {
			if current[g.module] == nil {
				current[g.module] = make(map[Action]struct{})
			}
			for _, action := range g.actions {
				current[g.module][action] = struct{}{}
			}
		}

		table[role] = current
		inherited = current
	}
	return table
}

func copyActions(src map[Action]struct{}) map[Action]struct{} {
	dst := make(map[Action]struct{}, len(src))
	for k := range src {
		dst[k] = struct{}{}
	}
	return dst
}

// HasPermission 查询静态权限表
func HasPermission(role Role, module Module, action Action) bool {
	modules, ok := permissionTable[role]
	if !ok {
		return false
	}
	_, ok = modules[module][action]
	return ok
}

// Caller 显式传递给业务层的调用方身份
type Caller struct {
	UserID string
	Role   Role
}

// Valid 调用方是否携带用户与已知角色
func (c Caller) Valid() bool {
	return strings.TrimSpace(c.UserID) != "" && c.Role.Valid()
}
