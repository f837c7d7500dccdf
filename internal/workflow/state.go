package workflow

// transitions 允许的状态迁移
var transitions = map[Status][]Status{
	StatusDraft:      {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusInProgress, StatusApproved, StatusRejected, StatusCancelled},
}

// IsTerminal 终态不可再变更
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// Valid 是否为已知状态
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition 检查 from -> to 是否合法
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
