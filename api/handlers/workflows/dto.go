package workflows

// CreateInstanceRequest 创建工作流实例
type CreateInstanceRequest struct {
	Type    string         `json:"type" binding:"required"`
	Payload map[string]any `json:"payload"`
}

// DecisionRequest 审批决定。expectedStep 为客户端看到的当前步骤，用于识别重复提交。
type DecisionRequest struct {
	Comment      string `json:"comment"`
	ExpectedStep int    `json:"expectedStep" binding:"omitempty,min=1"`
}

// DefinitionListResponse 已注册的工作流类型
type DefinitionListResponse struct {
	Types []string `json:"types"`
	Items any      `json:"items"`
}
