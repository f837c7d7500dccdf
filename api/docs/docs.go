// Package docs 审批工作流与告警 API 的 OpenAPI 文档。
// 内容与处理器上的 swag 注解保持一致，可用 `swag init -g cmd/server/main.go -o api/docs` 重新生成。
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "服务健康检查",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.HealthResponse"}}
                }
            }
        },
        "/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "服务就绪检查",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.ReadinessResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/api.ReadinessResponse"}}
                }
            }
        },
        "/api/workflows": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Workflows"],
                "summary": "创建工作流实例",
                "parameters": [
                    {"description": "类型与载荷", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/workflows.CreateInstanceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/common.APIResponse"}}
                }
            }
        },
        "/api/workflows/pending": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Workflows"],
                "summary": "待我审批",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/common.APIResponse"}}
                }
            }
        },
        "/api/workflows/definitions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Workflows"],
                "summary": "工作流类型列表",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/common.APIResponse"}}
                }
            }
        },
        "/api/workflows/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Workflows"],
                "summary": "查询工作流实例",
                "parameters": [
                    {"type": "string", "description": "实例 ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/common.APIResponse"}}
                }
            }
        },
        "/api/workflows/{id}/submit": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Workflows"],
                "summary": "提交工作流实例",
                "parameters": [
                    {"type": "string", "description": "实例 ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/common.APIResponse"}}
                }
            }
        },
        "/api/workflows/{id}/approve": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Workflows"],
                "summary": "批准当前步骤",
                "parameters": [
                    {"type": "string", "description": "实例 ID", "name": "id", "in": "path", "required": true},
                    {"description": "评论与期望步骤", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/workflows.DecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/common.APIResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/common.APIResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/common.APIResponse"}}
                }
            }
        },
        "/api/workflows/{id}/reject": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Workflows"],
                "summary": "驳回当前步骤",
                "parameters": [
                    {"type": "string", "description": "实例 ID", "name": "id", "in": "path", "required": true},
                    {"description": "驳回原因", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/workflows.DecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/common.APIResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/common.APIResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/common.APIResponse"}}
                }
            }
        },
        "/api/workflows/{id}/cancel": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Workflows"],
                "summary": "撤销工作流实例",
                "parameters": [
                    {"type": "string", "description": "实例 ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/common.APIResponse"}}
                }
            }
        },
        "/api/workflows/{id}/events": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["text/event-stream"],
                "tags": ["Workflows"],
                "summary": "订阅实例事件",
                "parameters": [
                    {"type": "string", "description": "实例 ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {}
            }
        },
        "/api/alerts": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Alerts"],
                "summary": "未解决告警列表",
                "parameters": [
                    {"type": "string", "description": "告警类型", "name": "type", "in": "query"},
                    {"type": "string", "description": "级别", "name": "severity", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/common.APIResponse"}}
                }
            }
        },
        "/api/alerts/{id}/read": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Alerts"],
                "summary": "标记告警已读",
                "parameters": [
                    {"type": "string", "description": "告警 ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/common.APIResponse"}}
                }
            }
        },
        "/api/alerts/{id}/resolve": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Alerts"],
                "summary": "解决告警",
                "parameters": [
                    {"type": "string", "description": "告警 ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/common.APIResponse"}}
                }
            }
        },
        "/api/alerts/scan": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Alerts"],
                "summary": "触发告警扫描",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/common.APIResponse"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/common.APIResponse"}},
                    "429": {"description": "Too Many Requests"}
                }
            }
        }
    },
    "definitions": {
        "api.HealthResponse": {
            "type": "object",
            "properties": {
                "service": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "api.ReadinessResponse": {
            "type": "object",
            "properties": {
                "database": {"type": "string"},
                "reason": {"type": "string"},
                "redis": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "common.APIResponse": {
            "type": "object",
            "properties": {
                "code": {"description": "业务状态码", "type": "integer"},
                "data": {"description": "响应数据"},
                "message": {"description": "提示信息", "type": "string"},
                "success": {"description": "是否成功", "type": "boolean"}
            }
        },
        "workflows.CreateInstanceRequest": {
            "type": "object",
            "required": ["type"],
            "properties": {
                "payload": {"type": "object", "additionalProperties": {}},
                "type": {"type": "string"}
            }
        },
        "workflows.DecisionRequest": {
            "type": "object",
            "properties": {
                "comment": {"type": "string"},
                "expectedStep": {"type": "integer", "minimum": 1}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo 文档元信息，供 gin-swagger 读取
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "HoldingManager Workflow & Alerts API",
	Description:      "审批工作流与到期告警服务",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
