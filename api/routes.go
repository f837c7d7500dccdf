package api

import (
	"github.com/phistudioco/holdingmanager-sub001/internal/auth"
	"github.com/phistudioco/holdingmanager-sub001/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册业务路由，全部位于 /api 下并要求认证
func RegisterRoutes(router *gin.Engine, c *AppContainer, h *Handlers) {
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware(c.JWTService))

	registerWorkflowRoutes(api, h)
	registerAlertRoutes(api, c, h)
}

func registerWorkflowRoutes(api *gin.RouterGroup, h *Handlers) {
	read := auth.RequirePermission(auth.ModuleWorkflows, auth.ActionRead)
	create := auth.RequirePermission(auth.ModuleWorkflows, auth.ActionCreate)
	approve := auth.RequirePermission(auth.ModuleWorkflows, auth.ActionApprove)

	wf := api.Group("/workflows")
	{
		wf.POST("", create, h.Workflow.CreateInstance)
		// 静态路径需先于 :id 注册
		wf.GET("/pending", approve, h.Workflow.ListPending)
		wf.GET("/definitions", read, h.Workflow.ListDefinitions)

		wf.GET("/:id", read, h.Workflow.GetInstance)
		wf.GET("/:id/events", read, h.Workflow.Events)
		wf.POST("/:id/submit", create, h.Workflow.Submit)
		wf.POST("/:id/approve", approve, h.Workflow.Approve)
		wf.POST("/:id/reject", approve, h.Workflow.Reject)
		wf.POST("/:id/cancel", create, h.Workflow.Cancel)
	}
}

func registerAlertRoutes(api *gin.RouterGroup, c *AppContainer, h *Handlers) {
	read := auth.RequirePermission(auth.ModuleAlerts, auth.ActionRead)
	update := auth.RequirePermission(auth.ModuleAlerts, auth.ActionUpdate)

	alerts := api.Group("/alerts")
	{
		alerts.GET("", read, h.Alert.List)
		alerts.GET("/ws", read, h.AlertWS.Connect)
		alerts.POST("/scan",
			auth.RequirePermission(auth.ModuleAlerts, auth.ActionCreate),
			auth.RequireLevel(auth.RoleAdmin),
			middleware.RateLimitByCaller(c.ScanRateLimiter),
			h.Alert.Scan,
		)
		alerts.POST("/:id/read", update, h.Alert.MarkRead)
		alerts.POST("/:id/resolve", update, h.Alert.Resolve)
	}
}
