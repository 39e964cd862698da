package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all routes for the tracker service. The paths are
// the JSON contract the CLI (and any other UI) consumes.
func RegisterRoutes(router *gin.Engine, api *API) {
	root := router.Group("/api")
	{
		companies := root.Group("/companies")
		{
			companies.GET("", api.ListCompaniesHandler)
			companies.POST("", api.CreateCompanyHandler)
			companies.POST("/import", api.ImportCompaniesHandler)
			companies.GET("/:name", api.GetCompanyHandler)
			companies.POST("/:name/research", api.ResearchHandler)
			companies.POST("/:name/reply_message", api.GenerateReplyHandler)
			companies.PUT("/:name/reply_message", api.UpdateReplyHandler)
			companies.POST("/:name/send_and_archive", api.SendAndArchiveHandler)
		}

		root.POST("/scan_recruiter_emails", api.ScanEmailsHandler)
		root.GET("/tasks", api.ListTasksHandler)
		root.GET("/tasks/:id", api.GetTaskHandler)
		root.GET("/workers", api.WorkersHandler)
	}
}
