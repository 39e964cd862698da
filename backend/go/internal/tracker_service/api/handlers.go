package api

import (
	"JobPilot/backend/go/pkg/models"
	"JobPilot/backend/go/internal/tracker_service/importer"
	"JobPilot/backend/go/internal/tracker_service/service"
	"JobPilot/backend/go/internal/tracker_service/store"
	"JobPilot/backend/go/pkg/logger"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// API provides handlers for the tracker service endpoints.
type API struct {
	service *service.TrackerService
	logger  *logger.Logger
}

// NewAPI creates a new API handler.
func NewAPI(service *service.TrackerService, logger *logger.Logger) *API {
	return &API{
		service: service,
		logger:  logger,
	}
}

// fail writes the uniform error body clients rely on: {"error": message}.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrCompanyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "company not found"})
	case errors.Is(err, service.ErrTaskInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrCompanyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoRecruiterMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ListCompaniesHandler handles GET /api/companies.
func (a *API) ListCompaniesHandler(c *gin.Context) {
	companies, err := a.service.ListCompanies(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, companies)
}

// GetCompanyHandler handles GET /api/companies/:name.
func (a *API) GetCompanyHandler(c *gin.Context) {
	company, err := a.service.GetCompany(c.Request.Context(), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, company)
}

// CreateCompanyRequest is the JSON body for POST /api/companies.
type CreateCompanyRequest struct {
	Name             string `json:"name" binding:"required"`
	RecruiterMessage string `json:"recruiter_message"`
}

// CreateCompanyHandler handles POST /api/companies.
func (a *API) CreateCompanyHandler(c *gin.Context) {
	var req CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	company := models.Company{Name: req.Name, RecruiterMessage: req.RecruiterMessage}
	if err := a.service.CreateCompany(c.Request.Context(), &company); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, company)
}

// taskAccepted writes the {task_id, status} body used by every task-submitting endpoint.
func taskAccepted(c *gin.Context, task *models.TaskRecord) {
	c.JSON(http.StatusAccepted, gin.H{"task_id": task.ID, "status": task.Status})
}

// ResearchHandler handles POST /api/companies/:name/research.
func (a *API) ResearchHandler(c *gin.Context) {
	task, err := a.service.StartResearch(c.Request.Context(), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	taskAccepted(c, task)
}

// GenerateReplyHandler handles POST /api/companies/:name/reply_message.
func (a *API) GenerateReplyHandler(c *gin.Context) {
	task, err := a.service.StartReplyGeneration(c.Request.Context(), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	taskAccepted(c, task)
}

// UpdateReplyRequest is the JSON body for PUT /api/companies/:name/reply_message.
type UpdateReplyRequest struct {
	Message string `json:"message" binding:"required"`
}

// UpdateReplyHandler handles PUT /api/companies/:name/reply_message.
func (a *API) UpdateReplyHandler(c *gin.Context) {
	var req UpdateReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	company, err := a.service.UpdateReplyMessage(c.Request.Context(), c.Param("name"), req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, company)
}

// SendAndArchiveHandler handles POST /api/companies/:name/send_and_archive.
func (a *API) SendAndArchiveHandler(c *gin.Context) {
	company, err := a.service.SendAndArchive(c.Request.Context(), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, company)
}

// ScanEmailsHandler handles POST /api/scan_recruiter_emails.
func (a *API) ScanEmailsHandler(c *gin.Context) {
	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := a.service.ScanRecruiterEmails(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	taskAccepted(c, task)
}

// GetTaskHandler handles GET /api/tasks/:id.
func (a *API) GetTaskHandler(c *gin.Context) {
	task, err := a.service.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	// Polling clients only get the status contract, not the task input.
	body := gin.H{"task_id": task.ID, "status": task.Status}
	if task.Error != "" {
		body["error"] = task.Error
	}
	if task.Result != nil {
		body["result"] = task.Result
	}
	c.JSON(http.StatusOK, body)
}

// ListTasksHandler handles GET /api/tasks. Like GetTaskHandler it returns
// the status contract only, never the task input.
func (a *API) ListTasksHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	tasks, err := a.service.ListTasks(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}

	body := make([]gin.H, 0, len(tasks))
	for _, task := range tasks {
		entry := gin.H{
			"task_id":      task.ID,
			"kind":         task.Kind,
			"status":       task.Status,
			"submitted_at": task.SubmittedAt,
		}
		if task.Company != "" {
			entry["company"] = task.Company
		}
		if task.Error != "" {
			entry["error"] = task.Error
		}
		body = append(body, entry)
	}
	c.JSON(http.StatusOK, body)
}

// ImportCompaniesHandler handles POST /api/companies/import (multipart xlsx upload).
func (a *API) ImportCompaniesHandler(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing spreadsheet upload 'file'"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	companies, err := importer.ParseCompanies(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	imported, skipped, err := a.service.ImportCompanies(c.Request.Context(), companies)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": imported, "skipped": skipped})
}

// WorkersHandler handles GET /api/workers.
func (a *API) WorkersHandler(c *gin.Context) {
	workers, err := a.service.Workers()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": workers})
}
