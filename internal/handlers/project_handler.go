package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "github.com/CodeSyncr/collaborative-expense-tracker/internal/errors"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/pagination"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/services"
)

// ProjectHandler handles project-related requests.
type ProjectHandler struct {
	projectService   services.ProjectServicer
	analyticsService services.AnalyticsServicer
	auditService     services.AuditServicer
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projectService services.ProjectServicer, analyticsService services.AnalyticsServicer, auditService services.AuditServicer) *ProjectHandler {
	return &ProjectHandler{
		projectService:   projectService,
		analyticsService: analyticsService,
		auditService:     auditService,
	}
}

// CreateProjectRequest represents the request payload for creating a project.
type CreateProjectRequest struct {
	Name          string                 `json:"name" binding:"required,min=1,max=100"`
	ProjectType   models.ProjectType     `json:"project_type" binding:"required,project_type"`
	Currency      string                 `json:"currency" binding:"omitempty,iso4217"`
	TotalBudget   decimal.Decimal        `json:"total_budget" binding:"money"`
	MonthlyBudget *decimal.Decimal       `json:"monthly_budget" binding:"omitempty,money"`
	Members       []services.MemberInput `json:"members" binding:"omitempty,dive"`
}

// UpdateProjectRequest represents the request payload for updating a project.
// Omitted fields keep their stored values.
type UpdateProjectRequest struct {
	Name          *string                 `json:"name" binding:"omitempty,min=1,max=100"`
	Currency      *string                 `json:"currency" binding:"omitempty,iso4217"`
	TotalBudget   *decimal.Decimal        `json:"total_budget" binding:"omitempty,money"`
	MonthlyBudget *decimal.Decimal        `json:"monthly_budget" binding:"omitempty,money"`
	Members       *[]services.MemberInput `json:"members" binding:"omitempty,dive"`
	Version       *int                    `json:"version" binding:"omitempty,min=1"`
}

// CreateProject handles the creation of a new project.
// @Summary     Create a project
// @Description Create a project from a template. Shared projects need contributions that add up to the total budget.
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateProjectRequest true "Project details"
// @Success     201 {object} models.Project "Project created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "Member not found or contribution mismatch"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	project, err := h.projectService.CreateProject(c.Request.Context(), sess, services.CreateProjectInput{
		Name:          req.Name,
		ProjectType:   req.ProjectType,
		Currency:      req.Currency,
		TotalBudget:   req.TotalBudget,
		MonthlyBudget: req.MonthlyBudget,
		Members:       req.Members,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(sess.UserID, "CREATE_PROJECT", "project", project.ID, c.ClientIP(),
		map[string]interface{}{"name": project.Name, "type": project.ProjectType, "members": len(project.Members)})

	c.JSON(http.StatusCreated, gin.H{"project": project})
}

// GetProjects handles listing the caller's projects.
// @Summary     Get projects
// @Description Get a paginated list of projects the caller is a member of, newest first
// @Tags        projects
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 50, max 200)"
// @Success     200 {object} pagination.PageResponse[models.Project] "Paginated projects"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /projects [get]
func (h *ProjectHandler) GetProjects(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.projectService.ListUserProjects(c.Request.Context(), sess, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetProject handles fetching one project.
// @Summary     Get a project
// @Tags        projects
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Project ID"
// @Success     200 {object} models.Project "Project"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	project, err := h.projectService.GetProject(c.Request.Context(), sess, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.Header("ETag", strconv.Itoa(project.Version))
	c.JSON(http.StatusOK, gin.H{"project": project})
}

// expectedVersion reads the version a client based its edit on, from
// If-Match or the request body.
func expectedVersion(c *gin.Context, body *int) (*int, error) {
	if h := strings.Trim(c.GetHeader("If-Match"), `" `); h != "" && h != "*" {
		v, err := strconv.Atoi(strings.TrimPrefix(h, "W/"))
		if err != nil || v < 1 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "If-Match must carry a project version")
		}
		return &v, nil
	}
	return body, nil
}

// UpdateProject handles a partial project update.
// @Summary     Update a project
// @Description Merge the given fields into the project. Send If-Match with the project version to reject concurrent edits.
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id       path   string               true  "Project ID"
// @Param       If-Match header string               false "Expected project version"
// @Param       request  body   UpdateProjectRequest true  "Fields to update"
// @Success     200 {object} models.Project "Updated project"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Failure     409 {object} ErrorResponse "Stale write"
// @Failure     422 {object} ErrorResponse "Member not found or contribution mismatch"
// @Router      /projects/{id} [put]
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	version, err := expectedVersion(c, req.Version)
	if err != nil {
		respondWithError(c, err)
		return
	}

	in := services.UpdateProjectInput{
		Name:            req.Name,
		Currency:        req.Currency,
		TotalBudget:     req.TotalBudget,
		MonthlyBudget:   req.MonthlyBudget,
		Members:         req.Members,
		ExpectedVersion: version,
	}

	current, err := h.projectService.GetProject(c.Request.Context(), sess, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.projectService.ValidateUpdate(current, in); err != nil {
		respondWithError(c, err)
		return
	}

	project, err := h.projectService.UpdateProject(c.Request.Context(), sess, id, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	changes := map[string]interface{}{"version": project.Version}
	if req.Name != nil {
		changes["name"] = *req.Name
	}
	if req.TotalBudget != nil {
		changes["total_budget"] = req.TotalBudget.String()
	}
	if req.Members != nil {
		changes["members"] = len(*req.Members)
	}
	h.auditService.Log(sess.UserID, "UPDATE_PROJECT", "project", project.ID, c.ClientIP(), changes)

	c.Header("ETag", strconv.Itoa(project.Version))
	c.JSON(http.StatusOK, gin.H{"project": project})
}

// DeleteProject handles deleting a project with all of its expenses.
// @Summary     Delete a project
// @Tags        projects
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Project ID"
// @Success     200 {object} map[string]string "Project deleted"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.projectService.DeleteProject(c.Request.Context(), sess, id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(sess.UserID, "DELETE_PROJECT", "project", id, c.ClientIP(), nil)
	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}

// GetSummary returns the budget summary of a project.
// @Summary     Get project summary
// @Description Totals, remaining budget, per-member utilization and category split. Monthly projects accept month and year.
// @Tags        projects
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string true  "Project ID"
// @Param       month query int    false "Month (1-12)"
// @Param       year  query int    false "Year"
// @Success     200 {object} analytics.Summary "Summary"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id}/summary [get]
func (h *ProjectHandler) GetSummary(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	period, err := parsePeriod(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.analyticsService.ProjectSummary(c.Request.Context(), sess, id, period)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
