package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler serves project spreadsheets.
type ExportHandler struct {
	exportService services.ExportServicer
	auditService  services.AuditServicer
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(exportService services.ExportServicer, auditService services.AuditServicer) *ExportHandler {
	return &ExportHandler{exportService: exportService, auditService: auditService}
}

// ExportProject downloads a project's expenses and summary as an Excel workbook.
// @Summary     Export project
// @Tags        projects
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security    BearerAuth
// @Param       id path string true "Project ID"
// @Success     200 {file} binary "Workbook"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id}/export [get]
func (h *ExportHandler) ExportProject(c *gin.Context) {
	sess, err := getSession(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	projectID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	// Buffer the workbook so a failure can still produce a JSON error.
	var buf bytes.Buffer
	filename, err := h.exportService.ExportProject(c.Request.Context(), sess, projectID, &buf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(sess.UserID, "EXPORT_PROJECT", "project", projectID, c.ClientIP(), nil)

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
