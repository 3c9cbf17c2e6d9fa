package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "github.com/CodeSyncr/collaborative-expense-tracker/internal/errors"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/pagination"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/services"
)

// receiptField is the multipart field receipts are uploaded under.
const receiptField = "files"

// ExpenseHandler handles expense-related requests.
type ExpenseHandler struct {
	expenseService services.ExpenseServicer
	auditService   services.AuditServicer
	maxUploadBytes int64
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(expenseService services.ExpenseServicer, auditService services.AuditServicer, maxUploadBytes int64) *ExpenseHandler {
	return &ExpenseHandler{
		expenseService: expenseService,
		auditService:   auditService,
		maxUploadBytes: maxUploadBytes,
	}
}

// CreateExpenseRequest represents a JSON expense without receipts.
type CreateExpenseRequest struct {
	Description string          `json:"description" binding:"required,max=500"`
	Amount      decimal.Decimal `json:"amount" binding:"money"`
	Category    string          `json:"category" binding:"max=50"`
	CreatedAt   *time.Time      `json:"created_at"`
}

// CreateExpenseForm represents a multipart expense with receipt files.
type CreateExpenseForm struct {
	Description string `form:"description" binding:"required,max=500"`
	Amount      string `form:"amount" binding:"required"`
	Category    string `form:"category" binding:"max=50"`
	CreatedAt   string `form:"created_at"`
}

// ReceiptRef identifies a stored receipt in an update request.
type ReceiptRef struct {
	URL  string `json:"image_url" binding:"required"`
	Path string `json:"image_path" binding:"required"`
	Name string `json:"name" binding:"max=255"`
	Type string `json:"type" binding:"max=100"`
}

// UpdateExpenseRequest represents a partial expense update. A receipts array,
// even an empty one, replaces the stored set.
type UpdateExpenseRequest struct {
	Description *string          `json:"description" binding:"omitempty,min=1,max=500"`
	Amount      *decimal.Decimal `json:"amount" binding:"omitempty,money"`
	Category    *string          `json:"category" binding:"omitempty,max=50"`
	CreatedAt   *time.Time       `json:"created_at"`
	Receipts    *[]ReceiptRef    `json:"receipts" binding:"omitempty,dive"`
}

// parseExpenseTime accepts RFC 3339 timestamps or plain dates.
func parseExpenseTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "created_at must be a date or RFC 3339 timestamp")
}

// limitBody caps the request body and turns an overflow into INVALID_INPUT.
func (h *ExpenseHandler) limitBody(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
}

func (h *ExpenseHandler) uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("Upload exceeds the %d MB limit", h.maxUploadBytes>>20))
	}
	return bindError(err)
}

// readReceipts loads the files of a multipart form into memory.
func readReceipts(headers []*multipart.FileHeader) ([]services.ReceiptUpload, error) {
	files := make([]services.ReceiptUpload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err)
		}
		files = append(files, services.ReceiptUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

// CreateExpense handles adding an expense, with optional receipt files.
// @Summary     Add an expense
// @Description Add an expense to a project. Send multipart/form-data with one or more "files" parts to attach receipts, or JSON without receipts.
// @Tags        expenses
// @Accept      multipart/form-data
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id          path     string true  "Project ID"
// @Param       description formData string true  "Description"
// @Param       amount      formData string true  "Amount"
// @Param       category    formData string false "Category"
// @Param       created_at  formData string false "Date (YYYY-MM-DD or RFC 3339)"
// @Param       files       formData file   false "Receipt files"
// @Success     201 {object} models.Expense "Expense created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not a project member"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Failure     502 {object} ErrorResponse "Receipt storage failed"
// @Router      /projects/{id}/expenses [post]
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
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

	var (
		in    services.CreateExpenseInput
		files []services.ReceiptUpload
	)

	if c.ContentType() == gin.MIMEJSON {
		var req CreateExpenseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, bindError(err))
			return
		}
		in = services.CreateExpenseInput{
			Description: req.Description,
			Amount:      req.Amount,
			Category:    req.Category,
			CreatedAt:   req.CreatedAt,
		}
	} else {
		h.limitBody(c)
		var form CreateExpenseForm
		if err := c.ShouldBind(&form); err != nil {
			respondWithError(c, h.uploadError(err))
			return
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(form.Amount))
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be a number"))
			return
		}
		createdAt, err := parseExpenseTime(form.CreatedAt)
		if err != nil {
			respondWithError(c, err)
			return
		}
		in = services.CreateExpenseInput{
			Description: form.Description,
			Amount:      amount,
			Category:    form.Category,
			CreatedAt:   createdAt,
		}
		if mf, err := c.MultipartForm(); err == nil {
			if files, err = readReceipts(mf.File[receiptField]); err != nil {
				respondWithError(c, err)
				return
			}
		}
	}

	expense, err := h.expenseService.AddExpense(c.Request.Context(), sess, projectID, in, files)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(sess.UserID, "CREATE_EXPENSE", "expense", expense.ID, c.ClientIP(),
		map[string]interface{}{"project_id": projectID, "amount": expense.Amount.String(), "receipts": len(expense.Receipts)})

	c.JSON(http.StatusCreated, gin.H{"expense": expense})
}

// UploadReceipts stores receipt files without creating an expense. The
// returned receipts can be attached with an expense update.
// @Summary     Upload receipts
// @Tags        expenses
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       id    path     string true "Project ID"
// @Param       files formData file   true "Receipt files"
// @Success     201 {array}  models.Receipt "Stored receipts"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not a project member"
// @Failure     502 {object} ErrorResponse "Receipt storage failed"
// @Router      /projects/{id}/receipts [post]
func (h *ExpenseHandler) UploadReceipts(c *gin.Context) {
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

	h.limitBody(c)
	mf, err := c.MultipartForm()
	if err != nil {
		respondWithError(c, h.uploadError(err))
		return
	}
	files, err := readReceipts(mf.File[receiptField])
	if err != nil {
		respondWithError(c, err)
		return
	}

	receipts, err := h.expenseService.UploadReceipts(c.Request.Context(), sess, projectID, files)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"receipts": receipts})
}

// GetExpenses handles listing a project's expenses.
// @Summary     Get expenses
// @Description Get a paginated list of a project's expenses, newest first
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Project ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 50, max 200)"
// @Success     200 {object} pagination.PageResponse[models.Expense] "Paginated expenses"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id}/expenses [get]
func (h *ExpenseHandler) GetExpenses(c *gin.Context) {
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

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.expenseService.ListProjectExpenses(c.Request.Context(), sess, projectID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetExpense handles fetching one expense.
// @Summary     Get an expense
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id        path string true "Project ID"
// @Param       expenseId path string true "Expense ID"
// @Success     200 {object} models.Expense "Expense"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Router      /projects/{id}/expenses/{expenseId} [get]
func (h *ExpenseHandler) GetExpense(c *gin.Context) {
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
	expenseID, err := parsePathID(c, "expenseId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	expense, err := h.expenseService.GetExpense(c.Request.Context(), sess, projectID, expenseID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

// UpdateExpense handles editing an expense. Only its creator may edit it.
// @Summary     Update an expense
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path string               true "Project ID"
// @Param       expenseId path string               true "Expense ID"
// @Param       request   body UpdateExpenseRequest true "Fields to update"
// @Success     200 {object} models.Expense "Updated expense"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not the expense creator"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Router      /projects/{id}/expenses/{expenseId} [put]
func (h *ExpenseHandler) UpdateExpense(c *gin.Context) {
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
	expenseID, err := parsePathID(c, "expenseId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	in := services.UpdateExpenseInput{
		Description: req.Description,
		Amount:      req.Amount,
		Category:    req.Category,
		CreatedAt:   req.CreatedAt,
	}
	if req.Receipts != nil {
		receipts := make([]models.Receipt, 0, len(*req.Receipts))
		for _, r := range *req.Receipts {
			receipts = append(receipts, models.Receipt{URL: r.URL, Path: r.Path, Name: r.Name, Type: r.Type})
		}
		in.Receipts = &receipts
	}

	expense, err := h.expenseService.UpdateExpense(c.Request.Context(), sess, projectID, expenseID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	changes := map[string]interface{}{"project_id": projectID}
	if req.Description != nil {
		changes["description"] = *req.Description
	}
	if req.Amount != nil {
		changes["amount"] = req.Amount.String()
	}
	if req.Receipts != nil {
		changes["receipts"] = len(*req.Receipts)
	}
	h.auditService.Log(sess.UserID, "UPDATE_EXPENSE", "expense", expense.ID, c.ClientIP(), changes)

	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

// DeleteExpense handles deleting an expense and its receipt files.
// @Summary     Delete an expense
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id        path string true "Project ID"
// @Param       expenseId path string true "Expense ID"
// @Success     200 {object} map[string]string "Expense deleted"
// @Failure     403 {object} ErrorResponse "Not the expense creator"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     502 {object} ErrorResponse "Receipt storage failed, expense kept"
// @Router      /projects/{id}/expenses/{expenseId} [delete]
func (h *ExpenseHandler) DeleteExpense(c *gin.Context) {
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
	expenseID, err := parsePathID(c, "expenseId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.expenseService.DeleteExpense(c.Request.Context(), sess, projectID, expenseID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(sess.UserID, "DELETE_EXPENSE", "expense", expenseID, c.ClientIP(),
		map[string]interface{}{"project_id": projectID})
	c.JSON(http.StatusOK, gin.H{"message": "Expense deleted successfully"})
}
