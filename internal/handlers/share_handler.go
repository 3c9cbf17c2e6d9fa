package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/services"
)

// ShareHandler handles share links and the public read-only view.
type ShareHandler struct {
	shareService services.ShareServicer
	auditService services.AuditServicer
	baseURL      string
}

// NewShareHandler creates a new ShareHandler. baseURL is used to build the
// link returned to the owner.
func NewShareHandler(shareService services.ShareServicer, auditService services.AuditServicer, baseURL string) *ShareHandler {
	return &ShareHandler{shareService: shareService, auditService: auditService, baseURL: baseURL}
}

// ShareLinkResponse carries a project's share token and link.
type ShareLinkResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

func (h *ShareHandler) link(token string) ShareLinkResponse {
	return ShareLinkResponse{Token: token, URL: h.baseURL + "/shared/" + token}
}

// GetShareLink returns the project's share link, creating one on first use.
// @Summary     Get share link
// @Tags        sharing
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Project ID"
// @Success     200 {object} ShareLinkResponse "Share link"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id}/share [get]
func (h *ShareHandler) GetShareLink(c *gin.Context) {
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

	token, err := h.shareService.GetOrCreateShareToken(c.Request.Context(), sess, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.link(token))
}

// RegenerateShareLink replaces the project's share token, revoking the old link.
// @Summary     Regenerate share link
// @Tags        sharing
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Project ID"
// @Success     200 {object} ShareLinkResponse "New share link"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id}/share [post]
func (h *ShareHandler) RegenerateShareLink(c *gin.Context) {
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

	token, err := h.shareService.RegenerateShareToken(c.Request.Context(), sess, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(sess.UserID, "REGENERATE_SHARE_LINK", "project", id, c.ClientIP(), nil)
	c.JSON(http.StatusOK, h.link(token))
}

// GetShared serves the read-only view of a shared project. No authentication.
// @Summary     View shared project
// @Description Read-only project view resolved from a share token. Member emails are withheld.
// @Tags        sharing
// @Produce     json
// @Param       token path  string true  "Share token"
// @Param       month query int    false "Month (1-12)"
// @Param       year  query int    false "Year"
// @Success     200 {object} services.SharedView "Shared project"
// @Failure     404 {object} ErrorResponse "Shared project not found"
// @Router      /shared/{token} [get]
func (h *ShareHandler) GetShared(c *gin.Context) {
	period, err := parsePeriod(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	view, err := h.shareService.ResolveShared(c.Request.Context(), c.Param("token"), period)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, view)
}
