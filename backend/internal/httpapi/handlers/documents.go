package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"noteserver/backend/internal/collab"
)

// DocumentHandlers exposes the REST side of the collaboration service:
// document lookup/creation, content loads, snapshots and revision catch-up.
// The realtime path stays on the websocket.
type DocumentHandlers struct {
	svc collab.Service
}

func NewDocumentHandlers(svc collab.Service) *DocumentHandlers {
	return &DocumentHandlers{svc: svc}
}

type createDocumentRequest struct {
	Title string `json:"title" binding:"required"`
}

func (h *DocumentHandlers) CreateDocument(c *gin.Context) {
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ownerID := c.GetUint64("userId")
	if err := h.svc.CreateDocument(c.Request.Context(), ownerID, req.Title); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "CREATE_DOC_FAILED"})
		return
	}
	docID, err := h.svc.GetDocumentID(c.Request.Context(), req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "GET_DOCID_FAILED"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "ownerId": ownerID, "title": req.Title})
}

func (h *DocumentHandlers) GetDocumentContent(c *gin.Context) {
	docID := c.Param("docID")
	if docID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing docID"})
		return
	}
	content, revID, err := h.svc.LoadDocumentContent(c.Request.Context(), docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, collab.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "DOCUMENT_NOT_FOUND"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "content": content, "revId": revID})
}

func (h *DocumentHandlers) SaveSnapshot(c *gin.Context) {
	docID := c.Param("docID")
	if err := h.svc.SaveSnapshot(c.Request.Context(), docID); err != nil {
		if errors.Is(err, collab.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "DOCUMENT_NOT_FOUND"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "saved": true})
}

// GetRevisions serves handshake catch-up over REST: ?from=<revId>&limit=<n>.
func (h *DocumentHandlers) GetRevisions(c *gin.Context) {
	docID := c.Param("docID")
	from, err := strconv.ParseInt(c.DefaultQuery("from", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	revs, err := h.svc.RevisionsSince(c.Request.Context(), docID, from, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "revisions": revs})
}
