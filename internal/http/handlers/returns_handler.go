// README: Return request handlers: customer filing plus the admin workflow.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sokoni/internal/modules/returns"
	"sokoni/internal/types"
)

type ReturnsHandler struct {
	returns *returns.Service
}

func NewReturnsHandler(svc *returns.Service) *ReturnsHandler {
	return &ReturnsHandler{returns: svc}
}

type returnView struct {
	ID          types.ID           `json:"id"`
	OrderID     types.ID           `json:"order_id"`
	Reason      string             `json:"reason"`
	Resolution  returns.Resolution `json:"resolution"`
	Message     string             `json:"message,omitempty"`
	Status      returns.Status     `json:"status"`
	AdminNotes  string             `json:"admin_notes,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	ResolvedAt  *time.Time         `json:"resolved_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

func returnToView(r *returns.ReturnRequest) returnView {
	return returnView{
		ID:          r.ID,
		OrderID:     r.OrderID,
		Reason:      r.Reason,
		Resolution:  r.Resolution,
		Message:     r.Message,
		Status:      r.Status,
		AdminNotes:  r.AdminNotes,
		CreatedAt:   r.CreatedAt,
		ResolvedAt:  r.ResolvedAt,
		CompletedAt: r.CompletedAt,
	}
}

func (h *ReturnsHandler) Eligibility(c *gin.Context) {
	e, err := h.returns.Eligibility(c.Request.Context(), types.ID(c.Param("id")), time.Now())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

type fileReturnReq struct {
	Reason     string `json:"reason"`
	Resolution string `json:"resolution"`
	Message    string `json:"message"`
}

func (h *ReturnsHandler) File(c *gin.Context) {
	var req fileReturnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.returns.File(c.Request.Context(), returns.FileCommand{
		OrderID:    types.ID(c.Param("id")),
		Reason:     req.Reason,
		Resolution: returns.Resolution(req.Resolution),
		Message:    req.Message,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, returnToView(r))
}

func (h *ReturnsHandler) ListByOrder(c *gin.Context) {
	list, err := h.returns.ListByOrder(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	views := make([]returnView, 0, len(list))
	for _, r := range list {
		views = append(views, returnToView(r))
	}
	c.JSON(http.StatusOK, gin.H{"returns": views})
}

type resolveReturnReq struct {
	AdminNotes string `json:"admin_notes"`
}

func (h *ReturnsHandler) Approve(c *gin.Context) {
	h.resolve(c, true)
}

func (h *ReturnsHandler) Reject(c *gin.Context) {
	h.resolve(c, false)
}

func (h *ReturnsHandler) resolve(c *gin.Context, approve bool) {
	// Admin notes are optional; an empty body is a valid resolution.
	var req resolveReturnReq
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.returns.Resolve(c.Request.Context(), types.ID(c.Param("id")), approve, req.AdminNotes)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, returnToView(r))
}

func (h *ReturnsHandler) Complete(c *gin.Context) {
	r, err := h.returns.Complete(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, returnToView(r))
}
