// README: Dispatch handlers for create/get/assign/transition and live tracking.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sokoni/internal/modules/dispatch"
	"sokoni/internal/modules/tracking"
	"sokoni/internal/types"
)

type DispatchHandler struct {
	dispatch *dispatch.Service
	tracking *tracking.Service
}

func NewDispatchHandler(d *dispatch.Service, t *tracking.Service) *DispatchHandler {
	return &DispatchHandler{dispatch: d, tracking: t}
}

type createDispatchReq struct {
	OrderID         string      `json:"order_id"`
	Pickup          types.Point `json:"pickup"`
	Delivery        types.Point `json:"delivery"`
	PickupAddress   string      `json:"pickup_address"`
	DeliveryAddress string      `json:"delivery_address"`
}

type dispatchView struct {
	ID                    types.ID        `json:"id"`
	OrderID               types.ID        `json:"order_id"`
	PickupAddress         string          `json:"pickup_address"`
	DeliveryAddress       string          `json:"delivery_address"`
	Pickup                types.Point     `json:"pickup"`
	Delivery              types.Point     `json:"delivery"`
	DistanceKm            float64         `json:"distance_km"`
	Fee                   types.Money     `json:"fee"`
	Status                dispatch.Status `json:"status"`
	CourierID             *types.ID       `json:"courier_id,omitempty"`
	EstimatedDeliveryTime time.Time       `json:"estimated_delivery_time"`
	ActualDeliveryTime    *time.Time      `json:"actual_delivery_time,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

func dispatchToView(d *dispatch.Dispatch) dispatchView {
	return dispatchView{
		ID:                    d.ID,
		OrderID:               d.OrderID,
		PickupAddress:         d.PickupAddress,
		DeliveryAddress:       d.DeliveryAddress,
		Pickup:                d.Pickup,
		Delivery:              d.Delivery,
		DistanceKm:            d.DistanceKm,
		Fee:                   d.Fee,
		Status:                d.Status,
		CourierID:             d.CourierID,
		EstimatedDeliveryTime: d.EstimatedDeliveryTime,
		ActualDeliveryTime:    d.ActualDeliveryTime,
		CreatedAt:             d.CreatedAt,
	}
}

func (h *DispatchHandler) Create(c *gin.Context) {
	var req createDispatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	d, err := h.dispatch.Create(c.Request.Context(), dispatch.CreateCommand{
		OrderID:         types.ID(req.OrderID),
		Pickup:          req.Pickup,
		Delivery:        req.Delivery,
		PickupAddress:   req.PickupAddress,
		DeliveryAddress: req.DeliveryAddress,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dispatchToView(d))
}

func (h *DispatchHandler) Get(c *gin.Context) {
	d, err := h.dispatch.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispatchToView(d))
}

type assignReq struct {
	CourierID string `json:"courier_id"`
	ActorType string `json:"actor_type"`
}

func (h *DispatchHandler) Assign(c *gin.Context) {
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.CourierID == "" {
		writeError(c, http.StatusBadRequest, "missing courier_id")
		return
	}
	actor := req.ActorType
	if actor == "" {
		actor = "admin"
	}
	d, err := h.dispatch.Assign(c.Request.Context(), types.ID(c.Param("id")), types.ID(req.CourierID), actor)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispatchToView(d))
}

type dispatchTransitionReq struct {
	Target    string `json:"target"`
	ActorType string `json:"actor_type"`
	ActorID   string `json:"actor_id"`
}

func (h *DispatchHandler) Transition(c *gin.Context) {
	var req dispatchTransitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := dispatch.TransitionCommand{
		DispatchID: types.ID(c.Param("id")),
		Target:     dispatch.Status(req.Target),
		ActorType:  req.ActorType,
	}
	if req.ActorID != "" {
		id := types.ID(req.ActorID)
		cmd.ActorID = &id
	}
	d, err := h.dispatch.Transition(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispatchToView(d))
}

type pingReq struct {
	CourierID  string   `json:"courier_id"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	HeadingDeg *float64 `json:"heading_deg"`
	SpeedKmh   *float64 `json:"speed_kmh"`
	AccuracyM  *float64 `json:"accuracy_m"`
	RecordedAt string   `json:"recorded_at"`
}

func (h *DispatchHandler) RecordPing(c *gin.Context) {
	var req pingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	recordedAt, err := time.Parse(time.RFC3339, req.RecordedAt)
	if err != nil {
		writeError(c, http.StatusBadRequest, "recorded_at must be RFC 3339")
		return
	}
	p, err := h.tracking.RecordPing(c.Request.Context(), tracking.PingCommand{
		DispatchID: types.ID(c.Param("id")),
		CourierID:  types.ID(req.CourierID),
		Position:   types.Point{Lat: req.Lat, Lng: req.Lng},
		HeadingDeg: req.HeadingDeg,
		SpeedKmh:   req.SpeedKmh,
		AccuracyM:  req.AccuracyM,
		RecordedAt: recordedAt,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *DispatchHandler) Location(c *gin.Context) {
	prog, err := h.tracking.Progress(c.Request.Context(), types.ID(c.Param("id")), time.Now())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, prog)
}

func (h *DispatchHandler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	pings, err := h.tracking.History(c.Request.Context(), types.ID(c.Param("id")), limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pings": pings})
}
