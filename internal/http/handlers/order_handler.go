// README: Order handlers for create/get/transition/rating.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sokoni/internal/modules/order"
	"sokoni/internal/types"
)

type OrderHandler struct {
	order *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{order: svc}
}

type orderItemReq struct {
	ProductID      string      `json:"product_id"`
	VendorID       string      `json:"vendor_id"`
	Name           string      `json:"name"`
	UnitPrice      types.Money `json:"unit_price"`
	Quantity       int         `json:"quantity"`
	ReturnEligible bool        `json:"return_eligible"`
}

type createOrderReq struct {
	CustomerID        string         `json:"customer_id"`
	Items             []orderItemReq `json:"items"`
	Subtotal          types.Money    `json:"subtotal"`
	Tax               types.Money    `json:"tax"`
	Discount          types.Money    `json:"discount"`
	Shipping          types.Money    `json:"shipping"`
	Total             types.Money    `json:"total"`
	FulfillmentMethod string         `json:"fulfillment_method"`
	PaymentStatus     string         `json:"payment_status"`
}

type orderView struct {
	ID                 types.ID     `json:"id"`
	CustomerID         types.ID     `json:"customer_id"`
	Items              []order.Item `json:"items"`
	Subtotal           types.Money  `json:"subtotal"`
	Tax                types.Money  `json:"tax"`
	Discount           types.Money  `json:"discount"`
	Shipping           types.Money  `json:"shipping"`
	Total              types.Money  `json:"total"`
	Status             order.Status `json:"status"`
	FulfillmentMethod  string       `json:"fulfillment_method"`
	PaymentStatus      string       `json:"payment_status"`
	ActualDeliveryDate *time.Time   `json:"actual_delivery_date,omitempty"`
	ProductRating      *int         `json:"product_rating,omitempty"`
	DeliveryRating     *int         `json:"delivery_rating,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}

func orderToView(o *order.Order) orderView {
	return orderView{
		ID:                 o.ID,
		CustomerID:         o.CustomerID,
		Items:              o.Items,
		Subtotal:           o.Subtotal,
		Tax:                o.Tax,
		Discount:           o.Discount,
		Shipping:           o.Shipping,
		Total:              o.Total,
		Status:             o.Status,
		FulfillmentMethod:  string(o.FulfillmentMethod),
		PaymentStatus:      o.PaymentStatus,
		ActualDeliveryDate: o.ActualDeliveryDate,
		ProductRating:      o.ProductRating,
		DeliveryRating:     o.DeliveryRating,
		CreatedAt:          o.CreatedAt,
	}
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	items := make([]order.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, order.Item{
			ProductID:      types.ID(it.ProductID),
			VendorID:       types.ID(it.VendorID),
			Name:           it.Name,
			UnitPrice:      it.UnitPrice,
			Quantity:       it.Quantity,
			ReturnEligible: it.ReturnEligible,
		})
	}
	o, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		CustomerID:        types.ID(req.CustomerID),
		Items:             items,
		Subtotal:          req.Subtotal,
		Tax:               req.Tax,
		Discount:          req.Discount,
		Shipping:          req.Shipping,
		Total:             req.Total,
		FulfillmentMethod: order.FulfillmentMethod(req.FulfillmentMethod),
		PaymentStatus:     req.PaymentStatus,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	// The completion code goes to the customer once, at creation. It is
	// never echoed on later reads.
	c.JSON(http.StatusCreated, gin.H{
		"order":           orderToView(o),
		"completion_code": o.CompletionCode,
	})
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.order.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderToView(o))
}

type orderTransitionReq struct {
	Target         string `json:"target"`
	ActorType      string `json:"actor_type"`
	ActorID        string `json:"actor_id"`
	Reason         string `json:"reason"`
	CompletionCode string `json:"completion_code"`
}

func (h *OrderHandler) Transition(c *gin.Context) {
	var req orderTransitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := order.TransitionCommand{
		OrderID:        types.ID(c.Param("id")),
		Target:         order.Status(req.Target),
		ActorType:      req.ActorType,
		Reason:         req.Reason,
		CompletionCode: req.CompletionCode,
	}
	if req.ActorID != "" {
		id := types.ID(req.ActorID)
		cmd.ActorID = &id
	}
	o, err := h.order.Transition(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderToView(o))
}

type ratingReq struct {
	ProductRating  int    `json:"product_rating"`
	DeliveryRating int    `json:"delivery_rating"`
	Comments       string `json:"comments"`
}

func (h *OrderHandler) SubmitRating(c *gin.Context) {
	var req ratingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.order.SubmitRating(c.Request.Context(), order.RatingCommand{
		OrderID:        types.ID(c.Param("id")),
		ProductRating:  req.ProductRating,
		DeliveryRating: req.DeliveryRating,
		Comments:       req.Comments,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderToView(o))
}
