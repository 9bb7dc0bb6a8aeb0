package controllers

import (
	"net/http"
	"strconv"

	"groupbuy-service/middlewares"
	"groupbuy-service/models"
	"groupbuy-service/services"

	"github.com/gin-gonic/gin"
)

type OrderController struct {
	orders services.OrderServiceInterface
}

func NewOrderController(orders services.OrderServiceInterface) *OrderController {
	return &OrderController{orders: orders}
}

type checkoutRequest struct {
	Items           []models.OrderItem `json:"items" binding:"required"`
	FulfillmentType string             `json:"fulfillment_type" binding:"required,oneof=pickup delivery"`
	PickupPointID   *int64             `json:"pickup_point_id"`
}

type orderStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// CreateOrder is the cart-to-order glue: validates fulfillment, snapshots
// the items, and creates the order in the received state.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var ok bool
	defer func() { middlewares.RecordOrderOperation("create", ok) }()

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := oc.orders.Checkout(c.Request.Context(), services.CheckoutInput{
		UserID:          currentUserID(c),
		Items:           req.Items,
		FulfillmentType: req.FulfillmentType,
		PickupPointID:   req.PickupPointID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	ok = true
	c.JSON(http.StatusCreated, order)
}

// GetOrder returns an order to its owner or an admin.
func (oc *OrderController) GetOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	order, err := oc.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	if !isAdmin(c) && order.UserID != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your order"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// UpdateStatus moves an order along the transition graph. Admin only; the
// actor identity from the token lands in the audit trail.
func (oc *OrderController) UpdateStatus(c *gin.Context) {
	var ok bool
	defer func() { middlewares.RecordOrderOperation("change_status", ok) }()

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	var req orderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	order, err := oc.orders.ChangeStatus(c.Request.Context(), services.ChangeStatusInput{
		OrderID:   orderID,
		NewStatus: req.Status,
		ActorID:   currentUserID(c),
		ActorName: currentUserName(c),
		Reason:    req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	ok = true
	c.JSON(http.StatusOK, order)
}

// GetHistory returns the append-only status trail to the order's owner or an
// admin.
func (oc *OrderController) GetHistory(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	order, err := oc.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !isAdmin(c) && order.UserID != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your order"})
		return
	}

	history, err := oc.orders.History(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}
