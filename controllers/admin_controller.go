package controllers

import (
	"net/http"

	"groupbuy-service/models"
	"groupbuy-service/repositories"
	"groupbuy-service/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type AdminController struct {
	orders   services.OrderServiceInterface
	products repositories.ProductRepositoryInterface
}

func NewAdminController(orders services.OrderServiceInterface, products repositories.ProductRepositoryInterface) *AdminController {
	return &AdminController{orders: orders, products: products}
}

// OverdueOrders lists orders whose pickup deadline has elapsed while still
// actionable.
func (ac *AdminController) OverdueOrders(c *gin.Context) {
	orders, err := ac.orders.OverdueOrders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetSettings returns the live workflow settings.
func (ac *AdminController) GetSettings(c *gin.Context) {
	settings, err := ac.orders.Settings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

type settingsRequest struct {
	Transitions          models.TransitionTable `json:"transitions" binding:"required"`
	AdminOverride        bool                   `json:"admin_override"`
	PickupWindowHours    int                    `json:"pickup_window_hours"`
	PickupToleranceHours int                    `json:"pickup_tolerance_hours"`
	AutoMarkOverdue      bool                   `json:"auto_mark_overdue"`
	OverdueAction        string                 `json:"overdue_action" binding:"required,oneof=hold release"`
}

// UpdateSettings replaces the workflow settings row. The engine validates the
// uploaded transition table against the closed status set.
func (ac *AdminController) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := ac.orders.UpdateSettings(c.Request.Context(), models.OrderSettings{
		Transitions:          req.Transitions,
		AdminOverride:        req.AdminOverride,
		PickupWindowHours:    req.PickupWindowHours,
		PickupToleranceHours: req.PickupToleranceHours,
		AutoMarkOverdue:      req.AutoMarkOverdue,
		OverdueAction:        req.OverdueAction,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, settings)
}

type productRequest struct {
	Name            string  `json:"name" binding:"required"`
	Description     string  `json:"description"`
	ImageURL        string  `json:"image_url"`
	OriginalPrice   string  `json:"original_price" binding:"required"`
	GroupPrice      string  `json:"group_price" binding:"required"`
	NowPrice        *string `json:"now_price"`
	MinPeople       int     `json:"min_people" binding:"required,min=1"`
	Stock           int     `json:"stock" binding:"min=0"`
	SaleMode        string  `json:"sale_mode" binding:"required,oneof=group now"`
	FulfillmentType string  `json:"fulfillment_type" binding:"required,oneof=pickup delivery"`
}

// CreateProduct adds a sellable item. Prices are exact decimal strings and
// the group price must not exceed the original price, or the group-buy value
// proposition breaks.
func (ac *AdminController) CreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	original, err := decimal.NewFromString(req.OriginalPrice)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "original_price is not a valid decimal"})
		return
	}
	group, err := decimal.NewFromString(req.GroupPrice)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_price is not a valid decimal"})
		return
	}
	if group.GreaterThan(original) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_price must not exceed original_price"})
		return
	}
	if req.NowPrice != nil {
		if _, err := decimal.NewFromString(*req.NowPrice); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "now_price is not a valid decimal"})
			return
		}
	}

	product, err := ac.products.CreateProduct(c.Request.Context(), &models.Product{
		Name:            req.Name,
		Description:     req.Description,
		ImageURL:        req.ImageURL,
		OriginalPrice:   original.StringFixed(2),
		GroupPrice:      group.StringFixed(2),
		NowPrice:        req.NowPrice,
		MinPeople:       req.MinPeople,
		Stock:           req.Stock,
		SaleMode:        req.SaleMode,
		FulfillmentType: req.FulfillmentType,
		Active:          true,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

// GetProduct returns a single product.
func (ac *AdminController) GetProduct(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product ID"})
		return
	}
	product, err := ac.products.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}
