package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"groupbuy-service/middlewares"
	"groupbuy-service/models"
	"groupbuy-service/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps engine errors to HTTP statuses. Storage internals never
// reach the client.
func respondError(c *gin.Context, err error) {
	var invalidTransition *models.InvalidTransitionError

	switch {
	case errors.Is(err, models.ErrGroupNotFound),
		errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrGroupClosed),
		errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrStatusConflict):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &invalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidTransition.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(middlewares.CtxUserID)
}

func currentUserName(c *gin.Context) string {
	return c.GetString(middlewares.CtxUserName)
}

func isAdmin(c *gin.Context) bool {
	return c.GetString(middlewares.CtxRole) == utils.RoleAdmin
}

func parseID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
