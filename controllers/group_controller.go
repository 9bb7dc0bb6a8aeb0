package controllers

import (
	"net/http"
	"strconv"

	"groupbuy-service/middlewares"
	"groupbuy-service/services"

	"github.com/gin-gonic/gin"
)

type GroupController struct {
	groups services.GroupServiceInterface
}

func NewGroupController(groups services.GroupServiceInterface) *GroupController {
	return &GroupController{groups: groups}
}

type createGroupRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Quantity  int    `json:"quantity"`
}

type joinGroupRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Quantity int    `json:"quantity"`
}

type groupStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateGroup opens (or reuses) a campaign for a product, auto-joining the
// caller when contact details are supplied.
func (gc *GroupController) CreateGroup(c *gin.Context) {
	var ok bool
	defer func() { middlewares.RecordGroupOperation("create", ok) }()

	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}

	in := services.CreateGroupInput{ProductID: req.ProductID}
	if req.Phone != "" || req.Name != "" {
		userID := currentUserID(c)
		in.Join = &services.JoinInput{
			UserID:   &userID,
			Name:     req.Name,
			Phone:    req.Phone,
			Quantity: req.Quantity,
		}
	}

	group, err := gc.groups.CreateGroup(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	ok = true
	c.JSON(http.StatusCreated, group)
}

// JoinGroup admits the caller into an existing group.
func (gc *GroupController) JoinGroup(c *gin.Context) {
	var ok bool
	defer func() { middlewares.RecordGroupOperation("join", ok) }()

	groupID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group ID"})
		return
	}

	var req joinGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	group, err := gc.groups.JoinGroup(c.Request.Context(), groupID, services.JoinInput{
		UserID:   &userID,
		Name:     req.Name,
		Phone:    req.Phone,
		Quantity: req.Quantity,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	ok = true
	c.JSON(http.StatusOK, group)
}

// UpdateStatus is the admin override: unconditional status write, bypassing
// quota logic.
func (gc *GroupController) UpdateStatus(c *gin.Context) {
	var ok bool
	defer func() { middlewares.RecordGroupOperation("override_status", ok) }()

	groupID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group ID"})
		return
	}

	var req groupStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	group, err := gc.groups.OverrideStatus(c.Request.Context(), groupID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	ok = true
	c.JSON(http.StatusOK, group)
}

// ListMembers returns the group's members to admins and to members of the
// group itself.
func (gc *GroupController) ListMembers(c *gin.Context) {
	groupID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group ID"})
		return
	}

	members, err := gc.groups.Members(c.Request.Context(), groupID)
	if err != nil {
		respondError(c, err)
		return
	}

	if !isAdmin(c) {
		userID := currentUserID(c)
		isMember := false
		for _, m := range members {
			if m.UserID != nil && *m.UserID == userID {
				isMember = true
				break
			}
		}
		if !isMember {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this group"})
			return
		}
	}

	c.JSON(http.StatusOK, members)
}
