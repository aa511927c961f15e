package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/events"
	"splitledger/internal/models"
	"splitledger/internal/pagination"
	"splitledger/internal/services"
)

// GroupHandler handles group and membership requests.
type GroupHandler struct {
	groupService services.GroupServicer
	auditService services.AuditServicer
	publisher    events.Publisher
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(groupService services.GroupServicer, auditService services.AuditServicer, publisher events.Publisher) *GroupHandler {
	return &GroupHandler{groupService: groupService, auditService: auditService, publisher: publisher}
}

// CreateGroupRequest represents the request payload for creating a group
type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Description string `json:"description" binding:"max=500"`
}

// UpdateGroupRequest represents the request payload for updating a group
type UpdateGroupRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=2,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

// AddMemberRequest identifies the user to add by email or by ID.
type AddMemberRequest struct {
	Email  string `json:"email" binding:"omitempty,email"`
	UserID string `json:"user_id" binding:"omitempty,uuid"`
	Role   string `json:"role" binding:"omitempty,member_role"`
}

// UpdateMemberRoleRequest represents the request payload for changing a role
type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required,member_role"`
}

// CreateGroup handles the creation of a group; the caller becomes its admin
// @Summary     Create a group
// @Tags        groups
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateGroupRequest true "Group details"
// @Success     201 {object} models.Group "Group created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /groups [post]
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	group, err := h.groupService.CreateGroup(userID, req.Name, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(services.AuditEntry{
		UserID: userID, GroupID: group.ID, Action: "CREATE_GROUP", ResourceType: "group", ResourceID: group.ID,
		IPAddress: c.ClientIP(), Changes: map[string]interface{}{"name": group.Name},
	})

	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// GetUserGroups lists the caller's groups
// @Summary     List groups
// @Tags        groups
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Param       sort      query string false "newest (default) or oldest"
// @Success     200 {object} pagination.PageResponse[models.Group] "Paginated groups"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /groups [get]
func (h *GroupHandler) GetUserGroups(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.groupService.GetUserGroups(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetGroupByID returns a group with its members
// @Summary     Get a group
// @Tags        groups
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Group ID"
// @Success     200 {object} models.Group "Group"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /groups/{id} [get]
func (h *GroupHandler) GetGroupByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	groupID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	group, err := h.groupService.GetGroupByID(userID, groupID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"group": group})
}

// UpdateGroup changes a group's name or description
// @Summary     Update a group
// @Tags        groups
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Group ID"
// @Param       request body UpdateGroupRequest true "Fields to change"
// @Success     200 {object} models.Group "Updated group"
// @Failure     403 {object} ErrorResponse "Not a group admin"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /groups/{id} [put]
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	groupID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	group, err := h.groupService.UpdateGroup(userID, groupID, req.Name, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"group": group})
}

// DeleteGroup soft-deletes a group with all of its expenses
// @Summary     Delete a group
// @Tags        groups
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Group ID"
// @Success     200 {object} map[string]string "Group deleted"
// @Failure     403 {object} ErrorResponse "Not a group admin"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /groups/{id} [delete]
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	groupID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.groupService.DeleteGroup(userID, groupID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(services.AuditEntry{
		UserID: userID, GroupID: groupID, Action: "DELETE_GROUP", ResourceType: "group", ResourceID: groupID, IPAddress: c.ClientIP(),
	})
	publish(h.publisher, events.GroupDeleted, groupID, groupID, userID)

	c.JSON(http.StatusOK, gin.H{"message": "Group deleted successfully"})
}

// GetMembers lists a group's members
// @Summary     List members
// @Tags        members
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Group ID"
// @Success     200 {array}  models.GroupMember "Members"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /groups/{id}/members [get]
func (h *GroupHandler) GetMembers(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	groupID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	members, err := h.groupService.GetMembers(userID, groupID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// AddMember adds a registered user to a group
// @Summary     Add a member
// @Tags        members
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string           true "Group ID"
// @Param       request body AddMemberRequest true "User to add"
// @Success     201 {object} models.GroupMember "Member added"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not a group admin"
// @Failure     404 {object} ErrorResponse "User or group not found"
// @Failure     409 {object} ErrorResponse "Already a member"
// @Router      /groups/{id}/members [post]
func (h *GroupHandler) AddMember(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	groupID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	member, err := h.groupService.AddMember(userID, groupID, services.AddMemberInput{
		Email:  req.Email,
		UserID: req.UserID,
		Role:   models.MemberRole(req.Role),
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(services.AuditEntry{
		UserID: userID, GroupID: groupID, Action: "ADD_MEMBER", ResourceType: "group_member", ResourceID: member.UserID,
		IPAddress: c.ClientIP(), Changes: map[string]interface{}{"role": member.Role},
	})
	publish(h.publisher, events.MemberAdded, groupID, member.UserID, userID)

	c.JSON(http.StatusCreated, gin.H{"member": member})
}

// UpdateMemberRole promotes or demotes a member
// @Summary     Change a member's role
// @Tags        members
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                  true "Group ID"
// @Param       userId  path string                  true "Member user ID"
// @Param       request body UpdateMemberRoleRequest true "New role"
// @Success     200 {object} models.GroupMember "Updated member"
// @Failure     403 {object} ErrorResponse "Not a group admin"
// @Failure     404 {object} ErrorResponse "Member not found"
// @Failure     409 {object} ErrorResponse "Last admin"
// @Router      /groups/{id}/members/{userId} [put]
func (h *GroupHandler) UpdateMemberRole(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	groupID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	memberID, err := parsePathID(c, "userId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	member, err := h.groupService.UpdateMemberRole(userID, groupID, memberID, models.MemberRole(req.Role))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(services.AuditEntry{
		UserID: userID, GroupID: groupID, Action: "UPDATE_MEMBER_ROLE", ResourceType: "group_member", ResourceID: memberID,
		IPAddress: c.ClientIP(), Changes: map[string]interface{}{"role": req.Role},
	})

	c.JSON(http.StatusOK, gin.H{"member": member})
}

// RemoveMember removes a member who is not referenced by any expense
// @Summary     Remove a member
// @Tags        members
// @Produce     json
// @Security    BearerAuth
// @Param       id     path string true "Group ID"
// @Param       userId path string true "Member user ID"
// @Success     200 {object} map[string]string "Member removed"
// @Failure     403 {object} ErrorResponse "Not a group admin"
// @Failure     404 {object} ErrorResponse "Member not found"
// @Failure     409 {object} ErrorResponse "Last admin or member has expenses"
// @Router      /groups/{id}/members/{userId} [delete]
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	groupID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	memberID, err := parsePathID(c, "userId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.groupService.RemoveMember(userID, groupID, memberID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(services.AuditEntry{
		UserID: userID, GroupID: groupID, Action: "REMOVE_MEMBER", ResourceType: "group_member", ResourceID: memberID, IPAddress: c.ClientIP(),
	})
	publish(h.publisher, events.MemberRemoved, groupID, memberID, userID)

	c.JSON(http.StatusOK, gin.H{"message": "Member removed successfully"})
}

// LeaveGroup removes the caller from a group
// @Summary     Leave a group
// @Tags        members
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Group ID"
// @Success     200 {object} map[string]string "Left group"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Failure     409 {object} ErrorResponse "Last admin or member has expenses"
// @Router      /groups/{id}/leave [post]
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	groupID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.groupService.LeaveGroup(userID, groupID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(services.AuditEntry{
		UserID: userID, GroupID: groupID, Action: "LEAVE_GROUP", ResourceType: "group_member", ResourceID: userID, IPAddress: c.ClientIP(),
	})
	publish(h.publisher, events.MemberRemoved, groupID, userID, userID)

	c.JSON(http.StatusOK, gin.H{"message": "Left group successfully"})
}
