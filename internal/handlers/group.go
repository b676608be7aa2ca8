package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"research-chat/internal/middleware"
	"research-chat/internal/models"
	"research-chat/internal/services"
)

// GroupHandler manages group endpoints. Every mutation is audited.
type GroupHandler struct {
	groups         *services.GroupService
	audit          Auditor
	maxUploadBytes int64
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groups *services.GroupService, auditor Auditor, maxUploadBytes int64) *GroupHandler {
	return &GroupHandler{groups: groups, audit: auditor, maxUploadBytes: maxUploadBytes}
}

// CreateGroup creates a group administered by the caller.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name        string   `json:"name" binding:"required"`
		Description string   `json:"description"`
		Members     []string `json:"members"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}

	principal := middleware.Principal(c)
	group, err := h.groups.CreateGroup(c.Request.Context(), principal.ID, principal.Role, req.Name, req.Description, req.Members)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "group created", "group:"+group.ID)
	c.JSON(http.StatusCreated, gin.H{"success": true, "group": group})
}

// UpdateGroup changes name and/or description.
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}

	groupID := c.Param("groupId")
	group, err := h.groups.UpdateGroup(c.Request.Context(), c.GetString(middleware.UserIDKey), groupID, models.GroupUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "group updated", "group:"+groupID)
	c.JSON(http.StatusOK, gin.H{"success": true, "group": group})
}

// UpdateGroupPhoto replaces the group photo from the multipart field "photo".
func (h *GroupHandler) UpdateGroupPhoto(c *gin.Context) {
	upload, closer, err := formUpload(c, "photo", h.maxUploadBytes)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	defer closer.Close()

	groupID := c.Param("groupId")
	url, group, err := h.groups.UpdateGroupPhoto(c.Request.Context(), c.GetString(middleware.UserIDKey), groupID, upload)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "group photo updated", "group:"+groupID)
	c.JSON(http.StatusOK, gin.H{"success": true, "photo": url, "group": group})
}

// AddMember adds a user to the group.
func (h *GroupHandler) AddMember(c *gin.Context) {
	var req struct {
		MemberID string `json:"memberId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "memberId is required")
		return
	}

	groupID := c.Param("groupId")
	group, err := h.groups.AddMember(c.Request.Context(), c.GetString(middleware.UserIDKey), groupID, req.MemberID)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "member added: "+req.MemberID, "group:"+groupID)
	c.JSON(http.StatusOK, gin.H{"success": true, "group": group})
}

// RemoveMember removes a non-admin member.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	groupID := c.Param("groupId")
	memberID := c.Param("memberId")
	group, err := h.groups.RemoveMember(c.Request.Context(), c.GetString(middleware.UserIDKey), groupID, memberID)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "member removed: "+memberID, "group:"+groupID)
	c.JSON(http.StatusOK, gin.H{"success": true, "group": group})
}

// LeaveGroup removes the caller from the group. The admin cannot leave.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	groupID := c.Param("groupId")
	if err := h.groups.LeaveGroup(c.Request.Context(), c.GetString(middleware.UserIDKey), groupID); err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "member left", "group:"+groupID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
