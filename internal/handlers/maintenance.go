package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shepherdhq/shepherd-backend/internal/services"
)

type MaintenanceHandler struct {
	maintenanceService services.MaintenanceService
	propagationService services.PropagationService
}

func NewMaintenanceHandler(maintenanceService services.MaintenanceService, propagationService services.PropagationService) *MaintenanceHandler {
	return &MaintenanceHandler{
		maintenanceService: maintenanceService,
		propagationService: propagationService,
	}
}

func dryRunFlag(c *gin.Context) bool {
	raw := c.Query("dry_run")
	if raw == "" {
		return false
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return parsed
}

func (mh *MaintenanceHandler) DedupeMentors(c *gin.Context) {
	result, err := mh.maintenanceService.DedupeActiveMentors(c.Request.Context(), dryRunFlag(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, result)
}

func (mh *MaintenanceHandler) RebuildPrimaryUsers(c *gin.Context) {
	result, err := mh.maintenanceService.RebuildAllPrimaryUsers(c.Request.Context(), dryRunFlag(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, result)
}

type setPrimaryLeaderRequest struct {
	IsPrimaryLeader bool `json:"is_primary_leader"`
}

func (mh *MaintenanceHandler) SetPrimaryLeader(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req setPrimaryLeaderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := mh.propagationService.SetPrimaryLeader(c.Request.Context(), userID, req.IsPrimaryLeader); err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"updated": true})
}

type setPrimaryUserRequest struct {
	PrimaryUserID *uuid.UUID `json:"primary_user_id"`
}

func (mh *MaintenanceHandler) SetPrimaryUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req setPrimaryUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := mh.propagationService.SetPrimaryUser(c.Request.Context(), userID, req.PrimaryUserID); err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"updated": true})
}
