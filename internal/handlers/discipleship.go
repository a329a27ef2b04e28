package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shepherdhq/shepherd-backend/internal/services"
	"github.com/shepherdhq/shepherd-backend/internal/types"
)

type DiscipleshipHandler struct {
	discipleshipService services.DiscipleshipService
}

func NewDiscipleshipHandler(discipleshipService services.DiscipleshipService) *DiscipleshipHandler {
	return &DiscipleshipHandler{discipleshipService: discipleshipService}
}

type assignMentorRequest struct {
	DiscipleID uuid.UUID `json:"disciple_id" binding:"required"`
	MentorID   uuid.UUID `json:"mentor_id" binding:"required"`
}

func (dh *DiscipleshipHandler) AssignMentor(c *gin.Context) {
	var req assignMentorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	edge, err := dh.discipleshipService.AssignMentor(c.Request.Context(), req.DiscipleID, req.MentorID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"discipleship": edge})
}

type endMentorshipRequest struct {
	DiscipleID uuid.UUID                `json:"disciple_id" binding:"required"`
	Status     types.DiscipleshipStatus `json:"status"`
}

func (dh *DiscipleshipHandler) EndMentorship(c *gin.Context) {
	var req endMentorshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Status == "" {
		req.Status = types.DiscipleshipInactive
	}
	edge, err := dh.discipleshipService.EndMentorship(c.Request.Context(), req.DiscipleID, req.Status)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"discipleship": edge})
}
