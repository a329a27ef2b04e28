package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shepherdhq/shepherd-backend/internal/network"
	"github.com/shepherdhq/shepherd-backend/internal/services"
)

type NetworkHandler struct {
	networkService services.NetworkService
}

func NewNetworkHandler(networkService services.NetworkService) *NetworkHandler {
	return &NetworkHandler{networkService: networkService}
}

func pathUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return uuid.Nil, false
	}
	return id, true
}

func (nh *NetworkHandler) UserIDs(c *gin.Context) {
	rootID, ok := pathUserID(c)
	if !ok {
		return
	}
	ids, err := nh.networkService.UserIDs(c.Request.Context(), rootID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"user_ids": ids})
}

func (nh *NetworkHandler) Tree(c *gin.Context) {
	rootID, ok := pathUserID(c)
	if !ok {
		return
	}
	maxDepth := network.DefaultMaxTreeDepth
	if raw := c.Query("max_depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("max_depth must be a positive integer"))
			return
		}
		maxDepth = parsed
	}
	tree, err := nh.networkService.BuildTree(c.Request.Context(), rootID, maxDepth)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"tree": tree})
}

func (nh *NetworkHandler) Stats(c *gin.Context) {
	rootID, ok := pathUserID(c)
	if !ok {
		return
	}
	stats, err := nh.networkService.Stats(c.Request.Context(), rootID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"stats": stats})
}
