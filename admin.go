package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/invoices_backend/models"
	"github.com/gin-gonic/gin"
)

func listProfilesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		profiles, err := models.ListProfiles(c.Request.Context(), c.Query("status"))
		if err != nil {
			respondError(c, "listProfilesHandler", err)
			return
		}
		respondOK(c, gin.H{"profiles": profiles})
	}
}

func setApprovalHandler(status models.ApprovalStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "invalid id"})
			return
		}

		profile, err := models.SetApprovalStatus(c.Request.Context(), id, status)
		if err != nil {
			respondError(c, "setApprovalHandler", err)
			return
		}
		respondOK(c, gin.H{"profile": profile})
	}
}
