package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/invoices_backend/models"
	"github.com/gin-gonic/gin"
)

func listRemarksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		remarks, err := models.ListRemarks(c.Request.Context())
		if err != nil {
			respondError(c, "listRemarksHandler", err)
			return
		}
		respondOK(c, gin.H{"remarks": remarks})
	}
}

type addRemarkRequest struct {
	Name string `json:"name" form:"name" binding:"required"`
}

func addRemarkHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addRemarkRequest
		if err := c.ShouldBind(&req); err != nil {
			respondBindError(c, err)
			return
		}

		remark, err := models.AddRemark(c.Request.Context(), req.Name)
		if err != nil {
			respondError(c, "addRemarkHandler", err)
			return
		}
		respondOK(c, gin.H{"remark": remark})
	}
}

func deleteRemarkHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "invalid id"})
			return
		}

		remark, err := models.DeleteRemark(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deleteRemarkHandler", err)
			return
		}
		respondOK(c, gin.H{"deleted": remark.ID})
	}
}

type reorderRemarksRequest struct {
	Order []int `json:"order" form:"order[]" binding:"required"`
}

func reorderRemarksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reorderRemarksRequest
		if err := c.ShouldBind(&req); err != nil {
			respondBindError(c, err)
			return
		}

		remarks, err := models.ReorderRemarks(c.Request.Context(), req.Order)
		if err != nil {
			respondError(c, "reorderRemarksHandler", err)
			return
		}
		respondOK(c, gin.H{"remarks": remarks})
	}
}
