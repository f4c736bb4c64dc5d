package main

import (
	"errors"
	"net/http"

	"bitbucket.org/mmdatafocus/invoices_backend/config"
	"bitbucket.org/mmdatafocus/invoices_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// respondBindError turns a gin binding failure into a 400. Tag failures get a
// per-field breakdown so the frontend can highlight the offending inputs.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{
			"ok":     false,
			"msg":    "invalid request",
			"errors": utils.ProcessValidationErrors(verrs),
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "invalid request"})
}

// respondError maps the service error taxonomy onto status codes. Unknown
// errors become a 500 with a generic message; the detail goes to the log.
func respondError(c *gin.Context, funcName string, err error) {
	var ve *utils.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": ve.Msg})
		return
	}
	var ce *utils.ConflictError
	if errors.As(err, &ce) {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "msg": ce.Msg, "references": ce.References})
		return
	}
	var ae *utils.AuthError
	if errors.As(err, &ae) {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "msg": ae.Msg, "rejected": ae.Rejected})
		return
	}
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "msg": "not found"})
		return
	}

	config.LogError(config.GetLogger(), "main", funcName, "unhandled error", c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "msg": "internal error"})
}

func respondOK(c *gin.Context, payload gin.H) {
	body := gin.H{"ok": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}
