package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/invoices_backend/models"
	"bitbucket.org/mmdatafocus/invoices_backend/models/reports"
	"github.com/gin-gonic/gin"
)

func logFilterFromQuery(c *gin.Context) *models.LogFilter {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return &models.LogFilter{
		User:      c.Query("user"),
		Action:    c.Query("action"),
		Query:     c.Query("q"),
		DateRange: c.Query("daterange"),
		Limit:     limit,
		Offset:    offset,
	}
}

func listLogEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := models.ListLogEntries(c.Request.Context(), logFilterFromQuery(c))
		if err != nil {
			respondError(c, "listLogEntriesHandler", err)
			return
		}
		respondOK(c, gin.H{
			"entries": page.Entries,
			"total":   page.Total,
			"limit":   page.Limit,
			"offset":  page.Offset,
		})
	}
}

func exportLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := reports.ExportLogExcel(c.Request.Context(), logFilterFromQuery(c))
		if err != nil {
			respondError(c, "exportLogHandler", err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+reports.LogAttachmentName+`"`)
		c.Data(http.StatusOK, reports.XlsxContentType, data)
	}
}
