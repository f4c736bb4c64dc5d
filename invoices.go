package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/invoices_backend/models"
	"bitbucket.org/mmdatafocus/invoices_backend/models/reports"
	"bitbucket.org/mmdatafocus/invoices_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func invoiceFilterFromQuery(c *gin.Context) *models.InvoiceFilter {
	return &models.InvoiceFilter{
		Product:   c.Query("product"),
		RemarkId:  c.Query("remark_id"),
		Currency:  c.Query("currency"),
		Status:    c.Query("status"),
		From:      c.Query("from"),
		To:        c.Query("to"),
		DateRange: c.Query("daterange"),
	}
}

func listInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := models.ListInvoices(c.Request.Context(), invoiceFilterFromQuery(c))
		if err != nil {
			respondError(c, "listInvoicesHandler", err)
			return
		}
		respondOK(c, gin.H{"invoices": rows})
	}
}

func filterOptionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		options, err := models.GetFilterOptions(c.Request.Context())
		if err != nil {
			respondError(c, "filterOptionsHandler", err)
			return
		}
		respondOK(c, gin.H{"filters": options})
	}
}

// bindInvoiceForm reads the multipart invoice form. A small inline file is
// streamed to the bucket here; bigger files arrive through the signed-URL
// path and reach us as a ready file_key.
func bindInvoiceForm(c *gin.Context) (*models.NewInvoice, error) {
	var input models.NewInvoice
	if err := c.ShouldBind(&input); err != nil {
		return nil, utils.NewValidationError("invalid request")
	}
	if input.FileKey != "" {
		key := utils.ExtractObjectKeyFromURL(input.FileKey)
		if key == "" || !strings.HasPrefix(key, "invoices/") {
			return nil, utils.NewValidationError("invalid file key")
		}
		input.FileKey = key
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		// no inline file in this request
		return &input, nil
	}
	if fileHeader.Size > maxUploadSizeBytes {
		return nil, utils.NewValidationError("file size exceeds 5MB limit; use the signed upload flow")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	objectKey := invoiceObjectKey(fileHeader.Filename)
	if _, err := utils.UploadFileToGCS(c.Request.Context(), objectKey, f); err != nil {
		return nil, utils.NewValidationError("%s", err)
	}

	input.FileKey = objectKey
	input.FileName = fileHeader.Filename
	return &input, nil
}

// invoiceObjectKey shards uploads by day: invoices/YYYY/MM/DD/<uuid><ext>
func invoiceObjectKey(fileName string) string {
	now := time.Now()
	ext := strings.ToLower(filepath.Ext(fileName))
	return path.Join(
		"invoices",
		now.Format("2006"), now.Format("01"), now.Format("02"),
		uuid.NewString()+ext,
	)
}

func createInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		input, err := bindInvoiceForm(c)
		if err != nil {
			respondError(c, "createInvoiceHandler", err)
			return
		}

		invoice, err := models.CreateInvoice(c.Request.Context(), input)
		if err != nil {
			respondError(c, "createInvoiceHandler", err)
			return
		}
		respondOK(c, gin.H{"invoice": invoice.Row()})
	}
}

func updateInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "invalid id"})
			return
		}

		input, err := bindInvoiceForm(c)
		if err != nil {
			respondError(c, "updateInvoiceHandler", err)
			return
		}

		invoice, err := models.UpdateInvoice(c.Request.Context(), id, input)
		if err != nil {
			respondError(c, "updateInvoiceHandler", err)
			return
		}
		respondOK(c, gin.H{"invoice": invoice.Row()})
	}
}

func deleteInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "invalid id"})
			return
		}

		invoice, err := models.DeleteInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, "deleteInvoiceHandler", err)
			return
		}
		respondOK(c, gin.H{"deleted": invoice.ID})
	}
}

type changeStatusRequest struct {
	Status string `json:"status" form:"status" binding:"required"`
}

func changeInvoiceStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "invalid id"})
			return
		}

		var req changeStatusRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "status is required"})
			return
		}

		invoice, err := models.ChangeInvoiceStatus(c.Request.Context(), id, req.Status)
		if err != nil {
			respondError(c, "changeInvoiceStatusHandler", err)
			return
		}
		respondOK(c, gin.H{"invoice": invoice.Row()})
	}
}

func chartsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := reports.GetInvoiceCharts(c.Request.Context(), c.Query("currency"))
		if err != nil {
			respondError(c, "chartsHandler", err)
			return
		}
		respondOK(c, gin.H{"charts": report})
	}
}

func exportInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := reports.ExportInvoicesExcel(c.Request.Context(), invoiceFilterFromQuery(c))
		if err != nil {
			respondError(c, "exportInvoicesHandler", err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+reports.InvoicesAttachmentName+`"`)
		c.Data(http.StatusOK, reports.XlsxContentType, data)
	}
}

func downloadInvoiceFileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "invalid id"})
			return
		}

		invoice, err := models.GetInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, "downloadInvoiceFileHandler", err)
			return
		}
		if invoice.FileKey == "" {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "msg": "invoice has no attachment"})
			return
		}

		client, err := utils.GetGCSClient(c.Request.Context())
		if err != nil {
			respondError(c, "downloadInvoiceFileHandler", err)
			return
		}
		defer client.Close()

		bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
		if bucket == "" {
			respondError(c, "downloadInvoiceFileHandler", fmt.Errorf("GCS_BUCKET is required"))
			return
		}

		obj := client.Bucket(bucket).Object(invoice.FileKey)
		attrs, err := obj.Attrs(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "msg": "attachment not found"})
			return
		}
		reader, err := obj.NewReader(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "msg": "attachment not found"})
			return
		}
		defer reader.Close()

		if attrs.ContentType != "" {
			c.Writer.Header().Set("Content-Type", attrs.ContentType)
		}
		if attrs.Size > 0 {
			c.Writer.Header().Set("Content-Length", fmt.Sprintf("%d", attrs.Size))
		}
		c.Writer.Header().Set("Content-Disposition", `attachment; filename="`+invoice.DownloadFilename()+`"`)
		c.Status(http.StatusOK)
		_, _ = io.Copy(c.Writer, reader)
	}
}
