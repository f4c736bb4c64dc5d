package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/invoices_backend/config"
	"bitbucket.org/mmdatafocus/invoices_backend/utils"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type uploadSignRequest struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

type uploadCompleteRequest struct {
	ObjectKey string `json:"objectKey"`
	MimeType  string `json:"mimeType"`
}

type uploadSignResponse struct {
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ObjectKey string            `json:"objectKey"`
	AccessURL string            `json:"accessUrl"`
	ExpiresAt string            `json:"expiresAt"`
}

type uploadCompleteResponse struct {
	ObjectKey          string `json:"objectKey"`
	AccessURL          string `json:"accessUrl"`
	ThumbnailURL       string `json:"thumbnailUrl,omitempty"`
	ThumbnailObjectKey string `json:"thumbnailObjectKey,omitempty"`
}

// Inline multipart uploads above this go through the signed-URL flow instead.
const maxUploadSizeBytes int64 = 5 * 1024 * 1024

// Signed PUT URLs expire after one hour.
const signedUploadExpiry = time.Hour

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

var attachmentMimeTypes = map[string]bool{
	"application/pdf":          true,
	"application/msword":       true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"image/jpeg": true,
	"image/png":  true,
}

// signUploadHandler issues a V4 signed PUT URL so the big files bypass this
// process. Issuing a URL writes nothing to the database; the object only
// becomes visible once an invoice mutation stores its key.
func signUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req uploadSignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		if req.FileName == "" || req.MimeType == "" || req.Size <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "fileName, mimeType and size are required"})
			return
		}
		if !attachmentMimeTypes[req.MimeType] {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "unsupported file type"})
			return
		}

		ext := strings.ToLower(filepath.Ext(req.FileName))
		if ext == "" {
			ext = extensionFromMimeType(req.MimeType)
		}
		if ext == "" {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "file extension is required"})
			return
		}

		objectKey := invoiceObjectKey(req.FileName)
		if utils.GetStorageProvider() != utils.StorageProviderGCS {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "storage provider not supported"})
			return
		}

		signed, err := utils.SignUpload(c.Request.Context(), objectKey, req.MimeType, signedUploadExpiry)
		if err != nil {
			logUploadError(logger, err, utils.GetStorageProvider(), c)
			message := "failed to sign upload"
			if !strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
				message = fmt.Sprintf("failed to sign upload: %v", err)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "msg": message})
			return
		}

		logger.WithFields(logrus.Fields{
			"mime_type":  req.MimeType,
			"size":       req.Size,
			"object_key": objectKey,
		}).Info("[upload.sign]")

		respondOK(c, gin.H{
			"data": uploadSignResponse{
				UploadURL: signed.UploadURL,
				Method:    signed.Method,
				Headers:   signed.Headers,
				ObjectKey: signed.ObjectKey,
				AccessURL: signed.AccessURL,
				ExpiresAt: signed.ExpiresAt.UTC().Format(time.RFC3339),
			},
		})
	}
}

// completeUploadHandler validates a direct-uploaded object and, for images,
// generates the listing thumbnail.
func completeUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req uploadCompleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		if req.ObjectKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "objectKey is required"})
			return
		}
		if !strings.HasPrefix(req.ObjectKey, "invoices/") || strings.Contains(req.ObjectKey, "..") {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "msg": "invalid object key"})
			return
		}

		exists, err := utils.ObjectExistsInGCS(c.Request.Context(), req.ObjectKey)
		if err != nil {
			logUploadError(logger, err, utils.GetStorageProvider(), c)
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "msg": "storage check failed"})
			return
		}
		if !exists {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "msg": "object not found"})
			return
		}

		response := uploadCompleteResponse{
			ObjectKey: req.ObjectKey,
			AccessURL: utils.BuildObjectAccessURL(req.ObjectKey),
		}

		if imageMimeTypes[req.MimeType] {
			thumbnailKey, err := createThumbnail(c.Request.Context(), req.ObjectKey)
			if err != nil {
				logUploadError(logger, err, utils.GetStorageProvider(), c)
				c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "msg": "failed to generate thumbnail"})
				return
			}
			response.ThumbnailURL = utils.BuildObjectAccessURL(thumbnailKey)
			response.ThumbnailObjectKey = thumbnailKey
		}

		logger.WithFields(logrus.Fields{
			"object_key": req.ObjectKey,
			"status":     "completed",
		}).Info("[upload.complete]")

		respondOK(c, gin.H{"data": response})
	}
}

func createThumbnail(ctx context.Context, objectKey string) (string, error) {
	client, err := utils.GetGCSClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return "", errors.New("GCS_BUCKET is required")
	}

	reader, err := client.Bucket(bucket).Object(objectKey).NewReader(ctx)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxUploadSizeBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > maxUploadSizeBytes {
		return "", errors.New("file size exceeds 5MB limit")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return "", err
	}

	thumbnailKey := thumbnailObjectKey(objectKey)
	if err := utils.UploadBytesToGCS(ctx, thumbnailKey, buf.Bytes(), "image/jpeg"); err != nil {
		return "", err
	}
	return thumbnailKey, nil
}

func thumbnailObjectKey(objectKey string) string {
	dir := path.Dir(objectKey)
	filename := path.Base(objectKey)
	return path.Join(dir, "thumbnails", filename)
}

func extensionFromMimeType(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	case "application/msword":
		return ".doc"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case "application/vnd.ms-excel":
		return ".xls"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return ".xlsx"
	default:
		return ""
	}
}

func logUploadError(logger *logrus.Logger, err error, provider string, c *gin.Context) {
	cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
	logger.WithFields(logrus.Fields{
		"error":          err.Error(),
		"provider":       provider,
		"correlation_id": cid,
	}).Error("[upload.error]")
}
