package share

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloudbucket/internal/auth"
	"cloudbucket/internal/namespace"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the sharing endpoints onto the protected group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/share", handler.shareFile)
	group.GET("/shared_with_me", handler.sharedWithMe)
	group.GET("/download_shared", handler.downloadShared)
}

type httpHandler struct {
	service *Service
}

type shareFileRequest struct {
	Bucket             string `json:"bucket" binding:"required"`
	Filename           string `json:"filename" binding:"required"`
	SharedWithUsername string `json:"shared_with_username" binding:"required"`
}

func (h *httpHandler) shareFile(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req shareFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, err := h.service.CreateGrant(c.Request.Context(), principal, req.Bucket, req.Filename, req.SharedWithUsername)
	if err != nil {
		switch {
		case errors.Is(err, namespace.ErrInvalidLabel):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bucket name"})
		case errors.Is(err, ErrFileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		case errors.Is(err, ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "not authorized to share this file"})
		case errors.Is(err, ErrAlreadyShared):
			c.JSON(http.StatusConflict, gin.H{"error": "file has already been shared"})
		case errors.Is(err, ErrGranteeNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "shared user not found"})
		case errors.Is(err, ErrSelfShare):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot share a file with yourself"})
		case errors.Is(err, ErrPolicyMirror):
			// the grant itself is committed; only the store mirror failed
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to set bucket policy"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to share file"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "File shared successfully"})
}

func (h *httpHandler) sharedWithMe(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	shared, err := h.service.ListSharedWithMe(c.Request.Context(), principal)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list shared files"})
		return
	}

	c.JSON(http.StatusOK, shared)
}

func (h *httpHandler) downloadShared(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	bucketName := c.Query("bucket")
	filename := c.Query("filename")
	if bucketName == "" || filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bucket and filename query parameters are required"})
		return
	}

	reader, stat, err := h.service.DownloadShared(c.Request.Context(), principal, bucketName, filename)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		case errors.Is(err, ErrNoGrant):
			c.JSON(http.StatusForbidden, gin.H{"error": "you do not have access to this file"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to download file"})
		}
		return
	}
	defer reader.Close()

	c.Header("Content-Type", stat.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", stat.Filename))
	if stat.SizeBytes > 0 {
		c.Header("Content-Length", fmt.Sprintf("%d", stat.SizeBytes))
	}

	if _, err := io.Copy(c.Writer, reader); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
