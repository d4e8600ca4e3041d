package bucket

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloudbucket/internal/auth"
	"cloudbucket/internal/namespace"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the storage endpoints onto the protected group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/buckets", handler.createBucket)
	group.POST("/upload", handler.upload)
	group.GET("/files", handler.listFiles)
	group.GET("/download", handler.download)
	group.DELETE("/delete_bucket", handler.deleteBucket)
	group.DELETE("/delete_files", handler.deleteFiles)
}

type httpHandler struct {
	service *Service
}

type createBucketRequest struct {
	Bucket string `json:"bucket" binding:"required"`
}

type deleteFilesRequest struct {
	Bucket    string   `json:"bucket" binding:"required"`
	Filenames []string `json:"filenames" binding:"required,min=1"`
}

func (h *httpHandler) createBucket(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createBucketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bucket, err := h.service.CreateContainer(c.Request.Context(), principal, req.Bucket)
	if err != nil {
		switch {
		case errors.Is(err, namespace.ErrInvalidLabel):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bucket name"})
		case errors.Is(err, ErrBucketOwnedByOther):
			c.JSON(http.StatusConflict, gin.H{"error": "bucket name already taken"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create bucket"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": fmt.Sprintf("Bucket %s created", bucket.Name),
		"bucket":  bucket,
	})
}

func (h *httpHandler) upload(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	label := c.Query("bucket")
	if label == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bucket query parameter is required"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file payload"})
		return
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")

	file, err := h.service.PutObject(c.Request.Context(), principal, label, fileHeader.Filename, src, fileHeader.Size, contentType)
	if err != nil {
		switch {
		case errors.Is(err, namespace.ErrInvalidLabel):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bucket name"})
		case errors.Is(err, ErrBucketNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
		case errors.Is(err, ErrSizeMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": "payload size mismatch"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload file"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filename": file.Name,
		"status":   "Upload successful",
		"file_id":  file.ID.String(),
	})
}

func (h *httpHandler) listFiles(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	label := c.Query("bucket")
	if label == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bucket query parameter is required"})
		return
	}

	entries, err := h.service.ListObjects(c.Request.Context(), principal, label)
	if err != nil {
		switch {
		case errors.Is(err, namespace.ErrInvalidLabel):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bucket name"})
		case errors.Is(err, ErrBucketNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		}
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (h *httpHandler) download(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	label := c.Query("bucket")
	filename := c.Query("filename")
	if label == "" || filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bucket and filename query parameters are required"})
		return
	}

	reader, stat, err := h.service.GetObject(c.Request.Context(), principal, label, filename)
	if err != nil {
		switch {
		case errors.Is(err, namespace.ErrInvalidLabel):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bucket name"})
		case errors.Is(err, ErrObjectNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "download failed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to download file"})
		}
		return
	}
	defer reader.Close()

	streamAttachment(c, reader, stat)
}

func (h *httpHandler) deleteBucket(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	label := c.Query("bucket")
	if label == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bucket query parameter is required"})
		return
	}

	if err := h.service.DeleteContainer(c.Request.Context(), principal, label); err != nil {
		switch {
		case errors.Is(err, namespace.ErrInvalidLabel):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bucket name"})
		case errors.Is(err, ErrBucketNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete bucket"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Bucket deleted"})
}

func (h *httpHandler) deleteFiles(c *gin.Context) {
	principal, ok := auth.RequirePrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req deleteFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.DeleteObjects(c.Request.Context(), principal, req.Bucket, req.Filenames)
	if err != nil {
		switch {
		case errors.Is(err, namespace.ErrInvalidLabel):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bucket name"})
		case errors.Is(err, ErrBucketNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "bucket not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete files"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// streamAttachment writes a blob to the client as a named download.
func streamAttachment(c *gin.Context, reader io.Reader, stat ObjectStat) {
	c.Header("Content-Type", stat.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", stat.Filename))
	if stat.SizeBytes > 0 {
		c.Header("Content-Length", fmt.Sprintf("%d", stat.SizeBytes))
	}

	if _, err := io.Copy(c.Writer, reader); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
