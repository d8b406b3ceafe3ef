package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/walkup/printq/internal/archive"
	"github.com/walkup/printq/internal/core"
)

type CreateJobFileRequest struct {
	FileName string `json:"file_name" binding:"required"`
	FilePath string `json:"file_path" binding:"required"`
	FileSize int64  `json:"file_size"`
}

type CreateJobRequest struct {
	ShopID      string                 `json:"shop_id" binding:"required"`
	TokenNumber string                 `json:"token_number"`
	PrintType   string                 `json:"print_type" binding:"required"`
	PrintSide   string                 `json:"print_side" binding:"required"`
	Copies      int                    `json:"copies"`
	Files       []CreateJobFileRequest `json:"files" binding:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type BatchResultResponse struct {
	Token  string `json:"token"`
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type JobHandler struct {
	manager *core.Manager
	builder *archive.Builder
}

func NewJobHandler(manager *core.Manager, builder *archive.Builder) *JobHandler {
	return &JobHandler{
		manager: manager,
		builder: builder,
	}
}

// respondError maps domain errors onto HTTP statuses. Anything unrecognized
// is a 500 so persistence faults never masquerade as client mistakes.
func respondError(c *gin.Context, err error) {
	var verr *core.ValidationError
	switch {
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, core.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrShopNotAccepting):
		c.JSON(http.StatusForbidden, gin.H{"error": "shop is not accepting uploads"})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	default:
		log.Printf("[api] internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	files := make([]core.FileRef, 0, len(req.Files))
	for _, f := range req.Files {
		path := f.FilePath
		files = append(files, core.FileRef{
			FileName: f.FileName,
			FilePath: &path,
			FileSize: f.FileSize,
		})
	}

	job, err := h.manager.CreateJob(c.Request.Context(), core.CreateJobParams{
		ShopID:      req.ShopID,
		TokenNumber: req.TokenNumber,
		PrintType:   core.PrintType(req.PrintType),
		PrintSide:   core.PrintSide(req.PrintSide),
		Copies:      req.Copies,
		Files:       files,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

func (h *JobHandler) ListToday(c *gin.Context) {
	shopID := c.Param("shopId")

	jobs, err := h.manager.GetJobsForShopToday(c.Request.Context(), shopID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

func (h *JobHandler) GetJobStatus(c *gin.Context) {
	token := c.Param("token")

	status, err := h.manager.GetJobStatus(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *JobHandler) UpdateJobStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.manager.UpdateSingleStatus(c.Request.Context(), c.Param("id"), core.JobStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) UpdateBatchStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token := c.Param("token")
	count, err := h.manager.UpdateBatchStatus(c.Request.Context(), token, core.JobStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, BatchResultResponse{Token: token, Status: req.Status, Count: count})
}

func (h *JobHandler) DeleteJob(c *gin.Context) {
	job, err := h.manager.DeleteSingleJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) DeleteBatch(c *gin.Context) {
	token := c.Param("token")

	count, err := h.manager.DeleteBatch(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, BatchResultResponse{Token: token, Status: string(core.JobStatusDeleted), Count: count})
}

func (h *JobHandler) DownloadBatch(c *gin.Context) {
	token := c.Param("token")

	download, err := h.builder.BuildDownload(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}

	if !download.IsArchive() {
		item := download.Single()
		c.Header("Content-Description", "File Transfer")
		c.Header("Content-Transfer-Encoding", "binary")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", item.FileName))
		c.Header("Content-Type", "application/octet-stream")
		// FileSize was stat'd by the builder, so the advertised length
		// matches the bytes about to be streamed.
		c.Header("Content-Length", fmt.Sprintf("%d", item.FileSize))

		if err := h.builder.WriteSingle(c.Request.Context(), c.Writer, download); err != nil {
			// Headers are committed; all that is left is the log line.
			log.Printf("[api] download stream aborted token=%s: %v", token, err)
		}
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.ArchiveName()))
	c.Header("Content-Type", "application/zip")

	if err := h.builder.WriteArchive(c.Request.Context(), c.Writer, download); err != nil {
		log.Printf("[api] archive stream aborted token=%s: %v", token, err)
	}
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup, auth gin.HandlerFunc) {
	jobs := r.Group("/jobs")
	{
		jobs.POST("", h.CreateJob)
		jobs.GET("/status/:token", h.GetJobStatus)

		jobs.GET("/shop/:shopId/today", auth, h.ListToday)
		jobs.PUT("/:id/status", auth, h.UpdateJobStatus)
		jobs.DELETE("/:id", auth, h.DeleteJob)
	}

	// Batch routes live under their own prefix; gin's router cannot mix the
	// static "batch" segment with the :id wildcard above.
	batches := r.Group("/batches")
	{
		batches.PUT("/:token/status", auth, h.UpdateBatchStatus)
		batches.DELETE("/:token", auth, h.DeleteBatch)
		batches.GET("/:token/download", auth, h.DownloadBatch)
	}
}
