package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"vidscore/config"
	"vidscore/errs"
	"vidscore/task"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Defaults for the fully automatic finalize flow.
const (
	defaultStartTime   = 0.0
	defaultAudioVolume = 0.5
)

// Jobs launches the background units of the pipeline.
type Jobs interface {
	StartAnalysis(taskID, filename, objectName, localPath string)
	StartMix(taskID, objectName, musicURL string, startTime, volume float64)
}

// Uploader persists the original upload to object storage.
type Uploader interface {
	UploadFile(ctx context.Context, path, key string) error
}

type Handler struct {
	cfg      *config.Config
	store    *task.Store
	jobs     Jobs
	uploader Uploader
	log      *zap.Logger
}

func NewHandler(cfg *config.Config, store *task.Store, jobs Jobs, uploader Uploader, log *zap.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		store:    store,
		jobs:     jobs,
		uploader: uploader,
		log:      log,
	}
}

// handleUpload accepts a multipart video, stores the original and
// kicks off the analysis stage. The response returns immediately.
func (h *Handler) handleUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}

	if file.Size > h.cfg.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file too large (max %d bytes)", h.cfg.MaxUploadSize),
		})
		return
	}

	base := filepath.Base(file.Filename)
	localPath := filepath.Join(h.tempRoot(), fmt.Sprintf("%s_%s", uuid.New(), base))
	if err := c.SaveUploadedFile(file, localPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save upload", "details": err.Error()})
		return
	}

	objectName := fmt.Sprintf("uploads/%s_%s", uuid.New(), base)
	if err := h.uploader.UploadFile(c.Request.Context(), localPath, objectName); err != nil {
		os.Remove(localPath)
		h.log.Error("failed to store original video", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store video"})
		return
	}

	t := h.store.Create(base, objectName, task.StatusProcessing)
	h.jobs.StartAnalysis(t.ID, base, objectName, localPath)

	c.JSON(http.StatusOK, gin.H{"task_id": t.ID, "status": t.Status})
}

type musicCallbackRequest struct {
	TaskID    string                `json:"task_id" binding:"required"`
	MusicList []task.MusicCandidate `json:"music_list"`
}

// handleMusicCallback receives generated music candidates from the
// automation side. It only records them; mixing is triggered
// separately.
func (h *Handler) handleMusicCallback(c *gin.Context) {
	var req musicCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch err := h.store.SetMusic(req.TaskID, req.MusicList); {
	case errors.Is(err, errs.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	case errors.Is(err, errs.ErrEmptyMusicList):
		c.JSON(http.StatusBadRequest, gin.H{"error": "music_list must not be empty"})
	case errors.Is(err, errs.ErrMixInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "task already finished"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"task_id": req.TaskID, "status": task.StatusMusicReady})
	}
}

// handleStatus returns the task snapshot for pollers.
func (h *Handler) handleStatus(c *gin.Context) {
	t, found := h.store.Get(c.Param("taskId"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

type finalizeRequest struct {
	TaskID          string  `json:"task_id"`
	VideoObjectName string  `json:"video_object_name"`
	MusicURL        string  `json:"music_url"`
	StartTime       float64 `json:"start_time"`
	AudioVolume     float64 `json:"audio_volume"`
}

// handleFinalize starts the mixing stage. Two shapes converge here:
// an explicit request naming object and music URL creates a new task,
// while a bare task_id mixes a stored task with its first candidate.
func (h *Handler) handleFinalize(c *gin.Context) {
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	volume := req.AudioVolume
	if volume <= 0 {
		volume = defaultAudioVolume
	}
	startTime := req.StartTime
	if startTime < 0 {
		startTime = defaultStartTime
	}

	switch {
	case req.VideoObjectName != "" && req.MusicURL != "":
		t := h.store.Create(filepath.Base(req.VideoObjectName), req.VideoObjectName, task.StatusProcessing)
		if err := h.store.BeginMix(t.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		h.jobs.StartMix(t.ID, req.VideoObjectName, req.MusicURL, startTime, volume)
		c.JSON(http.StatusOK, gin.H{"task_id": t.ID, "status": task.StatusMixing})

	case req.TaskID != "":
		t, found := h.store.Get(req.TaskID)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}

		musicURL := req.MusicURL
		if musicURL == "" {
			musicURL = t.MusicURL
		}
		if musicURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no music available for this task yet"})
			return
		}
		if t.VideoObjectName == "" {
			// Cannot happen for tasks created by this server.
			c.JSON(http.StatusInternalServerError, gin.H{"error": "task has no stored video"})
			return
		}

		if err := h.store.BeginMix(t.ID); err != nil {
			if errors.Is(err, errs.ErrMixInProgress) {
				c.JSON(http.StatusConflict, gin.H{"error": "task is already mixing or finished"})
				return
			}
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.jobs.StartMix(t.ID, t.VideoObjectName, musicURL, startTime, volume)
		c.JSON(http.StatusOK, gin.H{"task_id": t.ID, "status": task.StatusMixing})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "either task_id or video_object_name with music_url is required"})
	}
}

// handleListTasks lists all known tasks.
func (h *Handler) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.List())
}

func (h *Handler) tempRoot() string {
	if h.cfg.TempDir != "" {
		return h.cfg.TempDir
	}
	return os.TempDir()
}
