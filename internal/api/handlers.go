package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/yxzhang/storycut/internal/apperr"
	"github.com/yxzhang/storycut/internal/assemble"
	"github.com/yxzhang/storycut/internal/db"
	"github.com/yxzhang/storycut/internal/media"
	"github.com/yxzhang/storycut/internal/models"
	"github.com/yxzhang/storycut/internal/tasks"
)

// File name shapes produced by the publisher and the generation downloader.
// Anything else is refused before touching the filesystem.
var (
	workNameRe      = regexp.MustCompile(`^[0-9]+_[A-Za-z0-9_.-]+\.mp4$`)
	generatedNameRe = regexp.MustCompile(`^video_[A-Za-z0-9_]+\.mp4$`)
)

type Handler struct {
	db           *db.DB
	orchestrator *tasks.Orchestrator
	assembler    *assemble.Assembler
	engine       *media.Engine

	worksDir      string
	videosDir     string
	musicDir      string
	publicBaseURL string

	logger zerolog.Logger
}

func NewHandler(
	database *db.DB,
	orchestrator *tasks.Orchestrator,
	assembler *assemble.Assembler,
	engine *media.Engine,
	worksDir, videosDir, musicDir, publicBaseURL string,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		db:            database,
		orchestrator:  orchestrator,
		assembler:     assembler,
		engine:        engine,
		worksDir:      worksDir,
		videosDir:     videosDir,
		musicDir:      musicDir,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		logger:        logger.With().Str("component", "api").Logger(),
	}
}

// ConcatVideos handles POST /v1/videos/concat
func (h *Handler) ConcatVideos(w http.ResponseWriter, r *http.Request) {
	var req models.ConcatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	areq := assemble.Request{SourceRefs: req.VideoURLs}
	if req.OutputName != nil {
		areq.OutputName = *req.OutputName
	}
	if req.BackgroundMusic != nil {
		areq.BackgroundMusic = *req.BackgroundMusic
	}

	res, err := h.assembler.Run(r.Context(), areq)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	videoURL := h.publicBaseURL + "/v1/videos/works/" + res.FileName

	// The artifact is already durable; a failed metadata write costs the
	// listing entry, not the work itself.
	video := &models.Video{
		FileName:   res.FileName,
		VideoURL:   videoURL,
		ByteSize:   res.ByteSize,
		SceneCount: res.SceneCount,
	}
	if err := h.db.CreateVideo(r.Context(), video); err != nil {
		h.logger.Error().Err(err).Str("file", res.FileName).Msg("failed to record published work")
	}

	respondJSON(w, http.StatusOK, models.ConcatResponse{
		VideoURL: videoURL,
		FileName: res.FileName,
		FileSize: res.ByteSize,
	})
}

// ListVideos handles GET /v1/videos
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.db.ListVideos(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list videos")
		respondError(w, http.StatusInternalServerError, "Failed to list videos")
		return
	}
	if videos == nil {
		videos = []models.Video{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"videos": videos})
}

// ServeWork handles GET /v1/videos/works/{filename}
func (h *Handler) ServeWork(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, h.worksDir, chi.URLParam(r, "filename"), workNameRe)
}

// ServeGeneratedFile handles GET /v1/videos/files/{filename}
func (h *Handler) ServeGeneratedFile(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, h.videosDir, chi.URLParam(r, "filename"), generatedNameRe)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, dir, name string, pattern *regexp.Regexp) {
	if !pattern.MatchString(name) {
		respondError(w, http.StatusBadRequest, "Invalid file name")
		return
	}

	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

// TestFFmpeg handles GET /v1/videos/test-ffmpeg
func (h *Handler) TestFFmpeg(w http.ResponseWriter, r *http.Request) {
	available := h.engine.Available(r.Context())
	status := http.StatusOK
	if !available {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]bool{"ffmpeg_available": available})
}

// GenerateVideo handles POST /v1/videos/generate
func (h *Handler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, err := h.orchestrator.Submit(r.Context(), req)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, models.GenerateVideoResponse{
		TaskID:      task.TaskID,
		VideoTaskID: task.ID,
		Status:      task.Status,
	})
}

// GetTaskStatus handles GET /v1/videos/tasks/{taskId}/status
func (h *Handler) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "Task id is required")
		return
	}

	task, err := h.orchestrator.Poll(r.Context(), taskID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.TaskStatusResponse{
		TaskID:       task.TaskID,
		Status:       task.Status,
		VideoURL:     task.VideoURL,
		ErrorMessage: task.ErrorMessage,
		CreatedAt:    task.CreatedAt,
		CompletedAt:  task.CompletedAt,
	})
}

// ListPendingTasks handles GET /v1/videos/tasks/pending
func (h *Handler) ListPendingTasks(w http.ResponseWriter, r *http.Request) {
	list, err := h.db.ListActiveTasks(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list pending tasks")
		respondError(w, http.StatusInternalServerError, "Failed to list pending tasks")
		return
	}
	if list == nil {
		list = []models.VideoTask{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tasks": list})
}

// ListStoryboardTasks handles GET /v1/videos/tasks/storyboard/{storyboardId}
func (h *Handler) ListStoryboardTasks(w http.ResponseWriter, r *http.Request) {
	storyboardID, err := strconv.ParseInt(chi.URLParam(r, "storyboardId"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid storyboard id")
		return
	}

	list, err := h.orchestrator.ListByStoryboard(r.Context(), storyboardID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}
	if list == nil {
		list = []models.VideoTask{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"tasks": list})
}

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true,
	".aac": true, ".ogg": true, ".flac": true,
}

// ListMusic handles GET /v1/music
func (h *Handler) ListMusic(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.musicDir)
	if err != nil {
		// An absent library is an empty library, not an error.
		respondJSON(w, http.StatusOK, models.ListMusicResponse{Tracks: []models.MusicTrack{}})
		return
	}

	tracks := []models.MusicTrack{}
	for _, e := range entries {
		if e.IsDir() || !audioExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		tracks = append(tracks, models.MusicTrack{
			Name:        e.Name(),
			DisplayName: strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			ByteSize:    info.Size(),
			URL:         h.publicBaseURL + "/v1/music/file/" + e.Name(),
		})
	}
	respondJSON(w, http.StatusOK, models.ListMusicResponse{Tracks: tracks})
}

// ServeMusic handles GET /v1/music/file/{name}
func (h *Handler) ServeMusic(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		respondError(w, http.StatusBadRequest, "Invalid track name")
		return
	}
	if !audioExtensions[strings.ToLower(filepath.Ext(name))] {
		respondError(w, http.StatusBadRequest, "Invalid track name")
		return
	}

	path := filepath.Join(h.musicDir, name)
	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, "Track not found")
		return
	}
	http.ServeFile(w, r, path)
}

// respondAppError maps the error taxonomy onto HTTP status codes in one place.
func (h *Handler) respondAppError(w http.ResponseWriter, err error) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		h.logger.Error().Err(err).Msg("unhandled error")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindExternalService:
		status = http.StatusBadGateway
	case apperr.KindProcessExecution, apperr.KindIO:
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		h.logger.Error().Err(err).Str("kind", kind.String()).Msg("request failed")
	}
	respondError(w, status, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
