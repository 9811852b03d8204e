// Package tasks orchestrates the submit/poll lifecycle of remote generation
// jobs: submitting -> submitted -> generating -> completed | failed.
package tasks

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yxzhang/storycut/internal/apperr"
	"github.com/yxzhang/storycut/internal/db"
	"github.com/yxzhang/storycut/internal/jimeng"
	"github.com/yxzhang/storycut/internal/models"
)

// TaskStore is the persistence surface the orchestrator needs.
type TaskStore interface {
	CreateTask(ctx context.Context, task *models.VideoTask) error
	GetTaskByTaskID(ctx context.Context, taskID string) (*models.VideoTask, error)
	ListTasksByStoryboard(ctx context.Context, storyboardID int64) ([]models.VideoTask, error)
	HasActiveTask(ctx context.Context, storyboardID int64) (bool, error)
	UpdateTask(ctx context.Context, task *models.VideoTask) error
}

// GenerationClient is the remote image-to-video service surface.
type GenerationClient interface {
	SubmitTask(ctx context.Context, imageURL, prompt, aspectRatio string) (string, error)
	QueryTask(ctx context.Context, taskID string) (*jimeng.TaskResult, error)
	DownloadToLocal(ctx context.Context, videoURL, taskID string) string
}

// TaskCache caches terminal tasks. Implementations tolerate being a typed
// nil pointer.
type TaskCache interface {
	GetTask(ctx context.Context, taskID string) *models.VideoTask
	SetTask(ctx context.Context, task *models.VideoTask)
}

type Orchestrator struct {
	store              TaskStore
	client             GenerationClient
	cache              TaskCache
	defaultAspectRatio string
	logger             zerolog.Logger
}

func New(store TaskStore, client GenerationClient, cache TaskCache, defaultAspectRatio string, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:              store,
		client:             client,
		cache:              cache,
		defaultAspectRatio: defaultAspectRatio,
		logger:             logger.With().Str("component", "tasks").Logger(),
	}
}

// Submit starts a generation job for a storyboard. The task row is written
// only after the remote service acknowledges the submission, so a remote
// failure leaves no record behind.
//
// The active-task guard is a read-then-write check, not a transactional
// constraint: two concurrent submits for the same storyboard can both pass.
// The caller population (one editor per storyboard) makes this acceptable.
func (o *Orchestrator) Submit(ctx context.Context, req models.GenerateVideoRequest) (*models.VideoTask, error) {
	if req.StoryboardID <= 0 {
		return nil, apperr.New(apperr.KindValidation, "storyboard_id is required")
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, apperr.New(apperr.KindValidation, "image_url is required")
	}

	active, err := o.store.HasActiveTask(ctx, req.StoryboardID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, apperr.New(apperr.KindConflict, "storyboard %d already has an active generation task", req.StoryboardID)
	}

	aspectRatio := o.defaultAspectRatio
	if req.AspectRatio != nil && *req.AspectRatio != "" {
		aspectRatio = *req.AspectRatio
	}
	prompt := ""
	if req.Prompt != nil {
		prompt = *req.Prompt
	}

	taskID, err := o.client.SubmitTask(ctx, req.ImageURL, prompt, aspectRatio)
	if err != nil {
		return nil, err
	}

	task := &models.VideoTask{
		StoryboardID: req.StoryboardID,
		TaskID:       taskID,
		ImageURL:     req.ImageURL,
		Prompt:       req.Prompt,
		AspectRatio:  aspectRatio,
		Status:       models.TaskStatusSubmitted,
	}
	if err := o.store.CreateTask(ctx, task); err != nil {
		// The remote job is already running; the caller can still poll it
		// by task id even though the local record is missing.
		o.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Int64("storyboard_id", req.StoryboardID).
			Msg("remote job submitted but task record write failed")
		return nil, err
	}

	o.logger.Info().
		Str("task_id", taskID).
		Int64("storyboard_id", req.StoryboardID).
		Msg("generation task created")
	return task, nil
}

// Poll reports the current state of a task, advancing it when the remote
// side has progressed. Terminal tasks are immutable: once completed or
// failed, Poll never calls the remote service again.
func (o *Orchestrator) Poll(ctx context.Context, taskID string) (*models.VideoTask, error) {
	if cached := o.cache.GetTask(ctx, taskID); cached != nil {
		return cached, nil
	}

	task, err := o.store.GetTaskByTaskID(ctx, taskID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "task %s not found", taskID)
	}
	if err != nil {
		return nil, err
	}

	if task.Status.Terminal() {
		o.cache.SetTask(ctx, task)
		return task, nil
	}

	res, err := o.client.QueryTask(ctx, taskID)
	if err != nil {
		msg := err.Error()
		task.Status = models.TaskStatusFailed
		task.ErrorMessage = &msg
	} else if res.Status == jimeng.StatusDone {
		if res.VideoURL == "" {
			msg := "generation finished without a video URL"
			task.Status = models.TaskStatusFailed
			task.ErrorMessage = &msg
		} else {
			local := o.client.DownloadToLocal(ctx, res.VideoURL, taskID)
			task.Status = models.TaskStatusCompleted
			task.VideoURL = &local
		}
	} else {
		task.Status = models.TaskStatusGenerating
	}

	// The transition is persisted before the caller sees it, so a crash
	// after this point cannot resurrect a terminal task.
	if err := o.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	o.cache.SetTask(ctx, task)

	if task.Status.Terminal() {
		o.logger.Info().
			Str("task_id", taskID).
			Str("status", string(task.Status)).
			Msg("generation task reached terminal state")
	}
	return task, nil
}

// ListByStoryboard returns the storyboard's tasks, newest first.
func (o *Orchestrator) ListByStoryboard(ctx context.Context, storyboardID int64) ([]models.VideoTask, error) {
	if storyboardID <= 0 {
		return nil, apperr.New(apperr.KindValidation, "storyboard_id is required")
	}
	return o.store.ListTasksByStoryboard(ctx, storyboardID)
}
