package models

import (
	"time"
)

// TaskStatus tracks the lifecycle of one remote image-to-video generation job.
type TaskStatus string

const (
	// TaskStatusSubmitting: request accepted locally, remote service not yet acked.
	TaskStatusSubmitting TaskStatus = "submitting"
	// TaskStatusSubmitted: remote service acknowledged and assigned a job id.
	TaskStatusSubmitted TaskStatus = "submitted"
	// TaskStatusGenerating: a poll reported work in progress.
	TaskStatusGenerating TaskStatus = "generating"
	// TaskStatusCompleted: terminal; artifact downloaded (or remote URL kept).
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed: terminal; error message recorded.
	TaskStatusFailed TaskStatus = "failed"
)

// Terminal reports whether the status will never change on further polling.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Active reports whether the status blocks a new submission for the same storyboard.
func (s TaskStatus) Active() bool {
	return s == TaskStatusSubmitting || s == TaskStatusSubmitted || s == TaskStatusGenerating
}

// VideoTask is one external async video-generation job attached to a storyboard.
type VideoTask struct {
	ID           int64      `json:"id"`
	StoryboardID int64      `json:"storyboard_id"`
	TaskID       string     `json:"task_id"` // assigned by the remote service
	ImageURL     string     `json:"image_url"`
	Prompt       *string    `json:"prompt,omitempty"`
	AspectRatio  string     `json:"aspect_ratio"`
	Status       TaskStatus `json:"status"`
	VideoURL     *string    `json:"video_url,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	Owner        *string    `json:"owner,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Video is the metadata record of a published assembly artifact.
// Created once by the publish flow, never mutated afterwards.
type Video struct {
	ID         int64     `json:"id"`
	FileName   string    `json:"file_name"`
	VideoURL   string    `json:"video_url"`
	ByteSize   int64     `json:"byte_size"`
	SceneCount int       `json:"scene_count"`
	Owner      *string   `json:"owner,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// MusicTrack describes one background track in the configured music library.
type MusicTrack struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	ByteSize    int64  `json:"size"`
	URL         string `json:"url"`
}

// DTOs for the HTTP layer

type GenerateVideoRequest struct {
	StoryboardID int64   `json:"storyboard_id"`
	ImageURL     string  `json:"image_url"`
	Prompt       *string `json:"prompt,omitempty"`
	AspectRatio  *string `json:"aspect_ratio,omitempty"` // default applied by the orchestrator
}

type GenerateVideoResponse struct {
	TaskID      string     `json:"task_id"`
	VideoTaskID int64      `json:"video_task_id"`
	Status      TaskStatus `json:"status"`
}

type TaskStatusResponse struct {
	TaskID       string     `json:"task_id"`
	Status       TaskStatus `json:"status"`
	VideoURL     *string    `json:"video_url,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type ConcatRequest struct {
	VideoURLs       []string `json:"video_urls"`
	OutputName      *string  `json:"output_name,omitempty"`
	BackgroundMusic *string  `json:"background_music,omitempty"`
}

type ConcatResponse struct {
	VideoURL string `json:"video_url"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

type ListMusicResponse struct {
	Tracks []MusicTrack `json:"music_list"`
}
