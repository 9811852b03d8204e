package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yxzhang/storycut/internal/models"
)

// ErrNotFound is returned when a lookup matches no row. Callers map it to
// their own taxonomy.
var ErrNotFound = errors.New("not found")

func (db *DB) CreateTask(ctx context.Context, task *models.VideoTask) error {
	query := `
		INSERT INTO video_tasks (
			storyboard_id, task_id, image_url, prompt, aspect_ratio, status, owner
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		task.StoryboardID, task.TaskID, task.ImageURL, task.Prompt,
		task.AspectRatio, task.Status, task.Owner,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
}

const taskColumns = `
	id, storyboard_id, task_id, image_url, prompt, aspect_ratio,
	status, video_url, error_message, owner, created_at, updated_at, completed_at
`

func scanTask(row interface{ Scan(...interface{}) error }) (*models.VideoTask, error) {
	task := &models.VideoTask{}
	err := row.Scan(
		&task.ID, &task.StoryboardID, &task.TaskID, &task.ImageURL, &task.Prompt,
		&task.AspectRatio, &task.Status, &task.VideoURL, &task.ErrorMessage,
		&task.Owner, &task.CreatedAt, &task.UpdatedAt, &task.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (db *DB) GetTaskByTaskID(ctx context.Context, taskID string) (*models.VideoTask, error) {
	query := `SELECT ` + taskColumns + ` FROM video_tasks WHERE task_id = $1`

	task, err := scanTask(db.QueryRowContext(ctx, query, taskID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (db *DB) ListTasksByStoryboard(ctx context.Context, storyboardID int64) ([]models.VideoTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM video_tasks
		WHERE storyboard_id = $1
		ORDER BY created_at DESC
	`
	return db.listTasks(ctx, query, storyboardID)
}

// ListActiveTasks returns every task still moving through the pipeline,
// oldest first so pollers drain in submission order.
func (db *DB) ListActiveTasks(ctx context.Context) ([]models.VideoTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM video_tasks
		WHERE status IN ($1, $2, $3)
		ORDER BY created_at
	`
	return db.listTasks(ctx, query,
		models.TaskStatusSubmitting, models.TaskStatusSubmitted, models.TaskStatusGenerating)
}

func (db *DB) listTasks(ctx context.Context, query string, args ...interface{}) ([]models.VideoTask, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.VideoTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// HasActiveTask reports whether the storyboard already has a non-terminal
// generation task.
func (db *DB) HasActiveTask(ctx context.Context, storyboardID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM video_tasks
			WHERE storyboard_id = $1 AND status IN ($2, $3, $4)
		)
	`

	var exists bool
	err := db.QueryRowContext(ctx, query, storyboardID,
		models.TaskStatusSubmitting, models.TaskStatusSubmitted, models.TaskStatusGenerating,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active tasks: %w", err)
	}
	return exists, nil
}

func (db *DB) UpdateTask(ctx context.Context, task *models.VideoTask) error {
	now := time.Now()
	task.UpdatedAt = now
	if task.Status.Terminal() && task.CompletedAt == nil {
		task.CompletedAt = &now
	}

	query := `
		UPDATE video_tasks
		SET status = $1, video_url = $2, error_message = $3,
		    updated_at = $4, completed_at = $5
		WHERE id = $6
	`
	_, err := db.ExecContext(ctx, query,
		task.Status, task.VideoURL, task.ErrorMessage,
		task.UpdatedAt, task.CompletedAt, task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}
