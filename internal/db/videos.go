package db

import (
	"context"
	"fmt"

	"github.com/yxzhang/storycut/internal/models"
)

func (db *DB) CreateVideo(ctx context.Context, video *models.Video) error {
	query := `
		INSERT INTO videos (
			file_name, video_url, byte_size, scene_count, owner
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	return db.QueryRowContext(
		ctx, query,
		video.FileName, video.VideoURL, video.ByteSize, video.SceneCount, video.Owner,
	).Scan(&video.ID, &video.CreatedAt)
}

func (db *DB) ListVideos(ctx context.Context) ([]models.Video, error) {
	query := `
		SELECT id, file_name, video_url, byte_size, scene_count, owner, created_at
		FROM videos
		ORDER BY created_at DESC
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var v models.Video
		err := rows.Scan(
			&v.ID, &v.FileName, &v.VideoURL, &v.ByteSize,
			&v.SceneCount, &v.Owner, &v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}
