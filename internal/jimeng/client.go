// Package jimeng is the client for the signed image-to-video generation API.
// The service follows a submit-then-poll protocol: SubmitTask returns a remote
// task id immediately, and QueryTask reports progress until the job is done.
package jimeng

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yxzhang/storycut/internal/apperr"
)

const (
	reqKey          = "jimeng_vgfm_i2v_l20"
	submitAction    = "CVSync2AsyncSubmitTask"
	queryAction     = "CVSync2AsyncGetResult"
	apiVersion      = "2022-08-31"
	codeOK          = 10000
	contentTypeJSON = "application/json"

	// StatusDone is the remote terminal success status.
	StatusDone = "done"

	requestTimeout  = 30 * time.Second
	downloadTimeout = 5 * time.Minute
)

type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Region          string
	Service         string
	Schema          string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger

	videosDir   string // durable area for downloaded generation results
	fileURLBase string // public URL prefix for files in videosDir
}

func New(cfg Config, videosDir, fileURLBase string, logger zerolog.Logger) *Client {
	return &Client{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: requestTimeout},
		logger:      logger.With().Str("component", "jimeng").Logger(),
		videosDir:   videosDir,
		fileURLBase: strings.TrimSuffix(fileURLBase, "/") + "/",
	}
}

// Request / response shapes

type submitRequest struct {
	ReqKey      string   `json:"req_key"`
	ImageURLs   []string `json:"image_urls"`
	Prompt      string   `json:"prompt,omitempty"`
	AspectRatio string   `json:"aspect_ratio,omitempty"`
}

type queryRequest struct {
	ReqKey string `json:"req_key"`
	TaskID string `json:"task_id"`
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type submitData struct {
	TaskID string `json:"task_id"`
}

type queryData struct {
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
}

// TaskResult is the outcome of one QueryTask call.
type TaskResult struct {
	Status   string
	VideoURL string // set when Status == StatusDone
}

// SubmitTask submits an image+prompt generation job and returns the remote task id.
func (c *Client) SubmitTask(ctx context.Context, imageURL, prompt, aspectRatio string) (string, error) {
	req := submitRequest{
		ReqKey:      reqKey,
		ImageURLs:   []string{imageURL},
		Prompt:      strings.TrimSpace(prompt),
		AspectRatio: aspectRatio,
	}

	data, err := c.doRequest(ctx, submitAction, req)
	if err != nil {
		return "", err
	}

	var out submitData
	if err := json.Unmarshal(data, &out); err != nil {
		return "", apperr.Wrap(apperr.KindExternalService, err, "malformed submit response")
	}
	if out.TaskID == "" {
		return "", apperr.New(apperr.KindExternalService, "submit response carried no task_id")
	}

	c.logger.Info().Str("task_id", out.TaskID).Msg("generation task submitted")
	return out.TaskID, nil
}

// QueryTask fetches the current status of a generation job.
func (c *Client) QueryTask(ctx context.Context, taskID string) (*TaskResult, error) {
	req := queryRequest{ReqKey: reqKey, TaskID: taskID}

	data, err := c.doRequest(ctx, queryAction, req)
	if err != nil {
		return nil, err
	}

	var out queryData
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, apperr.Wrap(apperr.KindExternalService, err, "malformed query response")
	}

	c.logger.Debug().
		Str("task_id", taskID).
		Str("status", out.Status).
		Msg("generation task polled")

	return &TaskResult{Status: out.Status, VideoURL: out.VideoURL}, nil
}

// doRequest signs and executes one API call, returning the data payload of a
// successful (code 10000) response.
func (c *Client) doRequest(ctx context.Context, action string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	query := map[string]string{
		"Action":  action,
		"Version": apiVersion,
	}
	sig := c.sign(http.MethodPost, query, body, time.Now())

	reqURL := fmt.Sprintf("%s://%s/?%s", c.cfg.Schema, c.cfg.Endpoint, sig.Query)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Host = c.cfg.Endpoint
	req.Header.Set("X-Date", sig.XDate)
	req.Header.Set("X-Content-Sha256", sig.ContentSha256)
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Authorization", sig.Authorization)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExternalService, err, "%s request failed", action)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExternalService, err, "failed to read %s response", action)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.KindExternalService, "%s returned status %d: %s", action, resp.StatusCode, truncate(string(respBody), 300))
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.KindExternalService, err, "malformed %s response body", action)
	}

	if parsed.Code != codeOK {
		return nil, apperr.New(apperr.KindExternalService, "%s rejected (code %d): %s", action, parsed.Code, parsed.Message)
	}

	return parsed.Data, nil
}

// DownloadToLocal fetches a finished video into the durable videos area and
// returns its public locator. Download failures fall back to the remote URL:
// a reachable remote artifact beats failing the whole poll.
func (c *Client) DownloadToLocal(ctx context.Context, videoURL, taskID string) string {
	local, err := c.download(ctx, videoURL, taskID)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("task_id", taskID).
			Msg("artifact download failed, keeping remote URL")
		return videoURL
	}
	return local
}

func (c *Client) download(ctx context.Context, videoURL, taskID string) (string, error) {
	if err := os.MkdirAll(c.videosDir, 0755); err != nil {
		return "", apperr.Wrap(apperr.KindIO, err, "failed to create videos dir")
	}

	// File names must satisfy the serving layer's video_[A-Za-z0-9_]+.mp4
	// pattern, so anything else in the task id becomes an underscore.
	fileName := fmt.Sprintf("video_%s_%d.mp4", safeName(taskID), time.Now().UnixMilli())
	localPath := filepath.Join(c.videosDir, fileName)

	c.logger.Info().
		Str("url", videoURL).
		Str("path", localPath).
		Msg("downloading generated video")

	dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIO, err, "failed to create download request")
	}

	dlClient := &http.Client{Timeout: downloadTimeout}
	resp, err := dlClient.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIO, err, "download request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperr.New(apperr.KindIO, "download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIO, err, "failed to create %s", localPath)
	}

	written, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(localPath)
		return "", apperr.Wrap(apperr.KindIO, err, "failed to write %s", localPath)
	}

	c.logger.Info().
		Int64("bytes", written).
		Str("file", fileName).
		Msg("generated video downloaded")

	return c.fileURLBase + fileName, nil
}

func safeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
