package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/yxzhang/storycut/internal/apperr"
	"github.com/yxzhang/storycut/internal/models"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	return &Handler{
		worksDir:      t.TempDir(),
		videosDir:     t.TempDir(),
		musicDir:      t.TempDir(),
		publicBaseURL: "http://localhost:8080",
		logger:        zerolog.Nop(),
	}
}

func contextWithChi(req *http.Request, rctx *chi.Context) context.Context {
	return context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
}

func TestServeWorkRejectsBadNames(t *testing.T) {
	h := newTestHandler(t)

	bad := []string{
		"../etc/passwd",
		"no_timestamp.mp4",
		"123_ok.mp4.exe",
		"123_semi;rm.mp4",
	}
	for _, name := range bad {
		req := httptest.NewRequest(http.MethodGet, "/v1/videos/works/x", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("filename", name)
		req = req.WithContext(contextWithChi(req, rctx))
		rec := httptest.NewRecorder()

		h.ServeWork(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("name %q: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestServeWorkServesExistingFile(t *testing.T) {
	h := newTestHandler(t)

	name := "1725000000000_final.mp4"
	if err := os.WriteFile(filepath.Join(h.worksDir, name), []byte("mp4 bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/videos/works/"+name, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("filename", name)
	req = req.WithContext(contextWithChi(req, rctx))
	rec := httptest.NewRecorder()

	h.ServeWork(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "mp4 bytes" {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

func TestServeGeneratedFilePattern(t *testing.T) {
	cases := map[string]bool{
		"video_abc123_1725000000000.mp4": true,
		"video_task_abc_1.mp4":           true,
		"video_.mp4":                     false,
		"video_a-b.mp4":                  false,
		"other_abc.mp4":                  false,
		"video_abc.mp3":                  false,
	}
	for name, want := range cases {
		if got := generatedNameRe.MatchString(name); got != want {
			t.Errorf("pattern match for %q = %v, want %v", name, got, want)
		}
	}
}

func TestListMusic(t *testing.T) {
	h := newTestHandler(t)

	for name, content := range map[string]string{
		"calm.mp3":   "aaa",
		"upbeat.wav": "bbbb",
		"notes.txt":  "skip me",
	} {
		if err := os.WriteFile(filepath.Join(h.musicDir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	rec := httptest.NewRecorder()
	h.ListMusic(rec, httptest.NewRequest(http.MethodGet, "/v1/music", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp models.ListMusicResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(resp.Tracks))
	}
	for _, track := range resp.Tracks {
		if track.URL == "" || track.DisplayName == "" {
			t.Errorf("incomplete track entry: %+v", track)
		}
	}
}

func TestListMusicMissingDir(t *testing.T) {
	h := newTestHandler(t)
	h.musicDir = filepath.Join(h.musicDir, "does-not-exist")

	rec := httptest.NewRecorder()
	h.ListMusic(rec, httptest.NewRequest(http.MethodGet, "/v1/music", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("missing library must be an empty list, got %d", rec.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	protected := APIKeyAuth("secret-key")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name       string
		header     string
		value      string
		wantStatus int
	}{
		{"missing key", "", "", http.StatusUnauthorized},
		{"wrong key", "X-API-Key", "nope", http.StatusForbidden},
		{"valid header key", "X-API-Key", "secret-key", http.StatusOK},
		{"valid bearer", "Authorization", "Bearer secret-key", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/videos", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Errorf("expected %d, got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

func TestRespondAppErrorMapping(t *testing.T) {
	h := newTestHandler(t)

	cases := []struct {
		err        error
		wantStatus int
	}{
		{apperr.New(apperr.KindValidation, "bad input"), http.StatusBadRequest},
		{apperr.New(apperr.KindConflict, "already running"), http.StatusConflict},
		{apperr.New(apperr.KindNotFound, "no such task"), http.StatusNotFound},
		{apperr.New(apperr.KindExternalService, "remote down"), http.StatusBadGateway},
		{apperr.New(apperr.KindProcessExecution, "ffmpeg exploded"), http.StatusInternalServerError},
		{apperr.New(apperr.KindIO, "disk full"), http.StatusInternalServerError},
		{os.ErrPermission, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.respondAppError(rec, tc.err)
		if rec.Code != tc.wantStatus {
			t.Errorf("error %v: expected %d, got %d", tc.err, tc.wantStatus, rec.Code)
		}
	}
}
