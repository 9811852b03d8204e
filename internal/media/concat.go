// Package media drives ffmpeg for the two transformation stages: lossless
// stream-copy concatenation and background audio mixing.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yxzhang/storycut/internal/apperr"
	"github.com/yxzhang/storycut/internal/runner"
)

const (
	concatTimeout = 5 * time.Minute
	probeTimeout  = 30 * time.Second
	mixTimeout    = 5 * time.Minute
)

type Engine struct {
	runner *runner.Runner
	logger zerolog.Logger
}

func NewEngine(r *runner.Runner, logger zerolog.Logger) *Engine {
	return &Engine{
		runner: r,
		logger: logger.With().Str("component", "media").Logger(),
	}
}

// Available reports whether ffmpeg can be invoked at all.
func (e *Engine) Available(ctx context.Context) bool {
	res, err := e.runner.Run(ctx, 10*time.Second, "ffmpeg", "-version")
	return err == nil && res.ExitCode == 0
}

// Concat joins the input videos into outputPath without re-encoding. Inputs
// must share codec parameters; mismatches surface as an ffmpeg failure.
func (e *Engine) Concat(ctx context.Context, inputs []string, workDir, outputPath string) error {
	if len(inputs) == 0 {
		return apperr.New(apperr.KindValidation, "no inputs to concatenate")
	}

	listPath := filepath.Join(workDir, "concat_list.txt")
	if err := os.WriteFile(listPath, []byte(concatManifest(inputs)), 0644); err != nil {
		return apperr.Wrap(apperr.KindIO, err, "failed to write concat manifest")
	}

	args := concatArgs(listPath, outputPath)
	e.logger.Info().
		Int("inputs", len(inputs)).
		Str("output", outputPath).
		Msg("concatenating videos")

	res, err := e.runner.Run(ctx, concatTimeout, "ffmpeg", args...)
	if err != nil {
		return apperr.Wrap(apperr.KindProcessExecution, err, "failed to start ffmpeg")
	}
	if res.TimedOut {
		return apperr.New(apperr.KindProcessExecution, "concatenation timed out after %s", concatTimeout)
	}
	if res.ExitCode != 0 {
		return apperr.New(apperr.KindProcessExecution, "ffmpeg exited %d: %s", res.ExitCode, tail(res.Output, 500))
	}

	// ffmpeg can exit 0 and still leave nothing useful behind.
	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return apperr.New(apperr.KindProcessExecution, "concatenation produced no output")
	}

	e.logger.Info().
		Int64("bytes", info.Size()).
		Msg("concatenation finished")
	return nil
}

// concatManifest renders the ffmpeg concat demuxer file list. Single quotes
// inside paths are escaped the way the demuxer expects.
func concatManifest(inputs []string) string {
	var b strings.Builder
	for _, in := range inputs {
		escaped := strings.ReplaceAll(in, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	return b.String()
}

func concatArgs(listPath, outputPath string) []string {
	return []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	}
}

// tail returns the last maxLen bytes of s; ffmpeg puts the useful part of an
// error at the end of its output.
func tail(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}
