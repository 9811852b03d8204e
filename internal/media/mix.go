package media

import (
	"context"
	"os"
	"strings"

	"github.com/yxzhang/storycut/internal/apperr"
)

// MixAudio lays musicPath under the video's own audio and writes the result
// to outputPath. When the video carries no audio stream, the track becomes
// the sole audio. The video stream is never re-encoded.
func (e *Engine) MixAudio(ctx context.Context, videoPath, musicPath, outputPath string) error {
	hasAudio := e.probeHasAudio(ctx, videoPath)

	args := mixArgs(videoPath, musicPath, outputPath, hasAudio)
	e.logger.Info().
		Bool("video_has_audio", hasAudio).
		Str("music", musicPath).
		Msg("mixing background audio")

	res, err := e.runner.Run(ctx, mixTimeout, "ffmpeg", args...)
	if err != nil {
		return apperr.Wrap(apperr.KindProcessExecution, err, "failed to start ffmpeg")
	}
	if res.TimedOut {
		return apperr.New(apperr.KindProcessExecution, "audio mix timed out after %s", mixTimeout)
	}
	if res.ExitCode != 0 {
		return apperr.New(apperr.KindProcessExecution, "ffmpeg exited %d: %s", res.ExitCode, tail(res.Output, 500))
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return apperr.New(apperr.KindProcessExecution, "audio mix produced no output")
	}
	return nil
}

// probeHasAudio asks ffprobe whether the file carries an audio stream.
// Probe failures default to true: attempting a mix on a silent video is
// recoverable, skipping the original audio is not.
func (e *Engine) probeHasAudio(ctx context.Context, videoPath string) bool {
	res, err := e.runner.Run(ctx, probeTimeout, "ffprobe",
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0",
		videoPath,
	)
	if err != nil || res.TimedOut || res.ExitCode != 0 {
		e.logger.Warn().
			Str("video", videoPath).
			Msg("audio probe failed, assuming audio present")
		return true
	}
	return strings.Contains(res.Output, "audio")
}

func mixArgs(videoPath, musicPath, outputPath string, videoHasAudio bool) []string {
	args := []string{
		"-i", videoPath,
		"-i", musicPath,
	}

	if videoHasAudio {
		// Original audio stays dominant over the background track.
		args = append(args,
			"-filter_complex", "[0:a][1:a]amix=inputs=2:duration=shortest:weights=0.7 0.4[aout]",
			"-map", "0:v",
			"-map", "[aout]",
		)
	} else {
		args = append(args,
			"-map", "0:v",
			"-map", "1:a",
		)
	}

	args = append(args,
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		"-y",
		outputPath,
	)
	return args
}
