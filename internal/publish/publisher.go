// Package publish moves finished artifacts into the append-only durable area.
package publish

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yxzhang/storycut/internal/apperr"
)

type Publisher struct {
	worksDir string
	logger   zerolog.Logger
}

func New(worksDir string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		worksDir: worksDir,
		logger:   logger.With().Str("component", "publish").Logger(),
	}
}

// Result describes one published artifact.
type Result struct {
	FileName string
	Path     string
	ByteSize int64
}

// Publish copies srcPath into the durable area under a timestamp-prefixed
// name. The source is copied, never moved: the workspace cleanup owns its
// removal, and a failed copy must leave the original intact. O_EXCL
// guarantees a publish never overwrites an earlier work.
func (p *Publisher) Publish(srcPath, baseName string) (*Result, error) {
	if err := os.MkdirAll(p.worksDir, 0755); err != nil {
		return nil, apperr.Wrap(apperr.KindIO, err, "failed to create works dir")
	}

	fileName := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), sanitizeName(baseName))
	destPath := filepath.Join(p.worksDir, fileName)

	src, err := os.Open(srcPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, err, "failed to open artifact %s", srcPath)
	}
	defer src.Close()

	dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, err, "failed to create %s", destPath)
	}

	written, err := io.Copy(dest, src)
	if cerr := dest.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		return nil, apperr.Wrap(apperr.KindIO, err, "failed to copy artifact to %s", destPath)
	}

	p.logger.Info().
		Str("file", fileName).
		Int64("bytes", written).
		Msg("artifact published")

	return &Result{FileName: fileName, Path: destPath, ByteSize: written}, nil
}

// sanitizeName strips path separators and oddities so a caller-supplied name
// can never escape the works dir.
func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "output.mp4"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if !strings.HasSuffix(out, ".mp4") {
		out += ".mp4"
	}
	return out
}
