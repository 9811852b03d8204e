// Package assemble runs the full pipeline for one request: workspace setup,
// source resolution, concatenation, optional audio mix, publish, cleanup.
package assemble

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yxzhang/storycut/internal/apperr"
	"github.com/yxzhang/storycut/internal/assets"
	"github.com/yxzhang/storycut/internal/media"
	"github.com/yxzhang/storycut/internal/publish"
)

type Assembler struct {
	resolver  *assets.Resolver
	engine    *media.Engine
	publisher *publish.Publisher
	tempRoot  string
	musicDir  string
	logger    zerolog.Logger
}

func New(resolver *assets.Resolver, engine *media.Engine, publisher *publish.Publisher, tempRoot, musicDir string, logger zerolog.Logger) *Assembler {
	return &Assembler{
		resolver:  resolver,
		engine:    engine,
		publisher: publisher,
		tempRoot:  tempRoot,
		musicDir:  musicDir,
		logger:    logger.With().Str("component", "assemble").Logger(),
	}
}

// Request describes one assembly job.
type Request struct {
	SourceRefs      []string
	OutputName      string // optional, defaults to output.mp4
	BackgroundMusic string // optional track file name in the music library
}

// Result describes a successfully published assembly.
type Result struct {
	FileName   string
	ByteSize   int64
	SceneCount int
}

// Run executes the pipeline. The per-request workspace is removed on every
// exit path, success or failure.
func (a *Assembler) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.SourceRefs) == 0 {
		return nil, apperr.New(apperr.KindValidation, "no source videos provided")
	}

	var musicPath string
	if req.BackgroundMusic != "" {
		p, err := a.resolveMusic(req.BackgroundMusic)
		if err != nil {
			return nil, err
		}
		musicPath = p
	}

	workDir := filepath.Join(a.tempRoot, "assemble_"+uuid.New().String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, apperr.Wrap(apperr.KindIO, err, "failed to create workspace")
	}
	defer a.cleanup(workDir)

	log := a.logger.With().Str("workspace", workDir).Logger()
	log.Info().
		Int("sources", len(req.SourceRefs)).
		Str("music", req.BackgroundMusic).
		Msg("assembly started")

	inputs, err := a.resolver.ResolveAll(ctx, req.SourceRefs, workDir)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, apperr.New(apperr.KindValidation, "none of the source videos could be resolved")
	}

	mergedPath := filepath.Join(workDir, "merged.mp4")
	if err := a.engine.Concat(ctx, inputs, workDir, mergedPath); err != nil {
		return nil, err
	}

	finalPath := mergedPath
	if musicPath != "" {
		mixedPath := filepath.Join(workDir, "mixed.mp4")
		if err := a.engine.MixAudio(ctx, mergedPath, musicPath, mixedPath); err != nil {
			return nil, err
		}
		finalPath = mixedPath
	}

	outputName := req.OutputName
	if outputName == "" {
		outputName = "output.mp4"
	}

	pub, err := a.publisher.Publish(finalPath, outputName)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("file", pub.FileName).
		Int("scenes", len(inputs)).
		Msg("assembly published")

	return &Result{
		FileName:   pub.FileName,
		ByteSize:   pub.ByteSize,
		SceneCount: len(inputs),
	}, nil
}

// resolveMusic maps a track file name to the music library, refusing
// anything that would escape it.
func (a *Assembler) resolveMusic(name string) (string, error) {
	clean := filepath.Base(strings.TrimSpace(name))
	if clean == "" || clean == "." || strings.HasPrefix(clean, "..") {
		return "", apperr.New(apperr.KindValidation, "invalid music track name %q", name)
	}

	path := filepath.Join(a.musicDir, clean)
	info, err := os.Stat(path)
	if err != nil {
		return "", apperr.New(apperr.KindNotFound, "music track %q not found", clean)
	}
	if info.IsDir() || info.Size() == 0 {
		return "", apperr.New(apperr.KindNotFound, "music track %q is not a usable file", clean)
	}
	return path, nil
}

// cleanup removes the workspace deepest-first so directory removals never
// race their contents. Failures are logged and swallowed: cleanup must never
// mask the pipeline outcome.
func (a *Assembler) cleanup(workDir string) {
	var paths []string
	err := filepath.Walk(workDir, func(path string, _ os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("workspace", workDir).Msg("workspace walk failed during cleanup")
	}

	sort.Slice(paths, func(i, j int) bool {
		return strings.Count(paths[i], string(filepath.Separator)) > strings.Count(paths[j], string(filepath.Separator))
	})

	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			a.logger.Warn().Err(err).Str("path", p).Msg("failed to remove workspace entry")
		}
	}
}
