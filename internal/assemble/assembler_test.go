package assemble

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/yxzhang/storycut/internal/apperr"
	"github.com/yxzhang/storycut/internal/assets"
	"github.com/yxzhang/storycut/internal/media"
	"github.com/yxzhang/storycut/internal/publish"
	"github.com/yxzhang/storycut/internal/runner"
)

func newTestAssembler(t *testing.T) (*Assembler, string, string) {
	t.Helper()
	tempRoot := t.TempDir()
	musicDir := t.TempDir()
	worksDir := t.TempDir()

	log := zerolog.Nop()
	r := runner.New(log)
	a := New(
		assets.NewResolver(nil, log),
		media.NewEngine(r, log),
		publish.New(worksDir, log),
		tempRoot,
		musicDir,
		log,
	)
	return a, tempRoot, musicDir
}

func TestRunRejectsEmptySources(t *testing.T) {
	a, _, _ := newTestAssembler(t)

	_, err := a.Run(context.Background(), Request{})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRunMissingMusicTrack(t *testing.T) {
	a, _, _ := newTestAssembler(t)

	_, err := a.Run(context.Background(), Request{
		SourceRefs:      []string{"/tmp/whatever.mp4"},
		BackgroundMusic: "no-such-track.mp3",
	})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestRunZeroResolvedSourcesCleansWorkspace(t *testing.T) {
	a, tempRoot, _ := newTestAssembler(t)

	_, err := a.Run(context.Background(), Request{
		SourceRefs: []string{"/definitely/missing/a.mp4", "/definitely/missing/b.mp4"},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	entries, err := os.ReadDir(tempRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace not cleaned up, found %d entries", len(entries))
	}
}

func TestResolveMusicRejectsTraversal(t *testing.T) {
	a, _, musicDir := newTestAssembler(t)

	track := filepath.Join(musicDir, "calm.mp3")
	if err := os.WriteFile(track, []byte("mp3data"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := a.resolveMusic("calm.mp3")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != track {
		t.Errorf("expected %s, got %s", track, got)
	}

	// Base() strips directories, so this resolves to calm.mp3 inside the
	// library rather than escaping it.
	got, err = a.resolveMusic("../../calm.mp3")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != track {
		t.Errorf("traversal name must stay inside the library, got %s", got)
	}

	if _, err := a.resolveMusic(".."); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for bare traversal, got %v", err)
	}
}

func TestCleanupRemovesNestedTree(t *testing.T) {
	a, tempRoot, _ := newTestAssembler(t)

	workDir := filepath.Join(tempRoot, "assemble_test")
	nested := filepath.Join(workDir, "sub", "deeper")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{
		filepath.Join(workDir, "merged.mp4"),
		filepath.Join(nested, "source_0.mp4"),
	} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	a.cleanup(workDir)

	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Errorf("workspace still present after cleanup: %v", err)
	}
}
