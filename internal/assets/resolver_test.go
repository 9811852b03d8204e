package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/yxzhang/storycut/internal/apperr"
)

// fakeMP4 is a minimal ISO-BMFF header: size box + "ftyp" + brand + padding.
var fakeMP4 = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 0, 0}

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestResolveCatalogKey(t *testing.T) {
	dir := t.TempDir()
	clip := writeFile(t, dir, "intro.mp4", fakeMP4)

	r := NewResolver(map[string]string{"intro": clip}, zerolog.Nop())

	got, err := r.ResolveAll(context.Background(), []string{"intro"}, t.TempDir())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(got) != 1 || got[0] != clip {
		t.Errorf("expected [%s], got %v", clip, got)
	}
}

func TestResolveLocalPath(t *testing.T) {
	dir := t.TempDir()
	clip := writeFile(t, dir, "scene.mp4", fakeMP4)

	r := NewResolver(nil, zerolog.Nop())

	got, err := r.ResolveAll(context.Background(), []string{clip}, t.TempDir())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(got) != 1 || got[0] != clip {
		t.Errorf("expected [%s], got %v", clip, got)
	}
}

func TestResolveURLDownloadsIntoWorkspace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("expected browser user agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Write(fakeMP4)
	}))
	defer srv.Close()

	r := NewResolver(nil, zerolog.Nop())
	workDir := t.TempDir()

	got, err := r.ResolveAll(context.Background(), []string{srv.URL + "/clip.mp4"}, workDir)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 resolved source, got %d", len(got))
	}
	if filepath.Dir(got[0]) != workDir {
		t.Errorf("downloaded file should live in the workspace, got %s", got[0])
	}
}

func TestResolveDropsFailuresKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "a.mp4", fakeMP4)
	third := writeFile(t, dir, "c.mp4", fakeMP4)

	r := NewResolver(nil, zerolog.Nop())

	got, err := r.ResolveAll(context.Background(), []string{
		first,
		filepath.Join(dir, "missing.mp4"),
		third,
	}, t.TempDir())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 survivors, got %d: %v", len(got), got)
	}
	if got[0] != first || got[1] != third {
		t.Errorf("order not preserved: %v", got)
	}
}

func TestResolveDropsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.mp4", nil)

	r := NewResolver(nil, zerolog.Nop())

	got, err := r.ResolveAll(context.Background(), []string{empty}, t.TempDir())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty files must be dropped, got %v", got)
	}
}

func TestValidateLocalErrors(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(nil, zerolog.Nop())

	_, err := r.validateLocal(filepath.Join(dir, "nope.mp4"), "nope.mp4")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	short := writeFile(t, dir, "short.mp4", []byte("hi"))
	_, err = r.validateLocal(short, "short.mp4")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for short file, got %v", err)
	}
}

func TestSniffContainer(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content []byte
		want    bool
	}{
		{"mp4", fakeMP4, true},
		{"matroska", append([]byte{0x1A, 0x45, 0xDF, 0xA3}, make([]byte, 8)...), true},
		{"avi", []byte("RIFF\x00\x00\x00\x00AVI LIST"), true},
		{"unknown", []byte("not a video at all!!"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, tc.name+".bin", tc.content)
			got, err := sniffContainer(path)
			if err != nil {
				t.Fatalf("sniff failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
