package media

import (
	"strings"
	"testing"
)

func TestConcatManifestEscapesQuotes(t *testing.T) {
	got := concatManifest([]string{
		"/tmp/work/a.mp4",
		"/tmp/it's here/b.mp4",
	})

	want := "file '/tmp/work/a.mp4'\n" +
		`file '/tmp/it'\''s here/b.mp4'` + "\n"
	if got != want {
		t.Errorf("manifest mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestConcatArgsUseStreamCopy(t *testing.T) {
	args := concatArgs("/work/list.txt", "/work/out.mp4")
	joined := strings.Join(args, " ")

	for _, frag := range []string{"-f concat", "-safe 0", "-c copy", "-y"} {
		if !strings.Contains(joined, frag) {
			t.Errorf("expected %q in args, got %q", frag, joined)
		}
	}
	if args[len(args)-1] != "/work/out.mp4" {
		t.Errorf("output must be the final argument, got %q", args[len(args)-1])
	}
}

func TestMixArgsWithVideoAudio(t *testing.T) {
	args := mixArgs("/w/video.mp4", "/m/track.mp3", "/w/out.mp4", true)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "amix=inputs=2:duration=shortest:weights=0.7 0.4") {
		t.Errorf("expected amix filter, got %q", joined)
	}
	if !strings.Contains(joined, "-map [aout]") {
		t.Errorf("expected mixed audio mapping, got %q", joined)
	}
	if !strings.Contains(joined, "-c:v copy") {
		t.Errorf("video must be stream-copied, got %q", joined)
	}
	if !strings.Contains(joined, "-shortest") {
		t.Errorf("expected -shortest, got %q", joined)
	}
}

func TestMixArgsWithoutVideoAudio(t *testing.T) {
	args := mixArgs("/w/video.mp4", "/m/track.mp3", "/w/out.mp4", false)
	joined := strings.Join(args, " ")

	if strings.Contains(joined, "amix") {
		t.Errorf("silent video must not use amix, got %q", joined)
	}
	if !strings.Contains(joined, "-map 0:v") || !strings.Contains(joined, "-map 1:a") {
		t.Errorf("expected direct track mapping, got %q", joined)
	}
	if !strings.Contains(joined, "-c:a aac") {
		t.Errorf("audio must be encoded to aac, got %q", joined)
	}
}

func TestTail(t *testing.T) {
	if got := tail("short", 100); got != "short" {
		t.Errorf("expected unchanged string, got %q", got)
	}
	long := strings.Repeat("x", 50) + "the actual error"
	got := tail(long, 20)
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "the actual error") {
		t.Errorf("expected trailing slice with marker, got %q", got)
	}
}
