// Package assets turns source references (catalog keys, local paths, URLs)
// into validated local video files inside a request workspace.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yxzhang/storycut/internal/apperr"
)

const (
	downloadTimeout = 5 * time.Minute

	// Some CDNs reject requests without a browser-looking agent.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

type Resolver struct {
	catalog    map[string]string // symbolic key -> local file path
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewResolver(catalog map[string]string, logger zerolog.Logger) *Resolver {
	return &Resolver{
		catalog: catalog,
		httpClient: &http.Client{
			Timeout: downloadTimeout,
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		logger: logger.With().Str("component", "assets").Logger(),
	}
}

// ResolveAll materializes every reference into workDir concurrently, keeping
// input order. References that fail to resolve or fail validation are dropped
// with a warning; one bad scene should not sink the whole assembly.
func (r *Resolver) ResolveAll(ctx context.Context, refs []string, workDir string) ([]string, error) {
	resolved := make([]string, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			path, err := r.resolve(gctx, ref, workDir, i)
			if err != nil {
				r.logger.Warn().
					Err(err).
					Int("index", i).
					Str("ref", ref).
					Msg("dropping unresolvable source")
				return nil
			}
			resolved[i] = path
			return nil
		})
	}
	// Goroutines never return errors; Wait only propagates ctx cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(resolved))
	for _, p := range resolved {
		if p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// resolve tries, in order: catalog key, existing local path, remote URL.
func (r *Resolver) resolve(ctx context.Context, ref, workDir string, index int) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", apperr.New(apperr.KindValidation, "empty source reference")
	}

	if local, ok := r.catalog[ref]; ok {
		return r.validateLocal(local, ref)
	}

	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return r.validateLocal(ref, ref)
	}

	dest := filepath.Join(workDir, fmt.Sprintf("source_%d.mp4", index))
	if err := r.download(ctx, ref, dest); err != nil {
		return "", err
	}
	return r.validateLocal(dest, ref)
}

func (r *Resolver) validateLocal(path, ref string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", apperr.Wrap(apperr.KindNotFound, err, "source %q not found at %s", ref, path)
	}
	if info.IsDir() {
		return "", apperr.New(apperr.KindValidation, "source %q is a directory", ref)
	}
	if info.Size() == 0 {
		return "", apperr.New(apperr.KindValidation, "source %q is empty", ref)
	}

	known, err := sniffContainer(path)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIO, err, "failed to read %s", path)
	}
	if info.Size() < sniffLen {
		return "", apperr.New(apperr.KindValidation, "source %q is too short to be a video", ref)
	}
	if !known {
		// Lenient: the concat stage is the real arbiter, and some valid
		// containers are not in the signature list.
		r.logger.Debug().Str("ref", ref).Msg("unrecognized container signature, accepting")
	}
	return path, nil
}

func (r *Resolver) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, err, "failed to create download request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, err, "download failed for %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperr.New(apperr.KindIO, "download of %s returned status %d", url, resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, err, "failed to create %s", dest)
	}

	written, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return apperr.Wrap(apperr.KindIO, err, "failed to write %s", dest)
	}

	r.logger.Debug().
		Str("url", url).
		Int64("bytes", written).
		Msg("source downloaded")
	return nil
}

const sniffLen = 12

// sniffContainer reports whether the file starts with a known video
// container signature. Files shorter than sniffLen report false with no
// error; the caller treats those as invalid.
func sniffContainer(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(f, header)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	header = header[:n]

	// ISO-BMFF (MP4, MOV): "ftyp" box at offset 4.
	if bytes.Equal(header[4:8], []byte("ftyp")) {
		return true, nil
	}
	// Matroska / WebM EBML header.
	if bytes.Equal(header[:4], []byte{0x1A, 0x45, 0xDF, 0xA3}) {
		return true, nil
	}
	// AVI: RIFF container with "AVI " form type.
	if bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("AVI ")) {
		return true, nil
	}

	return false, nil
}
