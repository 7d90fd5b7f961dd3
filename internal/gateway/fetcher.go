package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"lympho-lens/internal/logger"
)

// ProgressFunc receives a load fraction in [0,1].
type ProgressFunc func(fraction float64)

// Fetcher resolves a model location to a local, uncompressed file.
// Remote and compressed sources are materialized into the cache directory.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	log      logger.Logger
}

func NewFetcher(client *http.Client, cacheDir string, log logger.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Fetcher{client: client, cacheDir: cacheDir, log: log}
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func localPath(source string) string {
	if strings.HasPrefix(source, "file://") {
		if u, err := url.Parse(source); err == nil {
			return u.Path
		}
	}
	return source
}

// uncompressedName strips a .zst or .gz suffix.
func uncompressedName(name string) (string, string) {
	for _, ext := range []string{".zst", ".gz"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext), ext
		}
	}
	return name, ""
}

// Fetch returns a local path for source. Progress is reported as bytes read
// over the known size and is monotonic; it is not forced to 1.
func (f *Fetcher) Fetch(ctx context.Context, source string, onProgress ProgressFunc) (string, error) {
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	if !isRemote(source) {
		return f.fetchLocal(ctx, localPath(source), onProgress)
	}
	return f.fetchRemote(ctx, source, onProgress)
}

func (f *Fetcher) fetchLocal(ctx context.Context, p string, onProgress ProgressFunc) (string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("model file unavailable: %w", err)
	}

	plain, ext := uncompressedName(filepath.Base(p))
	if ext == "" {
		onProgress(1)
		return p, nil
	}

	dst := filepath.Join(f.cacheDir, plain)
	if cached(dst) {
		onProgress(1)
		return dst, nil
	}

	file, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("failed to open model: %w", err)
	}
	defer file.Close()

	body := newProgressReader(ctx, file, info.Size(), onProgress)
	if err := f.store(body, ext, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, source string, onProgress ProgressFunc) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("invalid model URL: %w", err)
	}

	plain, ext := uncompressedName(path.Base(u.Path))
	dst := filepath.Join(f.cacheDir, plain)
	if cached(dst) {
		f.log.Debug("ModelFetcher", "using cached model", map[string]interface{}{"path": dst})
		onProgress(1)
		return dst, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("model download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model download failed: HTTP %d", resp.StatusCode)
	}

	f.log.Info("ModelFetcher", "downloading model", map[string]interface{}{
		"url":   source,
		"bytes": resp.ContentLength,
	})

	body := newProgressReader(ctx, resp.Body, resp.ContentLength, onProgress)
	if err := f.store(body, ext, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// FetchOptional retrieves a small companion file such as a manifest. A
// remote 404 or a missing local file yields ("", nil).
func (f *Fetcher) FetchOptional(ctx context.Context, source string) (string, error) {
	if !isRemote(source) {
		p := localPath(source)
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return p, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: HTTP %d", source, resp.StatusCode)
	}

	u, _ := url.Parse(source)
	dst := filepath.Join(f.cacheDir, path.Base(u.Path))
	if err := f.store(resp.Body, "", dst); err != nil {
		return "", err
	}
	return dst, nil
}

// store writes r (decompressed according to ext) to dst through a temp
// file so a failed transfer never leaves a partial model in the cache.
func (f *Fetcher) store(r io.Reader, ext, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := decompress(tmp, r, ext); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to flush model: %w", err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("failed to move model into cache: %w", err)
	}
	return nil
}

func decompress(w io.Writer, r io.Reader, ext string) error {
	switch ext {
	case ".zst":
		dec, err := zstd.NewReader(r)
		if err != nil {
			return fmt.Errorf("invalid zstd stream: %w", err)
		}
		defer dec.Close()
		if _, err := io.Copy(w, dec); err != nil {
			return fmt.Errorf("zstd decompression failed: %w", err)
		}
	case ".gz":
		dec, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("invalid gzip stream: %w", err)
		}
		defer dec.Close()
		if _, err := io.Copy(w, dec); err != nil {
			return fmt.Errorf("gzip decompression failed: %w", err)
		}
	default:
		if _, err := io.Copy(w, r); err != nil {
			return fmt.Errorf("model transfer failed: %w", err)
		}
	}
	return nil
}

func cached(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

type progressReader struct {
	ctx      context.Context
	r        io.Reader
	total    int64
	read     int64
	last     float64
	progress ProgressFunc
}

func newProgressReader(ctx context.Context, r io.Reader, total int64, progress ProgressFunc) *progressReader {
	return &progressReader{ctx: ctx, r: r, total: total, progress: progress}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}

	n, err := p.r.Read(buf)
	p.read += int64(n)

	if p.total > 0 && n > 0 {
		fraction := float64(p.read) / float64(p.total)
		if fraction > 1 {
			fraction = 1
		}
		if fraction > p.last {
			p.last = fraction
			p.progress(fraction)
		}
	}
	return n, err
}
