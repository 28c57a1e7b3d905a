package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/paperoffice-ai/api-file-processor/errors"
)

var contentDispositionFilename = regexp.MustCompile(`filename="(.+)"`)

// DownloadResult fetches the completed job's result from downloadLink and
// writes it into destDir. The saved filename comes from the response's
// Content-Disposition header, falling back to fallbackName, and is prefixed
// with a millisecond timestamp unless overwrite is set. Downloads are a
// single attempt; a failed download fails the file.
func (c *Client) DownloadResult(ctx context.Context, downloadLink, destDir, fallbackName string, overwrite bool) (string, error) {
	// The link names an arbitrary server-chosen host; never send the API
	// key there. A bad link fails only this file, so no sentinel is used.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadLink, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create download request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "download request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("download returned unexpected HTTP status %d", resp.StatusCode)
	}

	name := resultFilename(resp.Header.Get("Content-Disposition"), fallbackName)
	if !overwrite {
		name = TimestampPrefix(time.Now()) + "_" + name
	}

	destPath := filepath.Join(destDir, name)
	out, err := os.Create(destPath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %q", destPath)
	}
	defer out.Close()

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		os.Remove(destPath)
		return "", errors.Wrapf(err, "failed to write %q", destPath)
	}

	c.logger.Debugw("Result downloaded", "file", name, "bytes", written)
	return name, nil
}

// resultFilename extracts the filename from a Content-Disposition header.
// The server emits raw UTF-8 bytes in the header even though HTTP headers
// are nominally Latin-1; Go hands those bytes through untouched, so valid
// UTF-8 is taken at face value and anything else is decoded byte-per-rune.
// Server-supplied names are reduced to their base name before use.
func resultFilename(header, fallback string) string {
	matches := contentDispositionFilename.FindStringSubmatch(header)
	if matches == nil {
		return fallback
	}
	name := matches[1]
	if !utf8.ValidString(name) {
		runes := make([]rune, 0, len(name))
		for i := 0; i < len(name); i++ {
			runes = append(runes, rune(name[i]))
		}
		name = string(runes)
	}
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return fallback
	}
	return name
}

// TimestampPrefix formats t as YYYYMMDD-HHMMSSmmm, the prefix used both for
// downloaded results and for originals moved into the processed subfolder.
func TimestampPrefix(t time.Time) string {
	return t.Format("20060102-150405") + fmt.Sprintf("%03d", t.Nanosecond()/1e6)
}
