package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/nao1215/deskmaster/internal/model"
)

var captureSeq atomic.Uint64

// SaveCapture captures clip (or the viewport when nil) and writes it as
// <dir>/<prefix>_YYYYMMDD_HHMMSS_<n>.png. It returns the file path.
func SaveCapture(ctx context.Context, c Capturer, clip *model.Rect, dir, prefix string) (string, error) {
	data, err := c.Capture(ctx, clip)
	if err != nil {
		return "", fmt.Errorf("capture failed: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty screenshot", ErrProvider)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create artifacts directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%03d.png", prefix, time.Now().Format("20060102_150405"), captureSeq.Add(1))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}
