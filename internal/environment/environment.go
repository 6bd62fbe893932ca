package environment

import (
	"context"
	"fmt"

	"github.com/nao1215/deskmaster/internal/browser"
	"github.com/nao1215/deskmaster/internal/config"
	dmlog "github.com/nao1215/deskmaster/internal/log"
)

// Verify checks resolution and scale against want and maximizes the
// browser window when needed. Every failure is final.
func Verify(ctx context.Context, w browser.Window, want config.DisplayConfig, rec *dmlog.Recorder) error {
	if want.SkipCheck {
		rec.Info("environment check skipped")
		return nil
	}

	d, err := w.Display(ctx)
	if err != nil {
		return fail(rec, fmt.Errorf("read display: %w", err))
	}
	rec.Info("display", "width", d.Width, "height", d.Height, "scale", d.Scale, "maximized", d.Maximized)

	if d.Width != want.Width || d.Height != want.Height {
		return fail(rec, fmt.Errorf("%w: expected %dx%d, got %dx%d", ErrResolution, want.Width, want.Height, d.Width, d.Height))
	}
	if d.Scale != want.Scale {
		return fail(rec, fmt.Errorf("%w: expected %d%%, got %d%%", ErrScale, want.Scale, d.Scale))
	}

	if !d.Maximized {
		rec.Info("browser window not maximized, maximizing")
		if err := w.Maximize(ctx); err != nil {
			return fail(rec, fmt.Errorf("%w: %w", ErrNotMaximized, err))
		}
		d, err = w.Display(ctx)
		if err != nil {
			return fail(rec, fmt.Errorf("read display: %w", err))
		}
		if !d.Maximized {
			return fail(rec, ErrNotMaximized)
		}
	}

	rec.Info("environment verified")
	return nil
}

func fail(rec *dmlog.Recorder, err error) error {
	rec.Error(dmlog.CodeEnvironment, err.Error(), false)
	return err
}
