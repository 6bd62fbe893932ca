package cdp

import (
	"context"
	"fmt"
	"math"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/deskmaster/internal/browser"
	"github.com/nao1215/deskmaster/internal/model"
)

// Capture implements browser.Capturer.
func (b *Browser) Capture(ctx context.Context, clip *model.Rect) ([]byte, error) {
	var scroll [2]float64
	if clip != nil {
		if err := b.runActive(ctx, chromedp.Evaluate("[window.scrollX, window.scrollY]", &scroll)); err != nil {
			return nil, err
		}
	}

	var buf []byte
	err := b.runActive(ctx, chromedp.ActionFunc(func(actx context.Context) error {
		p := page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng)
		if clip != nil && !clip.Empty() {
			p = p.WithClip(&page.Viewport{
				X:      clip.Left + scroll[0],
				Y:      clip.Top + scroll[1],
				Width:  clip.Width(),
				Height: clip.Height(),
				Scale:  1,
			})
		}
		var err error
		buf, err = p.Do(actx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Display implements browser.Window.
func (b *Browser) Display(ctx context.Context) (browser.Display, error) {
	var screen []float64
	if err := b.runActive(ctx, chromedp.Evaluate("[screen.width, screen.height, window.devicePixelRatio]", &screen)); err != nil {
		return browser.Display{}, err
	}
	if len(screen) != 3 {
		return browser.Display{}, fmt.Errorf("%w: unexpected screen info %v", browser.ErrProvider, screen)
	}

	ratio := screen[2]
	d := browser.Display{
		// screen.* is in CSS pixels; multiply back to device pixels.
		Width:  int(math.Round(screen[0] * ratio)),
		Height: int(math.Round(screen[1] * ratio)),
		Scale:  int(math.Round(ratio * 100)),
	}

	var state cdpbrowser.WindowState
	err := b.onBrowser(ctx, func(bctx context.Context) error {
		_, bounds, err := cdpbrowser.GetWindowForTarget().WithTargetID(b.rootID()).Do(bctx)
		if err != nil {
			return err
		}
		state = bounds.WindowState
		return nil
	})
	if err != nil {
		return d, err
	}
	d.Maximized = state == cdpbrowser.WindowStateMaximized || state == cdpbrowser.WindowStateFullscreen
	return d, nil
}

// Maximize implements browser.Window.
func (b *Browser) Maximize(ctx context.Context) error {
	return b.onBrowser(ctx, func(bctx context.Context) error {
		id, _, err := cdpbrowser.GetWindowForTarget().WithTargetID(b.rootID()).Do(bctx)
		if err != nil {
			return err
		}
		return cdpbrowser.SetWindowBounds(id, &cdpbrowser.Bounds{WindowState: cdpbrowser.WindowStateMaximized}).Do(bctx)
	})
}
