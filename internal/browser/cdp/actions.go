package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/deskmaster/internal/browser"
	"github.com/nao1215/deskmaster/internal/model"
)

// elementOf resolves text nodes to their parent element inside page scripts.
const elementOf = `const el = this.nodeType === Node.TEXT_NODE ? this.parentElement : this;`

const clickScript = `function() {` + elementOf + `
	el.scrollIntoView({block: "center"});
	el.click();
}`

const hrefScript = `function() {` + elementOf + `
	const a = el.closest("a[href]");
	return a ? a.href : "";
}`

const ctrlClickScript = `function() {` + elementOf + `
	el.scrollIntoView({block: "center"});
	el.dispatchEvent(new MouseEvent("click", {bubbles: true, cancelable: true, ctrlKey: true, metaKey: true}));
}`

// setValueScript takes the JSON-quoted value as its only format argument.
const setValueScript = `function() {` + elementOf + `
	el.focus();
	el.value = %s;
	el.dispatchEvent(new Event("input", {bubbles: true}));
	el.dispatchEvent(new Event("change", {bubbles: true}));
}`

// callOn runs fn on the DOM node behind el with a user gesture and
// decodes the returned value into out when out is not nil.
func (b *Browser) callOn(ctx context.Context, el *model.Element, fn string, out any) error {
	if el == nil || el.BackendID == 0 {
		return browser.ErrNotFound
	}
	return b.runActive(ctx, chromedp.ActionFunc(func(actx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(cdp.BackendNodeID(el.BackendID)).Do(actx)
		if err != nil {
			return fmt.Errorf("%w: resolve %s: %w", browser.ErrNotFound, el.ID, err)
		}
		defer func() {
			_ = runtime.ReleaseObject(obj.ObjectID).Do(actx)
		}()

		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithUserGesture(true).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(actx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("script exception: %s", exc.Text)
		}
		if out != nil && res != nil && len(res.Value) > 0 {
			return json.Unmarshal([]byte(res.Value), out)
		}
		return nil
	}))
}

// Invoke implements browser.Actor.
func (b *Browser) Invoke(ctx context.Context, el *model.Element) error {
	return b.callOn(ctx, el, clickScript, nil)
}

// OpenInNewTab implements browser.Actor. Links open through a background
// target; anything else gets a modifier click.
func (b *Browser) OpenInNewTab(ctx context.Context, el *model.Element) error {
	var href string
	if err := b.callOn(ctx, el, hrefScript, &href); err != nil {
		return err
	}
	if href == "" {
		return b.callOn(ctx, el, ctrlClickScript, nil)
	}
	return b.onBrowser(ctx, func(bctx context.Context) error {
		_, err := target.CreateTarget(href).WithBackground(true).Do(bctx)
		return err
	})
}

// SetValue implements browser.Actor.
func (b *Browser) SetValue(ctx context.Context, el *model.Element, value string) error {
	quoted, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.callOn(ctx, el, fmt.Sprintf(setValueScript, quoted), nil)
}

// Scroll implements browser.Actor.
func (b *Browser) Scroll(ctx context.Context, dy float64) error {
	expr := "window.scrollBy(0, " + strconv.FormatFloat(dy, 'f', 0, 64) + ")"
	return b.runActive(ctx, chromedp.Evaluate(expr, nil))
}

// ViewportHeight implements browser.Actor.
func (b *Browser) ViewportHeight(ctx context.Context) (float64, error) {
	var h float64
	if err := b.runActive(ctx, chromedp.Evaluate("window.innerHeight", &h)); err != nil {
		return 0, err
	}
	return h, nil
}
