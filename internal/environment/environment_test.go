package environment

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/deskmaster/internal/browser"
	"github.com/nao1215/deskmaster/internal/browser/browsertest"
	"github.com/nao1215/deskmaster/internal/config"
	dmlog "github.com/nao1215/deskmaster/internal/log"
)

type stuckWindow struct {
	disp browser.Display
}

func (w stuckWindow) Display(context.Context) (browser.Display, error) { return w.disp, nil }

func (stuckWindow) Maximize(context.Context) error { return nil }

func TestVerify(t *testing.T) {
	t.Parallel()

	want := config.NewConfig().Display

	tests := []struct {
		name    string
		disp    browser.Display
		skip    bool
		wantErr error
	}{
		{name: "matches", disp: browser.Display{Width: 1920, Height: 1080, Scale: 100, Maximized: true}},
		{name: "maximizes the window", disp: browser.Display{Width: 1920, Height: 1080, Scale: 100}},
		{name: "wrong resolution", disp: browser.Display{Width: 2560, Height: 1440, Scale: 100, Maximized: true}, wantErr: ErrResolution},
		{name: "zoomed", disp: browser.Display{Width: 1920, Height: 1080, Scale: 125, Maximized: true}, wantErr: ErrScale},
		{name: "skipped", disp: browser.Display{}, skip: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := browsertest.New(browsertest.ListPage("https://list"))
			f.Disp = tt.disp
			d := want
			d.SkipCheck = tt.skip
			var buf bytes.Buffer

			err := Verify(context.Background(), f, d, dmlog.NewRecorderWriter(&buf))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Verify() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil && !strings.Contains(buf.String(), `"recoverable":false`) {
				t.Errorf("mismatch must be logged as unrecoverable: %s", buf.String())
			}
			if tt.wantErr == nil && !tt.skip {
				got, _ := f.Display(context.Background())
				if !got.Maximized {
					t.Error("window must end up maximized")
				}
			}
		})
	}

	t.Run("cannot maximize", func(t *testing.T) {
		t.Parallel()
		w := stuckWindow{disp: browser.Display{Width: 1920, Height: 1080, Scale: 100}}
		if err := Verify(context.Background(), w, want, dmlog.Discard()); !errors.Is(err, ErrNotMaximized) {
			t.Errorf("Verify() error = %v, want ErrNotMaximized", err)
		}
	})
}
