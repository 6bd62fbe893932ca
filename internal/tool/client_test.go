package tool

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nao1215/deskmaster/internal/config"
)

type visionArgs struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image"`
}

type ocrArgs struct {
	InputData string `json:"input_data"`
	Language  string `json:"language"`
	Config    string `json:"config"`
}

func text(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}

// fakeServers wires in-memory MCP servers and counts dials.
type fakeServers struct {
	dials  atomic.Int32
	vision string
	ocr    string
	fail   bool
	seen   atomic.Value
}

func (f *fakeServers) dial(ctx context.Context, name string, _ config.ToolServer) (*mcp.ClientSession, error) {
	f.dials.Add(1)

	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: "test"}, nil)
	switch name {
	case "gemini":
		mcp.AddTool(server, &mcp.Tool{Name: "generate_content"}, func(_ context.Context, _ *mcp.CallToolRequest, in visionArgs) (*mcp.CallToolResult, any, error) {
			f.seen.Store(in.Image)
			if f.fail {
				return nil, nil, errors.New("quota exceeded")
			}
			return text(f.vision), nil, nil
		})
	case "ocr":
		mcp.AddTool(server, &mcp.Tool{Name: "perform_ocr"}, func(_ context.Context, _ *mcp.CallToolRequest, in ocrArgs) (*mcp.CallToolResult, any, error) {
			f.seen.Store(in.InputData + "|" + in.Language + "|" + in.Config)
			return text(f.ocr), nil, nil
		})
	}

	st, ct := mcp.NewInMemoryTransports()
	if _, err := server.Connect(ctx, st, nil); err != nil {
		return nil, err
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "deskmaster-test", Version: "test"}, nil)
	return client.Connect(ctx, ct, nil)
}

func newTestClient(f *fakeServers) *Client {
	cfg := config.NewToolsConfig()
	cfg.CallsPerSecond = 0
	cfg.Servers = map[string]config.ToolServer{
		"gemini": {Command: "unused"},
		"ocr":    {Command: "unused"},
	}
	return NewClient(cfg, WithDial(f.dial))
}

func TestClient_SolveCaptcha(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := &fakeServers{vision: `{"answer": " 7KQ2 ", "confidence": 0.93}`}
	c := newTestClient(f)
	defer c.Close()

	sol, err := c.SolveCaptcha(ctx, "/tmp/captcha.png")
	if err != nil {
		t.Fatalf("SolveCaptcha() error = %v", err)
	}
	if sol.Answer != "7KQ2" || sol.Confidence != 0.93 {
		t.Errorf("unexpected solution %+v", sol)
	}
	if f.seen.Load() != "/tmp/captcha.png" {
		t.Errorf("image argument = %v", f.seen.Load())
	}

	if _, err := c.SolveCaptcha(ctx, "/tmp/again.png"); err != nil {
		t.Fatal(err)
	}
	if f.dials.Load() != 1 {
		t.Errorf("server started %d times, want 1", f.dials.Load())
	}
}

func TestClient_ToolError(t *testing.T) {
	t.Parallel()

	c := newTestClient(&fakeServers{fail: true})
	defer c.Close()

	_, err := c.SolveCaptcha(context.Background(), "x.png")
	if !errors.Is(err, ErrToolFailed) {
		t.Errorf("expected ErrToolFailed, got %v", err)
	}
}

func TestClient_ExtractText(t *testing.T) {
	t.Parallel()

	f := &fakeServers{ocr: "텐트 리뷰 1,234\n의자 리뷰 56"}
	c := newTestClient(f)
	defer c.Close()

	got, err := c.ExtractText(context.Background(), "/tmp/viewport.png", "kor+eng")
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if !strings.Contains(got, "리뷰 1,234") {
		t.Errorf("unexpected text %q", got)
	}
	if f.seen.Load() != "/tmp/viewport.png|kor+eng|"+OCRConfig {
		t.Errorf("arguments = %v", f.seen.Load())
	}
}

func TestClient_EmptyResult(t *testing.T) {
	t.Parallel()

	c := newTestClient(&fakeServers{ocr: "  "})
	defer c.Close()

	if _, err := c.ExtractText(context.Background(), "x.png", "kor"); !errors.Is(err, ErrEmptyResult) {
		t.Errorf("expected ErrEmptyResult, got %v", err)
	}
}

func TestClient_UnknownServer(t *testing.T) {
	t.Parallel()

	cfg := config.NewToolsConfig()
	c := NewClient(cfg, WithDial(func(context.Context, string, config.ToolServer) (*mcp.ClientSession, error) {
		t.Fatal("dial must not be called")
		return nil, nil
	}))

	if _, err := c.SolveCaptcha(context.Background(), "x.png"); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func TestClient_DialFailure(t *testing.T) {
	t.Parallel()

	cfg := config.NewToolsConfig()
	cfg.Servers = map[string]config.ToolServer{"ocr": {Command: "missing"}}
	c := NewClient(cfg, WithDial(func(context.Context, string, config.ToolServer) (*mcp.ClientSession, error) {
		return nil, errors.New("exec: not found")
	}))

	if _, err := c.ExtractText(context.Background(), "x.png", "kor"); !errors.Is(err, ErrToolFailed) {
		t.Errorf("expected ErrToolFailed, got %v", err)
	}
}

func TestClient_Close(t *testing.T) {
	t.Parallel()

	f := &fakeServers{vision: "abc", ocr: "x"}
	c := newTestClient(f)
	ctx := context.Background()

	if _, err := c.SolveCaptcha(ctx, "a.png"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ExtractText(ctx, "b.png", "kor"); err != nil {
		t.Fatal(err)
	}
	if len(c.Started()) != 2 {
		t.Fatalf("Started() = %v", c.Started())
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if len(c.Started()) != 0 {
		t.Errorf("servers still registered after Close: %v", c.Started())
	}
}

func TestParseSolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    Solution
		wantErr error
	}{
		{name: "json", in: `{"answer":"abc","confidence":0.5}`, want: Solution{Answer: "abc", Confidence: 0.5}},
		{name: "fenced json", in: "```json\n{\"answer\":\"abc\",\"confidence\":0.9}\n```", want: Solution{Answer: "abc", Confidence: 0.9}},
		{name: "json without confidence", in: `{"answer":"abc"}`, want: Solution{Answer: "abc", Confidence: DefaultConfidence}},
		{name: "explicit zero confidence", in: `{"answer":"AB12","confidence":0}`, want: Solution{Answer: "AB12", Confidence: 0}},
		{name: "confidence of one", in: `{"answer":"AB12","confidence":1}`, want: Solution{Answer: "AB12", Confidence: 1}},
		{name: "percentage confidence", in: `{"answer":"AB12","confidence":95}`, want: Solution{Answer: "AB12", Confidence: 0.95}},
		{name: "low percentage confidence", in: `{"answer":"AB12","confidence":40}`, want: Solution{Answer: "AB12", Confidence: 0.4}},
		{name: "confidence above percentage range", in: `{"answer":"AB12","confidence":250}`, wantErr: ErrInvalidConfidence},
		{name: "negative confidence", in: `{"answer":"AB12","confidence":-0.3}`, wantErr: ErrInvalidConfidence},
		{name: "bare answer", in: "  XK29 \nsome explanation", want: Solution{Answer: "XK29", Confidence: DefaultConfidence}},
		{name: "empty json answer", in: `{"answer":""}`, wantErr: ErrEmptyResult},
		{name: "blank", in: "   ", wantErr: ErrEmptyResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseSolution(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("parseSolution() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("parseSolution() = %+v, %v, want %+v", got, err, tt.want)
			}
		})
	}
}
