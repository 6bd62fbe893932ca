package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// Tool server names used by default.
const (
	DefaultVisionServer = "gemini"
	DefaultVisionTool   = "generate_content"
	DefaultOCRServer    = "ocr"
	DefaultOCRTool      = "perform_ocr"
)

// DefaultToolCallsPerSecond paces calls to the external tool servers.
const DefaultToolCallsPerSecond = 2.0

// ToolServer describes how to launch one out-of-process tool server.
// Servers speak MCP over stdio and are started on first use.
type ToolServer struct {
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// ToolRef names a tool on a server.
type ToolRef struct {
	Server string `yaml:"server"`
	Tool   string `yaml:"tool"`
}

// ToolsConfig lists the tool servers and which tools the automation calls.
type ToolsConfig struct {
	// Servers maps a server name to its launch command.
	Servers map[string]ToolServer `yaml:"servers,omitempty"`

	// MCPFile is an optional .mcp.json whose "mcpServers" entries are merged
	// into Servers. Entries in Servers win on conflict.
	MCPFile string `yaml:"mcp_file,omitempty"`

	Vision ToolRef `yaml:"vision"`
	OCR    ToolRef `yaml:"ocr"`

	// CallsPerSecond limits the rate of tool calls; 0 disables pacing.
	CallsPerSecond float64 `yaml:"calls_per_second"`
}

// NewToolsConfig returns the default tool configuration.
func NewToolsConfig() ToolsConfig {
	return ToolsConfig{
		Servers:        map[string]ToolServer{},
		Vision:         ToolRef{Server: DefaultVisionServer, Tool: DefaultVisionTool},
		OCR:            ToolRef{Server: DefaultOCRServer, Tool: DefaultOCRTool},
		CallsPerSecond: DefaultToolCallsPerSecond,
	}
}

// mcpFile is the layout of a .mcp.json file.
type mcpFile struct {
	MCPServers map[string]ToolServer `json:"mcpServers"`
}

// LoadMCPFile reads the "mcpServers" section of a .mcp.json file.
func LoadMCPFile(path string) (map[string]ToolServer, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f mcpFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if f.MCPServers == nil {
		f.MCPServers = map[string]ToolServer{}
	}
	return f.MCPServers, nil
}

// MergeServers adds servers that are not configured yet.
func (t *ToolsConfig) MergeServers(servers map[string]ToolServer) {
	if t.Servers == nil {
		t.Servers = map[string]ToolServer{}
	}
	for name, s := range servers {
		if _, ok := t.Servers[name]; !ok {
			t.Servers[name] = s
		}
	}
}

// ServerNames returns the configured server names in sorted order.
func (t *ToolsConfig) ServerNames() []string {
	names := make([]string, 0, len(t.Servers))
	for name := range t.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Environ returns the server environment with ${VAR} references expanded
// from the process environment, appended to os.Environ().
func (s ToolServer) Environ() []string {
	env := os.Environ()
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+os.ExpandEnv(s.Env[k]))
	}
	return env
}
