package genai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type debugEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"`
	Model     string    `json:"model"`
	Params    any       `json:"params"`
	Response  any       `json:"response"`
}

// writeDebugLog stores one request/response pair under stateDir/debug. Failures are logged only.
func (c *Client) writeDebugLog(method string, params, response any) {
	if c.stateDir == "" {
		return
	}
	dir := filepath.Join(c.stateDir, "debug")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("Client.writeDebugLog: failed to create debug directory", "dir", dir, "error", err)
		return
	}
	now := time.Now().UTC()
	entry := debugEntry{Timestamp: now, Method: method, Model: c.model, Params: params, Response: response}
	raw, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		slog.Warn("Client.writeDebugLog: failed to marshal entry", "error", err)
		return
	}
	name := fmt.Sprintf("%s_%s.json", now.Format("20060102T150405.000000000"), method)
	if err := os.WriteFile(filepath.Join(dir, name), raw, 0644); err != nil {
		slog.Warn("Client.writeDebugLog: failed to write entry", "file", name, "error", err)
	}
}
