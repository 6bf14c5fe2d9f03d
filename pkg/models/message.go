package models

import (
	"encoding/json"
	"time"
)

// SurfaceType identifies what invoked a run: an interactive CLI command, the
// long-running HTTP service, a cron trigger, or a sub-agent spawned by
// another run. It is carried on Session/Message the way the gateway this
// module descends from carried a chat-platform identifier, but the values
// here name invocation surfaces, not messaging platforms.
type SurfaceType string

const (
	SurfaceCLI      SurfaceType = "cli"
	SurfaceHTTP     SurfaceType = "http"
	SurfaceCron     SurfaceType = "cron"
	SurfaceSubAgent SurfaceType = "subagent"
)

// Direction indicates if a message is inbound (from the caller) or outbound
// (from the loop).
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Role indicates the message author type, matching the model-hook
// conversation roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one turn of a session: a user prompt, an assistant reply, a
// tool result fed back to the model, or a system message forming part of
// the stable prefix.
type Message struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	Surface     SurfaceType    `json:"surface"`
	SurfaceID   string         `json:"surface_id"` // caller-assigned correlation id (request id, cron run id, ...)
	Direction   Direction      `json:"direction"`
	Role        Role           `json:"role"`
	Content     string         `json:"content"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	ToolCalls   []ToolCall     `json:"tool_calls,omitempty"`
	ToolResults []ToolResult   `json:"tool_results,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Attachment represents a file a tool call produced or a prompt referenced.
type Attachment struct {
	ID       string `json:"id"`
	Type     string `json:"type"` // image, audio, video, document
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// ToolCall represents the model's request to execute a tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult represents the output of a tool execution fed back to the
// model as a tool-role message.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Session is a run's persistent identity: the turns accumulated across
// process restarts, the surface that opened it, and the continuation chain
// it belongs to (see sessions.BaseSessionID/NewChainSessionID).
type Session struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agent_id"`
	Surface   SurfaceType    `json:"surface"`
	SurfaceID string         `json:"surface_id"`
	Key       string         `json:"key"`
	Title     string         `json:"title,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
