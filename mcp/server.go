// Package mcp exposes the retrieval state as MCP tools over a stdio
// JSON-RPC transport.
package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/lavafroth/silos/db"
	"github.com/lavafroth/silos/models"
	"github.com/lavafroth/silos/state"
)

// StdioServer handles MCP communication over stdio
type StdioServer struct {
	config Config
	db     *gorm.DB

	reader io.Reader
	writer *bufio.Writer

	// Tool registry
	tools map[string]ToolHandler
	mu    sync.RWMutex

	// Retrieval state serving the tool calls
	state *state.State

	// Session tracking
	session *models.Session

	// Debug logging
	debugLog func(format string, args ...any)
}

// ToolHandler represents a function that handles a tool call
type ToolHandler func(params json.RawMessage) (any, error)

// NewStdioServer creates a new MCP server that communicates over stdio
func NewStdioServer(config Config, st *state.State) (*StdioServer, error) {
	server := &StdioServer{
		config: config,
		reader: os.Stdin,
		writer: bufio.NewWriter(os.Stdout),
		tools:  make(map[string]ToolHandler),
		state:  st,
	}

	// Set debug logger
	if config.Debug {
		server.debugLog = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
		}
	} else {
		server.debugLog = func(format string, args ...any) {}
	}

	// Initialize request history if a database was configured
	if config.DatabaseURL != "" && config.DatabaseURL != "skip" {
		database, err := db.Connect(config.DatabaseURL, config.Debug)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		server.db = database

		session := &models.Session{
			ID: models.NewID(),
		}
		if err := server.db.Create(session).Error; err != nil {
			server.debugLog("Failed to create session: %v", err)
		} else {
			server.session = session
			server.debugLog("Session created: %s", session.ID)
		}
	}

	server.registerBuiltinTools()

	return server, nil
}

// Start begins processing JSON-RPC requests from stdin
func (s *StdioServer) Start() error {
	sessionID := ""
	if s.session != nil {
		sessionID = s.session.ID
	}
	s.debugLog("MCP server started, session: %s", sessionID)

	decoder := json.NewDecoder(s.reader)

	for {
		var req Request
		err := decoder.Decode(&req)

		if err == io.EOF {
			s.debugLog("EOF received, shutting down gracefully")
			return s.closeSession()
		}

		if err != nil {
			if err == io.ErrUnexpectedEOF {
				s.debugLog("Unexpected EOF, waiting for more data")
				continue
			}

			errMsg := fmt.Sprintf("JSON decode error: %v", err)
			if syntaxErr, ok := err.(*json.SyntaxError); ok {
				errMsg = fmt.Sprintf("JSON syntax error at position %d: %v", syntaxErr.Offset, err)
			}

			// Send parse error but continue running
			s.debugLog("%s", errMsg)
			s.sendResponse(ErrorResponse(nil, ParseError, errMsg))

			decoder = json.NewDecoder(s.reader)
			continue
		}

		reqLog := fmt.Sprintf("%v", req)
		if len(reqLog) > 200 {
			reqLog = reqLog[:200] + "..."
		}
		s.debugLog("Received: %s", reqLog)

		response := s.handleRequest(req)

		// Don't send response for notifications (no ID)
		if req.ID != nil {
			s.sendResponse(response)
		}
	}
}

// handleRequest routes requests to appropriate handlers
func (s *StdioServer) handleRequest(req Request) Response {
	s.debugLog("Handling method: %s", req.Method)

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized", "notifications/initialized":
		return s.handleInitialized(req)
	case "ping":
		return s.handlePing(req)
	case "tools/list":
		return s.handleListTools(req)
	case "tools/call":
		return s.handleCallTool(req)
	default:
		return ErrorResponse(req.ID, MethodNotFound,
			fmt.Sprintf("Method not found: %s", req.Method))
	}
}

// sendResponse writes a response to stdout
func (s *StdioServer) sendResponse(resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.debugLog("Failed to marshal response: %v", err)
		return
	}

	s.debugLog("Sending: %s", string(data))

	fmt.Fprintf(s.writer, "%s\n", data)
	s.writer.Flush()
}

// RegisterTool adds a custom tool handler
func (s *StdioServer) RegisterTool(name string, handler ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[name] = handler
}

// closeSession stamps the session end time before shutdown.
func (s *StdioServer) closeSession() error {
	if s.db == nil || s.session == nil {
		return nil
	}
	now := time.Now()
	s.session.EndedAt = &now
	if err := s.db.Save(s.session).Error; err != nil {
		s.debugLog("Failed to close session: %v", err)
	}
	return nil
}
