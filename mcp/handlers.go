package mcp

import (
	"encoding/json"
	"fmt"
)

// handleListTools returns available tools to the client
func (s *StdioServer) handleListTools(req Request) Response {
	return SuccessResponse(req.ID, map[string]any{
		"tools": GetToolDefinitions(),
	})
}

// handleCallTool executes a specific tool
func (s *StdioServer) handleCallTool(req Request) Response {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.ID, InvalidParams, "Invalid params structure")
	}

	s.debugLog("Calling tool: %s", params.Name)

	s.mu.RLock()
	handler, exists := s.tools[params.Name]
	s.mu.RUnlock()

	if !exists {
		return ErrorResponse(req.ID, MethodNotFound,
			fmt.Sprintf("Tool not found: %s", params.Name))
	}

	result, err := handler(params.Arguments)
	if err != nil {
		if mcpErr, ok := err.(*MCPError); ok {
			return ErrorResponseWithData(req.ID, mcpErr.Code, mcpErr.Message, mcpErr.Data)
		}
		return ErrorResponse(req.ID, InternalError, err.Error())
	}

	return SuccessResponse(req.ID, result)
}

// handleInitialize handles the MCP initialization handshake
func (s *StdioServer) handleInitialize(req Request) Response {
	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
		ClientInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"clientInfo"`
	}

	if req.Params != nil {
		json.Unmarshal(req.Params, &params)
		s.debugLog("Client: %s v%s, Protocol: %s",
			params.ClientInfo.Name,
			params.ClientInfo.Version,
			params.ProtocolVersion)
		s.recordClientInfo(params.ClientInfo.Name, params.ClientInfo.Version)
	}

	return SuccessResponse(req.ID, map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities": map[string]any{
			"tools": map[string]any{
				"listChanged": false,
			},
		},
		"serverInfo": map[string]any{
			"name":    "silos",
			"version": "0.2.0",
		},
	})
}

// handleInitialized confirms initialization complete
func (s *StdioServer) handleInitialized(req Request) Response {
	s.debugLog("Initialization complete")
	if req.ID == nil {
		// Notifications expect no response
		return Response{}
	}
	return SuccessResponse(req.ID, map[string]any{})
}

// handlePing responds to keepalive pings
func (s *StdioServer) handlePing(req Request) Response {
	return SuccessResponse(req.ID, map[string]any{})
}
