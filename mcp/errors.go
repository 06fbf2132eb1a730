package mcp

import (
	"errors"
	"fmt"

	"github.com/lavafroth/silos/core"
)

// Error codes following JSON-RPC 2.0 standard and custom domain errors
const (
	// JSON-RPC 2.0 standard error codes
	ParseError     = -32700 // Invalid JSON was received
	InvalidRequest = -32600 // The JSON sent is not a valid Request object
	MethodNotFound = -32601 // The method does not exist
	InvalidParams  = -32602 // Invalid method parameters
	InternalError  = -32603 // Internal JSON-RPC error

	// Custom domain error codes (10xxx range)
	UnknownLanguage   = 10001 // No corpus or grammar for the language tag
	EmbedFailed       = 10002 // Embedding collaborator call failed
	SnippetParsing    = 10003 // Snippet could not be parsed at all
	InvalidExpression = 10004 // Query expression failed to compile
	MalformedRule     = 10005 // Rule document violated its schema
	InvalidUTF8       = 10006 // Rewritten output or capture was not valid UTF-8
	Busy              = 10007 // Exclusive region unavailable before deadline
)

// MCPError represents a structured error for the MCP protocol
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface
func (e *MCPError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("%s (%d): %v", e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// NewMCPError creates a new MCP error with optional data
func NewMCPError(code int, message string, data ...any) *MCPError {
	err := &MCPError{
		Code:    code,
		Message: message,
	}
	if len(data) > 0 {
		err.Data = data[0]
	}
	return err
}

// domainError maps a state-layer error onto its protocol error, carrying the
// stable machine-readable code string as data.
func domainError(err error) *MCPError {
	code := InternalError
	switch {
	case errors.Is(err, core.ErrUnknownLanguage):
		code = UnknownLanguage
	case errors.Is(err, core.ErrEmbedFailed):
		code = EmbedFailed
	case errors.Is(err, core.ErrSnippetParsing):
		code = SnippetParsing
	case errors.Is(err, core.ErrInvalidExpression):
		code = InvalidExpression
	case errors.Is(err, core.ErrMalformedRule):
		code = MalformedRule
	case errors.Is(err, core.ErrInvalidUTF8):
		code = InvalidUTF8
	case errors.Is(err, core.ErrBusy):
		code = Busy
	}
	return NewMCPError(code, err.Error(), core.CodeFor(err))
}

// ErrorResponseWithData creates a JSON-RPC error response with additional data
func ErrorResponseWithData(id any, code int, message string, data any) Response {
	resp := ErrorResponse(id, code, message)
	if resp.Error != nil {
		resp.Error.Data = data
	}
	return resp
}
