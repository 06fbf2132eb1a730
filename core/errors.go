package core

import "errors"

// Sentinel errors for programmatic checking.
var (
	ErrUnknownLanguage   = errors.New("unknown language")
	ErrEmbedFailed       = errors.New("failed to embed prompt")
	ErrSnippetParsing    = errors.New("failed to parse source snippet")
	ErrInvalidExpression = errors.New("invalid query expression")
	ErrMalformedRule     = errors.New("malformed rule document")
	ErrInvalidUTF8       = errors.New("captured span is not valid UTF-8")
	ErrBusy              = errors.New("retrieval state is busy")
)

// ErrorCode provides a machine-readable error type for wire output.
type ErrorCode string

const (
	ECNone              ErrorCode = ""
	ECUnknownLanguage   ErrorCode = "ERR_UNKNOWN_LANGUAGE"
	ECEmbedFailed       ErrorCode = "ERR_EMBED_FAILED"
	ECSnippetParsing    ErrorCode = "ERR_SNIPPET_PARSING"
	ECInvalidExpression ErrorCode = "ERR_INVALID_EXPRESSION"
	ECMalformedRule     ErrorCode = "ERR_MALFORMED_RULE"
	ECInvalidUTF8       ErrorCode = "ERR_INVALID_UTF8"
	ECBusy              ErrorCode = "ERR_BUSY"
	ECUnknown           ErrorCode = "ERR_UNKNOWN"
)

// CodeFor maps an error to its machine-readable code.
func CodeFor(err error) ErrorCode {
	switch {
	case err == nil:
		return ECNone
	case errors.Is(err, ErrUnknownLanguage):
		return ECUnknownLanguage
	case errors.Is(err, ErrEmbedFailed):
		return ECEmbedFailed
	case errors.Is(err, ErrSnippetParsing):
		return ECSnippetParsing
	case errors.Is(err, ErrInvalidExpression):
		return ECInvalidExpression
	case errors.Is(err, ErrMalformedRule):
		return ECMalformedRule
	case errors.Is(err, ErrInvalidUTF8):
		return ECInvalidUTF8
	case errors.Is(err, ErrBusy):
		return ECBusy
	default:
		return ECUnknown
	}
}
