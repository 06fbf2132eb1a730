// Package lang is the single source of truth for supported languages. Both
// the index builder and the retrieval state resolve tags through it, so the
// two can never diverge on which tags exist.
package lang

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/lavafroth/silos/core"
)

// Resolve converts a language tag ("go", "rs", ...) into the corresponding
// grammar. The tag set is closed: an unsupported tag is a terminal error for
// the request, never a silent fallback.
func Resolve(tag string) (*sitter.Language, error) {
	switch tag {
	case "go":
		return golang.GetLanguage(), nil
	case "c", "h":
		return c.GetLanguage(), nil
	case "cpp", "hpp":
		return cpp.GetLanguage(), nil
	case "js":
		return javascript.GetLanguage(), nil
	case "ts":
		return typescript.GetLanguage(), nil
	case "rs":
		return rust.GetLanguage(), nil
	case "py":
		return python.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownLanguage, tag)
	}
}

// Supported reports whether the tag maps to a grammar.
func Supported(tag string) bool {
	_, err := Resolve(tag)
	return err == nil
}

// ResolveExtension derives the tag from the file extension of path and
// resolves it. A path without an extension is an unknown language.
func ResolveExtension(path string) (*sitter.Language, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return nil, fmt.Errorf("%w: %q has no extension", core.ErrUnknownLanguage, path)
	}
	return Resolve(ext)
}

// Tags lists every supported language tag.
func Tags() []string {
	return []string{"go", "c", "h", "cpp", "hpp", "js", "ts", "rs", "py"}
}
