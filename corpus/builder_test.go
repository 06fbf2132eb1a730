package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavafroth/silos/core"
)

type stubEmbedder struct {
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	// Spread descriptions over the axes so every vector is distinct.
	v := []float32{0, 0, 0}
	v[len(text)%3] = 1
	return v, nil
}

func (s *stubEmbedder) Dimension() int { return 3 }

func writeRule(t *testing.T, root string, parts ...string) {
	t.Helper()
	path := filepath.Join(root, filepath.Join(parts[:len(parts)-1]...))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(parts[len(parts)-1]), 0o644))
}

func TestBuildBothCorpora(t *testing.T) {
	root := t.TempDir()
	writeRule(t, root, "generate", "go", "serve.rule", "desc: http server\nbody: func serve() {}\n")
	writeRule(t, root, "generate", "go", "worker.rule", "desc: worker pool\nbody: func worker() {}\n")
	writeRule(t, root, "refactor", "go", "rename.rule", `
description: rename function
mutations:
  - expression: "(function_declaration name: (identifier) @name) @root"
    substitute:
      - literal: "func renamed() {}"
`)

	embedder := &stubEmbedder{}
	corpora, err := Build(context.Background(), root, embedder)
	require.NoError(t, err)

	require.Contains(t, corpora.Generate, "go")
	assert.Equal(t, 2, corpora.Generate["go"].Len())
	require.Contains(t, corpora.Refactor, "go")
	assert.Equal(t, 1, corpora.Refactor["go"].Len())
	require.Len(t, corpora.Collections, 1)
	assert.Equal(t, "rename function", corpora.Collections[0].Description)
	// One embedding per rule file.
	assert.Equal(t, 3, embedder.calls)

	// Indexes come back built: search works immediately.
	got, err := corpora.Generate["go"].Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestBuildEmptyLanguageDirYieldsBuiltIndex(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "generate", "rs"), 0o755))

	corpora, err := Build(context.Background(), root, &stubEmbedder{})
	require.NoError(t, err)

	require.Contains(t, corpora.Generate, "rs")
	got, err := corpora.Generate["rs"].Search([]float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBuildMissingRootIsEmpty(t *testing.T) {
	corpora, err := Build(context.Background(), t.TempDir(), &stubEmbedder{})
	require.NoError(t, err)
	assert.Empty(t, corpora.Generate)
	assert.Empty(t, corpora.Refactor)
}

func TestBuildUnknownLanguageDirFailsStartup(t *testing.T) {
	root := t.TempDir()
	writeRule(t, root, "generate", "cobol", "x.rule", "desc: x\nbody: y\n")

	_, err := Build(context.Background(), root, &stubEmbedder{})
	assert.ErrorIs(t, err, core.ErrUnknownLanguage)
}

func TestBuildMalformedRuleFailsStartup(t *testing.T) {
	root := t.TempDir()
	writeRule(t, root, "generate", "go", "bad.rule", "desc: only half a rule\n")

	_, err := Build(context.Background(), root, &stubEmbedder{})
	assert.ErrorIs(t, err, core.ErrMalformedRule)
}

func TestBuildUncompilableExpressionFailsStartup(t *testing.T) {
	root := t.TempDir()
	writeRule(t, root, "refactor", "go", "bad.rule", `
description: broken query
mutations:
  - expression: "(("
    substitute:
      - literal: x
`)

	_, err := Build(context.Background(), root, &stubEmbedder{})
	assert.ErrorIs(t, err, core.ErrInvalidExpression)
}

func TestBuildRefactorIdsIndexCollections(t *testing.T) {
	root := t.TempDir()
	writeRule(t, root, "refactor", "go", "a.rule", "description: first rule\nmutations: []\n")
	writeRule(t, root, "refactor", "rs", "b.rule", "description: second rule\nmutations: []\n")

	corpora, err := Build(context.Background(), root, &stubEmbedder{})
	require.NoError(t, err)

	// The flat collection is shared across languages; ids are positions.
	require.Len(t, corpora.Collections, 2)
	assert.Equal(t, "first rule", corpora.Collections[0].Description)
	assert.Equal(t, "second rule", corpora.Collections[1].Description)
	assert.Equal(t, 1, corpora.Refactor["go"].Len())
	assert.Equal(t, 1, corpora.Refactor["rs"].Len())
}
