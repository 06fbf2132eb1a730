package state

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavafroth/silos/core"
	"github.com/lavafroth/silos/index"
)

// fakeEmbedder returns canned unit vectors per prompt and counts calls, so
// tests can pin both search ordering and the order of operations.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

func builtIndex(t *testing.T, entries map[string][]float32) *index.Index {
	t.Helper()
	ix, err := index.New(3)
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	for payload, vector := range entries {
		require.NoError(t, ix.Insert(vector, payload))
	}
	require.NoError(t, ix.Build())
	return ix
}

func newTestState(t *testing.T, embedder *fakeEmbedder, collections []core.MutationCollection) *State {
	t.Helper()
	generate := map[string]*index.Index{
		"go": builtIndex(t, map[string][]float32{
			"func serve() {}":  {1, 0, 0},
			"func worker() {}": {0, 1, 0},
		}),
	}
	refactorEntries := make(map[string][]float32)
	for i := range collections {
		// Collection i sits on its own axis so prompts can pick one out.
		vector := []float32{0, 0, 0}
		vector[i%3] = 1
		refactorEntries[itoa(i)] = vector
	}
	refactor := map[string]*index.Index{
		"go": builtIndex(t, refactorEntries),
	}
	return New(embedder, generate, refactor, collections)
}

func itoa(i int) string {
	return string(rune('0' + i))
}

func renameCollection() core.MutationCollection {
	return core.MutationCollection{
		Description: "rename function",
		Mutations: []core.Mutation{{
			Expression: `(function_declaration name: (identifier) @name) @root`,
			Substitute: []core.Substitute{
				core.Literal("func "),
				core.Capture("name"),
				core.Literal("_renamed() {}"),
			},
		}},
	}
}

func TestGenerateClosestFirst(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"serve http": {0.9, 0.1, 0},
	}}
	s := newTestState(t, embedder, nil)

	got, err := s.Generate(context.Background(), "go", "serve http", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"func serve() {}", "func worker() {}"}, got)
}

func TestGenerateBoundedByCorpus(t *testing.T) {
	s := newTestState(t, &fakeEmbedder{}, nil)

	got, err := s.Generate(context.Background(), "go", "anything", 3)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGenerateUnknownLanguage(t *testing.T) {
	embedder := &fakeEmbedder{}
	s := newTestState(t, embedder, nil)

	_, err := s.Generate(context.Background(), "nonexistent-lang", "anything", 1)
	assert.ErrorIs(t, err, core.ErrUnknownLanguage)
	assert.Zero(t, embedder.calls)
}

func TestGenerateEmbedFailure(t *testing.T) {
	s := newTestState(t, &fakeEmbedder{err: errors.New("model offline")}, nil)

	_, err := s.Generate(context.Background(), "go", "anything", 1)
	assert.ErrorIs(t, err, core.ErrEmbedFailed)
}

func TestGenerateBusyWhenRegionHeld(t *testing.T) {
	embedder := &fakeEmbedder{}
	s := newTestState(t, embedder, nil)

	// Occupy the exclusive region so the request can only wait, then hand
	// it a context that is already done.
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Generate(ctx, "go", "anything", 1)
	assert.ErrorIs(t, err, core.ErrBusy)
	assert.Zero(t, embedder.calls, "embedding must not run without the exclusive region")
}

func TestRefactorAppliesNearestCollection(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"rename it": {1, 0, 0},
	}}
	s := newTestState(t, embedder, []core.MutationCollection{renameCollection()})

	got, err := s.Refactor(context.Background(), "go", "rename it", "func foo() {}\n", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"func foo_renamed() {}\n"}, got)
}

func TestRefactorUnknownLanguage(t *testing.T) {
	embedder := &fakeEmbedder{}
	s := newTestState(t, embedder, []core.MutationCollection{renameCollection()})

	_, err := s.Refactor(context.Background(), "nonexistent-lang", "rename", "func foo() {}\n", 1)
	assert.ErrorIs(t, err, core.ErrUnknownLanguage)
	assert.Zero(t, embedder.calls)
}

func TestRefactorDropsFailingCandidates(t *testing.T) {
	broken := core.MutationCollection{
		Description: "broken expression",
		Mutations:   []core.Mutation{{Expression: `((`, Substitute: []core.Substitute{core.Literal("x")}}},
	}
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		// Equidistant-ish prompt so both candidates are returned.
		"rename": {0.7, 0.7, 0},
	}}
	var logged []string
	s := newTestState(t, embedder, []core.MutationCollection{renameCollection(), broken})
	s.logf = func(format string, args ...any) {
		logged = append(logged, format)
	}

	got, err := s.Refactor(context.Background(), "go", "rename", "func foo() {}\n", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"func foo_renamed() {}\n"}, got)
	assert.Len(t, logged, 1)
}

func TestRefactorAllCandidatesFailingYieldsEmpty(t *testing.T) {
	broken := core.MutationCollection{
		Description: "broken expression",
		Mutations:   []core.Mutation{{Expression: `((`, Substitute: []core.Substitute{core.Literal("x")}}},
	}
	s := newTestState(t, &fakeEmbedder{}, []core.MutationCollection{broken})

	got, err := s.Refactor(context.Background(), "go", "anything", "func foo() {}\n", 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRefactorParseFailurePrecedesEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{}
	s := newTestState(t, embedder, []core.MutationCollection{renameCollection()})

	// A canceled context makes the parser collaborator return no tree; the
	// body is large enough that the cancellation flag is observed.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	body := strings.Repeat("func foo() {}\n", 1<<16)

	_, err := s.Refactor(ctx, "go", "rename", body, 1)
	require.Error(t, err)
	assert.Zero(t, embedder.calls, "embedding must not run when the shared parse fails")
}

func TestDumpExpression(t *testing.T) {
	sexp, err := DumpExpression([]byte("func foo() {}\n"), "go")
	require.NoError(t, err)
	assert.Contains(t, sexp, "function_declaration")

	_, err = DumpExpression([]byte("func foo() {}\n"), "nonexistent-lang")
	assert.ErrorIs(t, err, core.ErrUnknownLanguage)
}

func TestShowCaptures(t *testing.T) {
	result, err := ShowCaptures([]byte("func foo() {}\n"), "go", `(function_declaration name: (identifier) @name) @root`)
	require.NoError(t, err)
	assert.Equal(t, "foo", result.Captures["name"])
	assert.Equal(t, 0, result.Start)
	assert.Equal(t, 13, result.End)
}
