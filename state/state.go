// Package state owns the retrieval corpora built at startup and serves
// generate and refactor requests against them.
package state

import (
	"context"
	"fmt"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/lavafroth/silos/core"
	"github.com/lavafroth/silos/embed"
	"github.com/lavafroth/silos/index"
	"github.com/lavafroth/silos/lang"
)

// State holds the per-language indexes of both corpora plus the flat
// ordered collection the refactor indexes point into. It is read-only after
// construction; the embedding collaborator and index searches are
// serialized behind a single exclusive region because neither is proven
// safe for concurrent use.
type State struct {
	embedder    embed.Embedder
	generate    map[string]*index.Index
	refactor    map[string]*index.Index
	collections []core.MutationCollection

	sem  chan struct{}
	logf func(format string, args ...any)
}

// Option configures a State.
type Option func(*State)

// WithLogf routes per-candidate failure logs through f instead of
// discarding them.
func WithLogf(f func(format string, args ...any)) Option {
	return func(s *State) { s.logf = f }
}

// New assumes ownership of the built indexes and collections.
func New(embedder embed.Embedder, generate, refactor map[string]*index.Index, collections []core.MutationCollection, opts ...Option) *State {
	s := &State{
		embedder:    embedder,
		generate:    generate,
		refactor:    refactor,
		collections: collections,
		sem:         make(chan struct{}, 1),
		logf:        func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate returns up to topK snippet bodies for the prompt, closest first.
func (s *State) Generate(ctx context.Context, langTag, prompt string, topK int) ([]string, error) {
	idx, ok := s.generate[langTag]
	if !ok {
		return nil, fmt.Errorf("%w: no generate corpus for %q", core.ErrUnknownLanguage, langTag)
	}

	bodies, err := s.searchLocked(ctx, idx, prompt, topK)
	if err != nil {
		return nil, err
	}
	return bodies, nil
}

// Refactor applies each of the topK nearest mutation collections to body
// and returns the rewritten texts, closest first. A candidate that fails to
// apply is logged and dropped; all candidates failing yields an empty
// result, not an error.
func (s *State) Refactor(ctx context.Context, langTag, prompt, body string, topK int) ([]string, error) {
	grammar, err := lang.Resolve(langTag)
	if err != nil {
		return nil, err
	}
	idx, ok := s.refactor[langTag]
	if !ok {
		return nil, fmt.Errorf("%w: no refactor corpus for %q", core.ErrUnknownLanguage, langTag)
	}

	// One shared parse for all candidates, before any embedding work.
	src := []byte(body)
	root, err := parse(ctx, src, grammar)
	if err != nil {
		return nil, err
	}

	ids, err := s.searchLocked(ctx, idx, prompt, topK)
	if err != nil {
		return nil, err
	}

	results := make([]string, 0, len(ids))
	for _, id := range ids {
		position, err := strconv.Atoi(id)
		if err != nil || position < 0 || position >= len(s.collections) {
			s.logf("refactor: dropping candidate with invalid collection id %q", id)
			continue
		}
		collection := s.collections[position]
		rewritten, err := core.Apply(grammar, src, root, collection)
		if err != nil {
			s.logf("refactor: failed to apply collection %d (%s): %v", position, collection.Description, err)
			continue
		}
		results = append(results, rewritten)
	}
	return results, nil
}

// Collection returns the mutation collection stored at position.
func (s *State) Collection(position int) (core.MutationCollection, bool) {
	if position < 0 || position >= len(s.collections) {
		return core.MutationCollection{}, false
	}
	return s.collections[position], true
}

// searchLocked embeds the prompt and searches the index inside the single
// exclusive region.
func (s *State) searchLocked(ctx context.Context, idx *index.Index, prompt string, topK int) ([]string, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	target, err := s.embedder.Embed(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEmbedFailed, err)
	}
	return idx.Search(target, topK)
}

// acquire takes the exclusive region, giving up when the request context is
// done first. Acquisition failure is terminal for the request.
func (s *State) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	default:
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", core.ErrBusy, ctx.Err())
	}
}

func (s *State) release() {
	<-s.sem
}

// DumpExpression parses src under the grammar for langTag and returns the
// s-expression of the parse tree. Debug aid.
func DumpExpression(src []byte, langTag string) (string, error) {
	grammar, err := lang.Resolve(langTag)
	if err != nil {
		return "", err
	}
	root, err := parse(context.Background(), src, grammar)
	if err != nil {
		return "", err
	}
	return root.String(), nil
}

// ShowCaptures parses src under the grammar for langTag and executes one
// query expression against it. Debug aid over the query executor.
func ShowCaptures(src []byte, langTag, expression string) (core.QueryResult, error) {
	grammar, err := lang.Resolve(langTag)
	if err != nil {
		return core.QueryResult{}, err
	}
	root, err := parse(context.Background(), src, grammar)
	if err != nil {
		return core.QueryResult{}, err
	}
	return core.ExecuteQuery(root, expression, grammar, src)
}

// parse produces the root node of src, mapping a collaborator failure
// (no tree at all, not a best-effort tree with error nodes) to
// ErrSnippetParsing.
func parse(ctx context.Context, src []byte, grammar *sitter.Language) (*sitter.Node, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil || tree == nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSnippetParsing, err)
	}
	return tree.RootNode(), nil
}
