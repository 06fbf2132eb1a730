// Package corpus builds the per-language retrieval indexes from an on-disk
// rule corpus. Building happens once at process start, before any request
// path is opened; a broken rule file aborts startup rather than leaving a
// silently incomplete index behind.
package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/lavafroth/silos/core"
	"github.com/lavafroth/silos/embed"
	"github.com/lavafroth/silos/index"
	"github.com/lavafroth/silos/lang"
	"github.com/lavafroth/silos/rules"
)

// Corpora is everything the builder hands to the retrieval state: one index
// per language and corpus, plus the flat collection the refactor indexes
// store positions into.
type Corpora struct {
	Generate    map[string]*index.Index
	Refactor    map[string]*index.Index
	Collections []core.MutationCollection
}

// Build walks root/{generate,refactor}/<tag>/*.rule, embeds every rule
// description, and returns built indexes. A language directory with no
// valid rule files still yields an empty built index, so requests for that
// language get zero results instead of an unknown-language error.
func Build(ctx context.Context, root string, embedder embed.Embedder) (*Corpora, error) {
	corpora := &Corpora{
		Generate: make(map[string]*index.Index),
		Refactor: make(map[string]*index.Index),
	}

	err := walkRules(filepath.Join(root, "generate"), func(tag, path string, doc []byte) error {
		snippet, err := rules.CompileSnippet(doc)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		vector, err := embedder.Embed(ctx, snippet.Desc)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		idx, err := indexFor(corpora.Generate, tag, embedder.Dimension())
		if err != nil {
			return err
		}
		return idx.Insert(vector, snippet.Body)
	}, func(tag string) error {
		_, err := indexFor(corpora.Generate, tag, embedder.Dimension())
		return err
	})
	if err != nil {
		return nil, err
	}

	err = walkRules(filepath.Join(root, "refactor"), func(tag, path string, doc []byte) error {
		collection, err := rules.CompileCollection(doc)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := checkExpressions(tag, collection); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		vector, err := embedder.Embed(ctx, collection.Description)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		idx, err := indexFor(corpora.Refactor, tag, embedder.Dimension())
		if err != nil {
			return err
		}
		position := len(corpora.Collections)
		if err := idx.Insert(vector, strconv.Itoa(position)); err != nil {
			return err
		}
		corpora.Collections = append(corpora.Collections, collection)
		return nil
	}, func(tag string) error {
		_, err := indexFor(corpora.Refactor, tag, embedder.Dimension())
		return err
	})
	if err != nil {
		return nil, err
	}

	for tag, idx := range corpora.Generate {
		if err := idx.Build(); err != nil {
			return nil, fmt.Errorf("failed to build generate index for %q: %w", tag, err)
		}
	}
	for tag, idx := range corpora.Refactor {
		if err := idx.Build(); err != nil {
			return nil, fmt.Errorf("failed to build refactor index for %q: %w", tag, err)
		}
	}
	return corpora, nil
}

// walkRules visits every <tag>/*.rule file under dir in lexical order.
// onDir runs for each language directory, including ones with no rule
// files. A missing corpus directory is not an error: the corpus is simply
// empty.
func walkRules(dir string, onRule func(tag, path string, doc []byte) error, onDir func(tag string) error) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read corpus directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		tag := entry.Name()
		if !lang.Supported(tag) {
			return fmt.Errorf("%w: corpus directory %s", core.ErrUnknownLanguage, filepath.Join(dir, tag))
		}
		if err := onDir(tag); err != nil {
			return err
		}

		paths, err := doublestar.FilepathGlob(filepath.Join(dir, tag, "*.rule"))
		if err != nil {
			return fmt.Errorf("failed to glob rule files under %s: %w", dir, err)
		}
		for _, path := range paths {
			doc, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read rule file %s: %w", path, err)
			}
			if err := onRule(tag, path, doc); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkExpressions compiles every mutation expression against the tag's
// grammar so an unwritable query fails startup, not a request.
func checkExpressions(tag string, collection core.MutationCollection) error {
	grammar, err := lang.Resolve(tag)
	if err != nil {
		return err
	}
	for i, mutation := range collection.Mutations {
		if err := core.CheckExpression(mutation.Expression, grammar); err != nil {
			return fmt.Errorf("mutation %d: %w", i, err)
		}
	}
	return nil
}

func indexFor(indexes map[string]*index.Index, tag string, dim int) (*index.Index, error) {
	if idx, ok := indexes[tag]; ok {
		return idx, nil
	}
	idx, err := index.New(dim)
	if err != nil {
		return nil, err
	}
	indexes[tag] = idx
	return idx, nil
}
