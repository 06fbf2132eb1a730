// Package rules compiles rule documents into their in-memory form. Rule
// files carry YAML with a fixed schema; compilation is a pure transform
// with no side effects.
package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/lavafroth/silos/core"
)

// Snippet is a compiled generate rule: a description used as the retrieval
// key and a snippet body returned verbatim on a match.
type Snippet struct {
	Desc string `yaml:"desc"`
	Body string `yaml:"body"`
}

// collectionDoc mirrors the refactor rule document schema.
type collectionDoc struct {
	Description string        `yaml:"description"`
	Mutations   []mutationDoc `yaml:"mutations"`
}

type mutationDoc struct {
	Expression *string          `yaml:"expression"`
	Substitute *[]substituteDoc `yaml:"substitute"`
}

// substituteDoc accepts exactly one of the two substitute tags.
type substituteDoc struct {
	kind core.SubstituteKind
	text string
}

func (s *substituteDoc) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return fmt.Errorf("substitute entry must be a single `literal` or `capture` node")
	}
	tag := value.Content[0].Value
	var text string
	if err := value.Content[1].Decode(&text); err != nil {
		return fmt.Errorf("substitute %s argument must be a string: %v", tag, err)
	}
	switch tag {
	case "literal":
		s.kind = core.SubstituteLiteral
	case "capture":
		s.kind = core.SubstituteCapture
	default:
		return fmt.Errorf("substitute entry tag must be `literal` or `capture`: got %s", tag)
	}
	s.text = text
	return nil
}

// CompileCollection parses a refactor rule document into an ordered
// MutationCollection. The document may only contain `description` and
// `mutations` nodes; each mutation needs an `expression` and a `substitute`
// list. Mutation order in the document is preserved and significant.
func CompileCollection(doc []byte) (core.MutationCollection, error) {
	var parsed collectionDoc
	if err := strictUnmarshal(doc, &parsed); err != nil {
		return core.MutationCollection{}, fmt.Errorf("%w: %v", core.ErrMalformedRule, err)
	}
	if parsed.Description == "" {
		return core.MutationCollection{}, fmt.Errorf("%w: collection contains no `description`", core.ErrMalformedRule)
	}

	mutations := make([]core.Mutation, 0, len(parsed.Mutations))
	for i, m := range parsed.Mutations {
		if m.Expression == nil || *m.Expression == "" {
			return core.MutationCollection{}, fmt.Errorf("%w: mutation %d must contain an `expression`", core.ErrMalformedRule, i)
		}
		if m.Substitute == nil {
			return core.MutationCollection{}, fmt.Errorf("%w: mutation %d must contain a `substitute`", core.ErrMalformedRule, i)
		}
		substitute := make([]core.Substitute, 0, len(*m.Substitute))
		for _, s := range *m.Substitute {
			if s.kind == core.SubstituteLiteral {
				substitute = append(substitute, core.Literal(s.text))
			} else {
				substitute = append(substitute, core.Capture(s.text))
			}
		}
		mutations = append(mutations, core.Mutation{
			Expression: *m.Expression,
			Substitute: substitute,
		})
	}

	return core.MutationCollection{
		Description: parsed.Description,
		Mutations:   mutations,
	}, nil
}

// CompileSnippet parses a generate rule document. Both `desc` and `body`
// are required.
func CompileSnippet(doc []byte) (Snippet, error) {
	var parsed Snippet
	if err := strictUnmarshal(doc, &parsed); err != nil {
		return Snippet{}, fmt.Errorf("%w: %v", core.ErrMalformedRule, err)
	}
	if parsed.Desc == "" {
		return Snippet{}, fmt.Errorf("%w: snippet contains no `desc`", core.ErrMalformedRule)
	}
	if parsed.Body == "" {
		return Snippet{}, fmt.Errorf("%w: snippet contains no `body`", core.ErrMalformedRule)
	}
	return parsed, nil
}

// strictUnmarshal rejects document nodes outside the target schema.
func strictUnmarshal(doc []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(doc))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("document is empty")
		}
		return err
	}
	return nil
}
