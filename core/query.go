package core

import (
	"fmt"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// CheckExpression compiles expression against the grammar without running
// it, reporting ErrInvalidExpression for a malformed query.
func CheckExpression(expression string, grammar *sitter.Language) error {
	query, err := sitter.NewQuery([]byte(expression), grammar)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	query.Close()
	return nil
}

// ExecuteQuery compiles expression against the grammar and evaluates it at
// node. Only the first match surviving predicate filtering is consumed: a
// rule that needs several simultaneous rewrite sites is written as several
// mutations, not as one expression with several matches. A match whose
// filtered capture set is empty failed its predicates and is skipped.
//
// The capture named "root" supplies the byte span of the result; when the
// expression never binds it, the span defaults to (0, 0). Every other
// capture is returned as the exact source text of its node.
func ExecuteQuery(node *sitter.Node, expression string, grammar *sitter.Language, src []byte) (QueryResult, error) {
	query, err := sitter.NewQuery([]byte(expression), grammar)
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	defer query.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, node)

	result := QueryResult{Captures: make(map[string]string)}

	for {
		match, ok := cursor.NextMatch()
		if !ok {
			return result, nil
		}
		match = cursor.FilterPredicates(match, src)
		if len(match.Captures) == 0 {
			continue
		}

		for _, cap := range match.Captures {
			name := query.CaptureNameForId(cap.Index)
			if name == "root" {
				result.Start = int(cap.Node.StartByte())
				result.End = int(cap.Node.EndByte())
				continue
			}
			text := cap.Node.Content(src)
			if !utf8.ValidString(text) {
				return QueryResult{}, fmt.Errorf("%w: capture %q", ErrInvalidUTF8, name)
			}
			result.Captures[name] = text
		}
		return result, nil
	}
}
