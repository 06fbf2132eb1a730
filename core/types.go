package core

// SubstituteKind discriminates the two substitution token types.
type SubstituteKind int

const (
	// SubstituteLiteral emits fixed text verbatim.
	SubstituteLiteral SubstituteKind = iota
	// SubstituteCapture emits the text bound to a named query capture.
	SubstituteCapture
)

// Substitute is one token of a mutation's rewrite recipe: either a literal
// string or a reference to a named capture of the mutation's query match.
type Substitute struct {
	Kind  SubstituteKind
	Value string
}

// Literal returns a substitute that emits text verbatim.
func Literal(text string) Substitute {
	return Substitute{Kind: SubstituteLiteral, Value: text}
}

// Capture returns a substitute that emits the text bound to the named
// capture. A capture the query never bound resolves to the empty string.
func Capture(name string) Substitute {
	return Substitute{Kind: SubstituteCapture, Value: name}
}

// Mutation is a single structural find-and-rewrite rule. The expression is a
// tree-sitter query that must bind a capture named "root"; the byte span of
// the root node is the region replaced by the substitute sequence.
type Mutation struct {
	Expression string
	Substitute []Substitute
}

// MutationCollection is one named refactor rule: a human-readable
// description (the retrieval key) and an ordered list of mutations applied
// together in document order.
type MutationCollection struct {
	Description string
	Mutations   []Mutation
}

// QueryResult holds the outcome of executing one query expression: the byte
// span of the "root" capture and the source text of every other named
// capture in the first match.
type QueryResult struct {
	Start    int
	End      int
	Captures map[string]string
}
