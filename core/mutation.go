package core

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// Apply runs every mutation of the collection against one source buffer and
// splices the rewrites into a single output string.
//
// Each mutation contributes a rewrite keyed by the start offset of its root
// span; when two mutations share a start offset the later one wins. The
// start and end offsets of all spans, sorted and deduplicated, partition the
// buffer into contiguous segments. A segment whose start offset carries a
// rewrite is emitted as the rewrite text, every other segment verbatim, so
// each source byte is consumed exactly once.
//
// Overlapping root spans are not validated against; the splice emits
// whatever the boundary partition produces. A collection with zero
// mutations returns the source unchanged.
func Apply(grammar *sitter.Language, src []byte, root *sitter.Node, collection MutationCollection) (string, error) {
	boundaries := make([]int, 0, 2*len(collection.Mutations))
	rewrites := make(map[int]string, len(collection.Mutations))

	for _, mutation := range collection.Mutations {
		result, err := ExecuteQuery(root, mutation.Expression, grammar, src)
		if err != nil {
			return "", err
		}

		var rewrite strings.Builder
		for _, sub := range mutation.Substitute {
			switch sub.Kind {
			case SubstituteLiteral:
				rewrite.WriteString(sub.Value)
			case SubstituteCapture:
				rewrite.WriteString(result.Captures[sub.Value])
			}
		}

		boundaries = append(boundaries, result.Start, result.End)
		rewrites[result.Start] = rewrite.String()
	}

	var out strings.Builder
	at := 0
	for _, cut := range append(dedupSorted(boundaries, len(src)), len(src)) {
		segment := src[at:cut]
		if rewrite, ok := rewrites[at]; ok {
			out.WriteString(rewrite)
		} else {
			if !utf8.Valid(segment) {
				return "", fmt.Errorf("%w: segment at offset %d", ErrInvalidUTF8, at)
			}
			out.Write(segment)
		}
		at = cut
	}
	return out.String(), nil
}

// dedupSorted sorts offsets ascending, drops duplicates, and clamps the set
// to the open interval (0, limit): 0 and limit are already implicit segment
// edges.
func dedupSorted(offsets []int, limit int) []int {
	sort.Ints(offsets)
	cuts := offsets[:0]
	prev := -1
	for _, off := range offsets {
		if off != prev && off > 0 && off < limit {
			cuts = append(cuts, off)
		}
		prev = off
	}
	return cuts
}
