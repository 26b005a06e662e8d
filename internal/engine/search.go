package engine

import (
	"sort"
	"strings"
)

// MatchSource records which string of a node a match came from.
type MatchSource string

const (
	MatchedName MatchSource = "name"
	MatchedMRID MatchSource = "mrid"
)

// Match is one ranked search result row. A node may produce several rows,
// one per accepted mRID.
type Match struct {
	Node       *Node       `json:"-"`
	Name       string      `json:"name"`
	Type       NodeType    `json:"type"`
	MatchedOn  MatchSource `json:"matchedOn"`
	Matched    string      `json:"matched"`
	Boundaries []Boundary  `json:"boundaries"`
	Inaccuracy int         `json:"inaccuracy"`
}

func (m Match) firstStart() int {
	if len(m.Boundaries) == 0 {
		return 0
	}
	return m.Boundaries[0].Start
}

// Searcher runs incremental fuzzy search over a topology's nodes. Extending
// a query only narrows the working set; shortening or editing it starts over.
type Searcher struct {
	all     []*Node
	working []*Node
	prev    string
	resets  int
}

func NewSearcher(t *Topology) *Searcher {
	return &Searcher{all: t.SortedNodes()}
}

// Search returns ranked matches for query.
func (s *Searcher) Search(query string) []Match {
	if !extends(query, s.prev) || len(s.working) == 0 {
		s.working = s.all
		s.resets++
	}
	s.prev = query

	var out []Match
	keep := make([]*Node, 0, len(s.working))
	for _, n := range s.working {
		rows := matchNode(n, query)
		if len(rows) == 0 {
			continue
		}
		keep = append(keep, n)
		out = append(out, rows...)
	}
	s.working = keep

	SortMatches(out)
	return out
}

// extends reports whether query is prev with more typed after it. Anything
// else may match nodes the working set already dropped.
func extends(query, prev string) bool {
	return runeLen(query) >= runeLen(prev) && strings.HasPrefix(strings.ToLower(query), strings.ToLower(prev))
}

// WorkingSetSize is the number of nodes still eligible for the next keystroke.
func (s *Searcher) WorkingSetSize() int { return len(s.working) }

// Resets counts how often the working set was refilled from every node.
func (s *Searcher) Resets() int { return s.resets }

func matchNode(n *Node, query string) []Match {
	if r, ok := FuzzyMatch(query, n.Name); ok {
		return []Match{newMatch(n, MatchedName, r)}
	}
	var rows []Match
	for _, id := range n.MRIDs {
		if r, ok := FuzzyMatch(query, id); ok {
			rows = append(rows, newMatch(n, MatchedMRID, r))
		}
	}
	return rows
}

func newMatch(n *Node, src MatchSource, r FuzzyResult) Match {
	return Match{
		Node:       n,
		Name:       n.Name,
		Type:       n.Type,
		MatchedOn:  src,
		Matched:    r.Input,
		Boundaries: r.Boundaries,
		Inaccuracy: r.Inaccuracy,
	}
}

// SortMatches orders by inaccuracy, then matched length, then the start of
// the first highlighted run.
func SortMatches(ms []Match) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.Inaccuracy != b.Inaccuracy {
			return a.Inaccuracy < b.Inaccuracy
		}
		if la, lb := runeLen(a.Matched), runeLen(b.Matched); la != lb {
			return la < lb
		}
		return a.firstStart() < b.firstStart()
	})
}

// Page returns the zero-based page of ms and the total page count. A
// non-positive size puts everything on one page.
func Page(ms []Match, page, size int) ([]Match, int) {
	if len(ms) == 0 {
		return nil, 0
	}
	if size <= 0 {
		size = len(ms)
	}
	total := (len(ms) + size - 1) / size
	if page < 0 || page >= total {
		return nil, total
	}
	end := min(len(ms), (page+1)*size)
	return ms[page*size : end], total
}
