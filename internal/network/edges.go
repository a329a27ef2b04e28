package network

import "github.com/google/uuid"

// Edge is one active mentor->disciple pair.
type Edge struct {
	MentorID   uuid.UUID
	DiscipleID uuid.UUID
}

// EdgeMap groups active edges by mentor for O(1) child lookup. It is built
// once per top-level call from a single bulk fetch and traversed in memory;
// no traversal below ever goes back to storage.
type EdgeMap map[uuid.UUID][]uuid.UUID

// BuildEdgeMap groups a flat edge list by mentor id.
func BuildEdgeMap(edges []Edge) EdgeMap {
	m := make(EdgeMap, len(edges))
	for _, e := range edges {
		m[e.MentorID] = append(m[e.MentorID], e.DiscipleID)
	}
	return m
}

// ParentMap inverts a flat edge list to disciple -> mentor. Under the
// single-active-mentor invariant each disciple has one entry; on malformed
// data the last edge wins.
func ParentMap(edges []Edge) map[uuid.UUID]uuid.UUID {
	m := make(map[uuid.UUID]uuid.UUID, len(edges))
	for _, e := range edges {
		m[e.DiscipleID] = e.MentorID
	}
	return m
}
