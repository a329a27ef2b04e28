package network

import (
	"sort"

	"github.com/google/uuid"
)

// UserIDs returns every user reachable from rootID through active edges,
// rootID included, in breadth-first order. The second result reports whether
// an already-visited node was reached again, which under the
// single-active-mentor invariant can only happen on corrupted (cyclic or
// multi-parent) data; the traversal still terminates and returns what it saw.
func UserIDs(rootID uuid.UUID, edges EdgeMap) ([]uuid.UUID, bool) {
	visited := map[uuid.UUID]struct{}{rootID: {}}
	order := []uuid.UUID{rootID}
	queue := []uuid.UUID{rootID}
	anomaly := false

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range edges[current] {
			if _, seen := visited[child]; seen {
				anomaly = true
				continue
			}
			visited[child] = struct{}{}
			order = append(order, child)
			queue = append(queue, child)
		}
	}
	return order, anomaly
}

// UserIDSet is UserIDs as a membership set, for authorization scoping.
func UserIDSet(rootID uuid.UUID, edges EdgeMap) map[uuid.UUID]struct{} {
	ids, _ := UserIDs(rootID, edges)
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// CountDescendants returns the number of transitive disciples of userID.
func CountDescendants(userID uuid.UUID, edges EdgeMap) int {
	ids, _ := UserIDs(userID, edges)
	return len(ids) - 1
}

// MaxDepth returns the length of the longest downward chain from userID.
// A user with no disciples has depth 0. Cycles break the walk at the repeat
// node, so malformed data yields the best depth found rather than a hang.
func MaxDepth(userID uuid.UUID, edges EdgeMap) (int, bool) {
	visited := map[uuid.UUID]struct{}{userID: {}}
	anomaly := false

	var walk func(id uuid.UUID) int
	walk = func(id uuid.UUID) int {
		best := 0
		for _, child := range edges[id] {
			if _, seen := visited[child]; seen {
				anomaly = true
				continue
			}
			visited[child] = struct{}{}
			if d := walk(child) + 1; d > best {
				best = d
			}
		}
		return best
	}
	return walk(userID), anomaly
}

// SortIDs orders uuids ascending by their string form. Source data carries
// no ordering, so tests and rendered trees use this for reproducibility.
func SortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
