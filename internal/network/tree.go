package network

import "github.com/google/uuid"

// DefaultMaxTreeDepth bounds tree rendering when the caller does not pick a
// depth. Deep chains beyond the bound are truncated for display only.
const DefaultMaxTreeDepth = 5

// NodeAttrs is the projection of user attributes a rendered node carries.
type NodeAttrs struct {
	Name            string
	Gender          string
	IsPrimaryLeader bool
}

// TreeNode is one node of the rendered discipleship tree.
type TreeNode struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	Gender          string      `json:"gender,omitempty"`
	IsPrimaryLeader bool        `json:"is_primary_leader"`
	Level           int         `json:"level"`
	DiscipleCount   int         `json:"disciple_count"`
	Children        []*TreeNode `json:"children"`
}

// TreeOptions tunes BuildTree.
type TreeOptions struct {
	// MaxDepth is the deepest Level a returned node may have; <= 0 means
	// DefaultMaxTreeDepth.
	MaxDepth int
	// FetchAttrs is the fallback for users referenced by an edge but absent
	// from the preloaded attrs map. May be nil.
	FetchAttrs func(id uuid.UUID) *NodeAttrs
}

// BuildTree renders the subtree rooted at rootID as a nested structure.
// Attrs must come from one bulk fetch keyed by id; a missing entry falls
// back to opts.FetchAttrs for that single user instead of failing the whole
// render. Children are ordered ascending by id. Levels start at 0 for the
// root and nodes past opts.MaxDepth are omitted (a display truncation, the
// underlying data is untouched).
func BuildTree(rootID uuid.UUID, edges EdgeMap, attrs map[uuid.UUID]NodeAttrs, opts TreeOptions) *TreeNode {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxTreeDepth
	}
	visited := map[uuid.UUID]struct{}{rootID: {}}
	return buildNode(rootID, 0, maxDepth, edges, attrs, opts.FetchAttrs, visited)
}

func buildNode(id uuid.UUID, level, maxDepth int, edges EdgeMap, attrs map[uuid.UUID]NodeAttrs, fetch func(uuid.UUID) *NodeAttrs, visited map[uuid.UUID]struct{}) *TreeNode {
	a, ok := attrs[id]
	if !ok && fetch != nil {
		if fetched := fetch(id); fetched != nil {
			a = *fetched
		}
	}

	node := &TreeNode{
		ID:              id,
		Name:            a.Name,
		Gender:          a.Gender,
		IsPrimaryLeader: a.IsPrimaryLeader,
		Level:           level,
		DiscipleCount:   CountDescendants(id, edges),
		Children:        []*TreeNode{},
	}
	if level >= maxDepth {
		return node
	}

	children := append([]uuid.UUID(nil), edges[id]...)
	SortIDs(children)
	for _, childID := range children {
		if _, seen := visited[childID]; seen {
			continue
		}
		visited[childID] = struct{}{}
		node.Children = append(node.Children, buildNode(childID, level+1, maxDepth, edges, attrs, fetch, visited))
	}
	return node
}
