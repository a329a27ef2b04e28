package network

import (
	"testing"

	"github.com/google/uuid"
)

func chainEdges(nodes ...byte) EdgeMap {
	pairs := make([][2]byte, 0, len(nodes)-1)
	for i := 0; i+1 < len(nodes); i++ {
		pairs = append(pairs, [2]byte{nodes[i], nodes[i+1]})
	}
	return edgeMap(pairs...)
}

func maxLevel(node *TreeNode) int {
	best := node.Level
	for _, child := range node.Children {
		if d := maxLevel(child); d > best {
			best = d
		}
	}
	return best
}

func TestBuildTreeShape(t *testing.T) {
	edges := edgeMap([2]byte{1, 2}, [2]byte{1, 3}, [2]byte{2, 4})
	attrs := map[uuid.UUID]NodeAttrs{
		uid(1): {Name: "Ana Leader", IsPrimaryLeader: true},
		uid(2): {Name: "Bruno"},
		uid(3): {Name: "Clara", Gender: "female"},
		uid(4): {Name: "Davi"},
	}

	root := BuildTree(uid(1), edges, attrs, TreeOptions{})
	if root.ID != uid(1) || root.Level != 0 || !root.IsPrimaryLeader {
		t.Fatalf("unexpected root node: %+v", root)
	}
	if root.DiscipleCount != 3 {
		t.Fatalf("root DiscipleCount=%d, want 3", root.DiscipleCount)
	}
	if len(root.Children) != 2 {
		t.Fatalf("root has %d children, want 2", len(root.Children))
	}
	// ascending id order
	if root.Children[0].ID != uid(2) || root.Children[1].ID != uid(3) {
		t.Fatalf("children out of order: %s, %s", root.Children[0].ID, root.Children[1].ID)
	}
	if root.Children[0].DiscipleCount != 1 || root.Children[1].DiscipleCount != 0 {
		t.Fatalf("child counts wrong: %d, %d", root.Children[0].DiscipleCount, root.Children[1].DiscipleCount)
	}
	grandchild := root.Children[0].Children[0]
	if grandchild.ID != uid(4) || grandchild.Level != 2 || grandchild.Name != "Davi" {
		t.Fatalf("unexpected grandchild: %+v", grandchild)
	}
}

func TestBuildTreeDepthBound(t *testing.T) {
	edges := chainEdges(1, 2, 3, 4, 5, 6)

	root := BuildTree(uid(1), edges, nil, TreeOptions{MaxDepth: 2})
	if got := maxLevel(root); got != 2 {
		t.Fatalf("max level=%d, want 2", got)
	}
	// truncation is display-only: counts still reflect the full data
	if root.DiscipleCount != 5 {
		t.Fatalf("root DiscipleCount=%d, want 5", root.DiscipleCount)
	}

	deep := BuildTree(uid(1), edges, nil, TreeOptions{})
	if got := maxLevel(deep); got != DefaultMaxTreeDepth {
		t.Fatalf("default max level=%d, want %d", got, DefaultMaxTreeDepth)
	}
}

func TestBuildTreeMissingAttrsFallback(t *testing.T) {
	edges := edgeMap([2]byte{1, 2})
	attrs := map[uuid.UUID]NodeAttrs{uid(1): {Name: "Root"}}

	fetched := 0
	root := BuildTree(uid(1), edges, attrs, TreeOptions{
		FetchAttrs: func(id uuid.UUID) *NodeAttrs {
			fetched++
			if id == uid(2) {
				return &NodeAttrs{Name: "Lazy Loaded"}
			}
			return nil
		},
	})
	if fetched != 1 {
		t.Fatalf("fallback fetch ran %d times, want 1", fetched)
	}
	if root.Children[0].Name != "Lazy Loaded" {
		t.Fatalf("child name=%q, want fallback attrs", root.Children[0].Name)
	}
}

func TestBuildTreeCycleSafe(t *testing.T) {
	edges := edgeMap([2]byte{1, 2}, [2]byte{2, 1})
	root := BuildTree(uid(1), edges, nil, TreeOptions{})
	if len(root.Children) != 1 || len(root.Children[0].Children) != 0 {
		t.Fatalf("cycle leaked into tree: %+v", root)
	}
}
