package network

import "github.com/google/uuid"

// AncestryUser is the slice of user state the upward walk needs.
type AncestryUser struct {
	IsPrimaryLeader bool
	PrimaryUserID   *uuid.UUID
}

// ResolvePrimary walks up the active mentor chain from userID and returns
// the primary user id the chain implies: the first ancestor flagged as a
// primary leader wins with its own id, otherwise the first ancestor with a
// primary already set passes it down, otherwise nil. The visited guard makes
// a cyclic chain terminate with whatever was found before the repeat; the
// second result flags that case.
func ResolvePrimary(userID uuid.UUID, parents map[uuid.UUID]uuid.UUID, users map[uuid.UUID]AncestryUser) (*uuid.UUID, bool) {
	visited := map[uuid.UUID]struct{}{userID: {}}
	current := userID
	for {
		mentorID, ok := parents[current]
		if !ok {
			return nil, false
		}
		if _, seen := visited[mentorID]; seen {
			return nil, true
		}
		visited[mentorID] = struct{}{}

		mentor, ok := users[mentorID]
		if !ok {
			return nil, false
		}
		if mentor.IsPrimaryLeader {
			id := mentorID
			return &id, false
		}
		if mentor.PrimaryUserID != nil {
			id := *mentor.PrimaryUserID
			return &id, false
		}
		current = mentorID
	}
}
