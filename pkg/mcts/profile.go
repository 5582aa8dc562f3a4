package mcts

// Profile is the flat, serializable view of one tree node in a snapshot.
type Profile struct {
	ID          string  `json:"n_id"`
	ParentID    string  `json:"p_id"`
	Kind        string  `json:"n_key"`
	Content     string  `json:"content"`
	Observation string  `json:"observation"`
	Value       float64 `json:"value"`
	Visits      int     `json:"visits"`
}

// TempPrefix marks ids of transient records that are not tree nodes.
const TempPrefix = "temp#"

// IsTransient reports whether the profile describes an in-progress step.
func (p Profile) IsTransient() bool {
	return len(p.ID) >= len(TempPrefix) && p.ID[:len(TempPrefix)] == TempPrefix
}

func nodeProfile(n *Node) Profile {
	p := Profile{
		ID:      n.ID,
		Kind:    string(n.Context.Kind),
		Content: n.Context.Content,
		Value:   n.Value,
		Visits:  n.Visits,
	}
	if n.parent != nil {
		p.ParentID = n.parent.ID
	}
	p.Observation, _ = n.Context.Observation()
	return p
}

func transientProfile(parentID, kind, content string) Profile {
	return Profile{
		ID:       TempPrefix + shortID(),
		ParentID: parentID,
		Kind:     kind,
		Content:  content,
	}
}

// snapshot flattens the frozen history and the live tree in pre-order and
// appends the given transient records. The live root hangs off the last
// frozen record so consumers see one lineage. Once the search has closed
// the root is already part of the frozen history.
func (r *Runner) snapshot(transient ...Profile) []Profile {
	out := make([]Profile, 0, len(r.frozen)+8+len(transient))
	out = append(out, r.frozen...)
	if r.closed {
		return append(out, transient...)
	}
	r.root.walk(func(n *Node) {
		p := nodeProfile(n)
		if n == r.root {
			p.ParentID = r.lastFrozenID()
		}
		out = append(out, p)
	})
	return append(out, transient...)
}

func (r *Runner) lastFrozenID() string {
	if len(r.frozen) == 0 {
		return ""
	}
	return r.frozen[len(r.frozen)-1].ID
}

// freeze appends the live root's record to the frozen history.
func (r *Runner) freeze() {
	p := nodeProfile(r.root)
	p.ParentID = r.lastFrozenID()
	r.frozen = append(r.frozen, p)
}
