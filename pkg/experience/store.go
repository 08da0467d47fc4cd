package experience

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Query filters experiences by attributes. Zero-valued fields match all.
type Query struct {
	Type     Type
	Language string
	Tags     []string
	Scopes   []Scope
	Limit    int
}

// QueryContext carries the caller's identity used for scope resolution.
type QueryContext struct {
	UserID   string
	TeamID   string
	Project  string
	Repo     string
	Task     string
	Language string
}

// Repository is the persistence seam for experiences.
type Repository interface {
	Save(ctx context.Context, e *Experience) error
	BatchSave(ctx context.Context, es []*Experience) error
	DeleteByID(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Experience, bool)
	Count(ctx context.Context) int
	CountByTypeAndScope(ctx context.Context, typ Type, scope Scope) int
	FindByTypeAndScope(ctx context.Context, typ Type, scope Scope, owner, project string) []*Experience
	Query(ctx context.Context, q Query, qctx QueryContext) []*Experience

	// Search performs free-text retrieval. The base store returns nothing;
	// wrap it with a SemanticIndex for similarity search.
	Search(ctx context.Context, text string, limit int) ([]*Experience, error)
}

// Scope weights chosen so combined scores order strictly:
// USER+PROJECT(300) > USER(100) > TEAM+PROJECT(30) > TEAM(10) > PROJECT(3) > GLOBAL(1).
const (
	weightUser    = 100.0
	weightTeam    = 10.0
	weightProject = 3.0
	weightGlobal  = 1.0
)

// MemoryStore is the in-memory Repository. Saves replace whole entries;
// BatchSave is atomic per entry but not across entries.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Experience
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Experience)}
}

func (s *MemoryStore) Save(ctx context.Context, e *Experience) error {
	if e == nil {
		return fmt.Errorf("experience cannot be nil")
	}
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[e.ID] = e
	return nil
}

func (s *MemoryStore) BatchSave(ctx context.Context, es []*Experience) error {
	var firstErr error
	for _, e := range es {
		if err := s.Save(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *MemoryStore) DeleteByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("experience '%s' not found", id)
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*Experience, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	return e, ok
}

func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStore) CountByTypeAndScope(ctx context.Context, typ Type, scope Scope) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, e := range s.items {
		if e.Type == typ && e.Scope == scope {
			count++
		}
	}
	return count
}

func (s *MemoryStore) FindByTypeAndScope(ctx context.Context, typ Type, scope Scope, owner, project string) []*Experience {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Experience
	for _, e := range s.items {
		if e.Type != typ || e.Scope != scope {
			continue
		}
		if owner != "" && e.Owner != owner {
			continue
		}
		if project != "" && e.Project != project {
			continue
		}
		out = append(out, e)
	}
	sortByUpdatedAt(out)
	return out
}

// Query returns matches ordered by scope specificity then UpdatedAt desc.
func (s *MemoryStore) Query(ctx context.Context, q Query, qctx QueryContext) []*Experience {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		e     *Experience
		score float64
	}

	var matches []scored
	for _, e := range s.items {
		if !matchesQuery(e, q) {
			continue
		}
		score, visible := scopeScore(e, qctx)
		if !visible {
			continue
		}
		matches = append(matches, scored{e: e, score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].e.Metadata.UpdatedAt.After(matches[j].e.Metadata.UpdatedAt)
	})

	out := make([]*Experience, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.e)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Search is intentionally empty on the base store.
func (s *MemoryStore) Search(ctx context.Context, text string, limit int) ([]*Experience, error) {
	return nil, nil
}

func matchesQuery(e *Experience, q Query) bool {
	if q.Type != "" && e.Type != q.Type {
		return false
	}
	if q.Language != "" && e.Language != "" && e.Language != q.Language {
		return false
	}
	if len(q.Scopes) > 0 {
		found := false
		for _, sc := range q.Scopes {
			if e.Scope == sc {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, tag := range q.Tags {
		if !e.HasTag(tag) {
			return false
		}
	}
	return true
}

// scopeScore computes the specificity score of e for the caller. Scope and
// project attributions combine multiplicatively when both match. The second
// return is false when the experience is not visible to the caller at all
// (e.g. another user's USER-scoped record).
func scopeScore(e *Experience, qctx QueryContext) (float64, bool) {
	score := weightGlobal

	switch e.Scope {
	case ScopeUser:
		if qctx.UserID == "" || e.Owner != qctx.UserID {
			return 0, false
		}
		score *= weightUser
	case ScopeTeam:
		if qctx.TeamID == "" || e.Owner != qctx.TeamID {
			return 0, false
		}
		score *= weightTeam
	case ScopeProject:
		if qctx.Project == "" || e.Project != qctx.Project {
			return 0, false
		}
		score *= weightProject
	case ScopeGlobal:
	}

	// USER and TEAM scoped records gain the project factor when the project
	// attribution also matches the caller.
	if e.Scope != ScopeProject && e.Project != "" && qctx.Project != "" && e.Project == qctx.Project {
		score *= weightProject
	}

	return score, true
}

func sortByUpdatedAt(es []*Experience) {
	sort.SliceStable(es, func(i, j int) bool {
		return es[i].Metadata.UpdatedAt.After(es[j].Metadata.UpdatedAt)
	})
}
