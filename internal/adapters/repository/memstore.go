package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/judgeboard/internal/domain/model"
)

type commentKey struct {
	teamID  string
	judgeID string
}

// MemoryStore is a process-local Store. It enforces the same uniqueness and
// cascade rules as the Postgres schema. Safe for concurrent use.
type MemoryStore struct {
	mu sync.RWMutex

	judges     map[string]model.Judge
	teams      map[string]model.Team
	categories map[string]model.Category
	scores     map[model.ScoreKey]model.Score
	comments   map[commentKey]model.Comment
	closed     bool

	now   func() time.Time
	newID func() string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		judges:     make(map[string]model.Judge),
		teams:      make(map[string]model.Team),
		categories: make(map[string]model.Category),
		scores:     make(map[model.ScoreKey]model.Score),
		comments:   make(map[commentKey]model.Comment),
		now:        time.Now,
		newID:      defaultID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListJudges implements Store.
func (s *MemoryStore) ListJudges(context.Context) ([]model.Judge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Judge, 0, len(s.judges))
	for _, j := range s.judges {
		out = append(out, j)
	}
	slices.SortFunc(out, func(a, b model.Judge) int { return byNameThenID(a.Name, a.ID, b.Name, b.ID) })
	return out, nil
}

// CreateJudge implements Store.
func (s *MemoryStore) CreateJudge(_ context.Context, name string) (model.Judge, error) {
	name = model.NormalizeName(name)
	if name == "" {
		return model.Judge{}, ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Judge{}, ErrClosed
	}
	for _, j := range s.judges {
		if j.Name == name {
			return model.Judge{}, fmt.Errorf("judge %q: %w", name, ErrConflict)
		}
	}
	j := model.Judge{ID: s.newID(), Name: name, CreatedAt: s.now()}
	s.judges[j.ID] = j
	return j, nil
}

// DeleteJudge implements Store.
func (s *MemoryStore) DeleteJudge(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.judges[id]; !ok {
		return fmt.Errorf("judge %s: %w", id, ErrNotFound)
	}
	delete(s.judges, id)
	for k := range s.scores {
		if k.JudgeID == id {
			delete(s.scores, k)
		}
	}
	for k := range s.comments {
		if k.judgeID == id {
			delete(s.comments, k)
		}
	}
	return nil
}

// FindJudgesByName implements Store.
func (s *MemoryStore) FindJudgesByName(_ context.Context, name string) ([]model.Judge, error) {
	name = model.NormalizeName(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	var out []model.Judge
	for _, j := range s.judges {
		if j.Name == name {
			out = append(out, j)
		}
	}
	return out, nil
}

// ListTeams implements Store.
func (s *MemoryStore) ListTeams(context.Context) ([]model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Team, 0, len(s.teams))
	for _, t := range s.teams {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b model.Team) int { return byNameThenID(a.Name, a.ID, b.Name, b.ID) })
	return out, nil
}

// CreateTeam implements Store.
func (s *MemoryStore) CreateTeam(_ context.Context, name string) (model.Team, error) {
	name = model.NormalizeName(name)
	if name == "" {
		return model.Team{}, ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Team{}, ErrClosed
	}
	for _, t := range s.teams {
		if t.Name == name {
			return model.Team{}, fmt.Errorf("team %q: %w", name, ErrConflict)
		}
	}
	t := model.Team{ID: s.newID(), Name: name, CreatedAt: s.now()}
	s.teams[t.ID] = t
	return t, nil
}

// DeleteTeam implements Store.
func (s *MemoryStore) DeleteTeam(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.teams[id]; !ok {
		return fmt.Errorf("team %s: %w", id, ErrNotFound)
	}
	delete(s.teams, id)
	for k := range s.scores {
		if k.TeamID == id {
			delete(s.scores, k)
		}
	}
	for k := range s.comments {
		if k.teamID == id {
			delete(s.comments, k)
		}
	}
	return nil
}

// GetTeam implements Store.
func (s *MemoryStore) GetTeam(_ context.Context, id string) (model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Team{}, ErrClosed
	}
	t, ok := s.teams[id]
	if !ok {
		return model.Team{}, fmt.Errorf("team %s: %w", id, ErrNotFound)
	}
	return t, nil
}

// FindTeamsByName implements Store.
func (s *MemoryStore) FindTeamsByName(_ context.Context, name string) ([]model.Team, error) {
	name = model.NormalizeName(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	var out []model.Team
	for _, t := range s.teams {
		if t.Name == name {
			out = append(out, t)
		}
	}
	return out, nil
}

// ListCategories implements Store.
func (s *MemoryStore) ListCategories(context.Context) ([]model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.sortedCategories(), nil
}

// SeedCategories implements Store.
func (s *MemoryStore) SeedCategories(_ context.Context, maxByName map[string]int) ([]model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	byName := make(map[string]string, len(s.categories))
	for id, c := range s.categories {
		byName[c.Name] = id
	}
	for name, maxScore := range maxByName {
		name = model.NormalizeName(name)
		if name == "" {
			return nil, ErrEmptyName
		}
		if maxScore <= 0 {
			maxScore = model.DefaultMaxScore
		}
		if id, ok := byName[name]; ok {
			c := s.categories[id]
			c.MaxScore = maxScore
			s.categories[id] = c
			continue
		}
		c := model.Category{ID: s.newID(), Name: name, MaxScore: maxScore, CreatedAt: s.now()}
		s.categories[c.ID] = c
		byName[name] = c.ID
	}
	return s.sortedCategories(), nil
}

func (s *MemoryStore) sortedCategories() []model.Category {
	out := make([]model.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b model.Category) int { return byNameThenID(a.Name, a.ID, b.Name, b.ID) })
	return out
}

// ListScores implements Store.
func (s *MemoryStore) ListScores(context.Context) ([]model.Score, error) {
	return s.filterScores(func(model.ScoreKey) bool { return true })
}

// ListScoresFor implements Store.
func (s *MemoryStore) ListScoresFor(_ context.Context, teamID, judgeID string) ([]model.Score, error) {
	return s.filterScores(func(k model.ScoreKey) bool { return k.TeamID == teamID && k.JudgeID == judgeID })
}

// ListTeamScores implements Store.
func (s *MemoryStore) ListTeamScores(_ context.Context, teamID string) ([]model.Score, error) {
	return s.filterScores(func(k model.ScoreKey) bool { return k.TeamID == teamID })
}

func (s *MemoryStore) filterScores(keep func(model.ScoreKey) bool) ([]model.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Score, 0)
	for k, v := range s.scores {
		if keep(k) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b model.Score) int {
		return cmp.Or(
			cmp.Compare(a.TeamID, b.TeamID),
			cmp.Compare(a.JudgeID, b.JudgeID),
			cmp.Compare(a.CategoryID, b.CategoryID),
		)
	})
	return out, nil
}

// UpsertScore implements Store.
func (s *MemoryStore) UpsertScore(_ context.Context, sc model.Score) (model.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Score{}, ErrClosed
	}
	if err := s.checkRefs(sc.TeamID, sc.JudgeID); err != nil {
		return model.Score{}, err
	}
	if _, ok := s.categories[sc.CategoryID]; !ok {
		return model.Score{}, fmt.Errorf("category %s: %w", sc.CategoryID, ErrNotFound)
	}

	now := s.now()
	key := sc.Key()
	if prev, ok := s.scores[key]; ok {
		prev.Value = sc.Value
		prev.UpdatedAt = now
		s.scores[key] = prev
		return prev, nil
	}
	row := model.Score{
		ID:         s.newID(),
		TeamID:     sc.TeamID,
		JudgeID:    sc.JudgeID,
		CategoryID: sc.CategoryID,
		Value:      sc.Value,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.scores[key] = row
	return row, nil
}

// FindComment implements Store.
func (s *MemoryStore) FindComment(_ context.Context, teamID, judgeID string) (model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Comment{}, ErrClosed
	}
	c, ok := s.comments[commentKey{teamID: teamID, judgeID: judgeID}]
	if !ok {
		return model.Comment{}, fmt.Errorf("comment %s/%s: %w", teamID, judgeID, ErrNotFound)
	}
	return c, nil
}

// ListTeamComments implements Store.
func (s *MemoryStore) ListTeamComments(_ context.Context, teamID string) ([]model.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Comment, 0)
	for k, c := range s.comments {
		if k.teamID == teamID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b model.Comment) int { return cmp.Compare(a.JudgeID, b.JudgeID) })
	return out, nil
}

// UpsertComment implements Store.
func (s *MemoryStore) UpsertComment(_ context.Context, c model.Comment) (model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Comment{}, ErrClosed
	}
	if err := s.checkRefs(c.TeamID, c.JudgeID); err != nil {
		return model.Comment{}, err
	}

	now := s.now()
	key := commentKey{teamID: c.TeamID, judgeID: c.JudgeID}
	if prev, ok := s.comments[key]; ok {
		prev.Body = c.Body
		prev.UpdatedAt = now
		s.comments[key] = prev
		return prev, nil
	}
	row := model.Comment{
		ID:        s.newID(),
		TeamID:    c.TeamID,
		JudgeID:   c.JudgeID,
		Body:      c.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.comments[key] = row
	return row, nil
}

func (s *MemoryStore) checkRefs(teamID, judgeID string) error {
	if _, ok := s.teams[teamID]; !ok {
		return fmt.Errorf("team %s: %w", teamID, ErrNotFound)
	}
	if _, ok := s.judges[judgeID]; !ok {
		return fmt.Errorf("judge %s: %w", judgeID, ErrNotFound)
	}
	return nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close implements Store. Later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func byNameThenID(aName, aID, bName, bID string) int {
	return cmp.Or(cmp.Compare(aName, bName), cmp.Compare(aID, bID))
}
