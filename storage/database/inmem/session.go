package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) CreateSessions(_ context.Context, sessions []session.Session) ([]session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	created := make([]session.Session, 0, len(sessions))
	for _, s := range sessions {
		s.Version = 1
		stored := s.Clone()
		repo.db.table[s.ID] = &stored
		created = append(created, s.Clone())
	}
	return created, nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string) (session.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.table[id]; ok {
		return s.Clone(), nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) QuerySessions(
	_ context.Context,
	filter session.QueryFilter,
	ordering []core.DBOrdering,
	page core.Page,
) ([]session.Session, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	matches := make([]session.Session, 0)
	for _, s := range repo.db.table {
		if filter.Matches(*s) {
			matches = append(matches, s.Clone())
		}
	}
	sortSessions(matches, ordering)

	total := len(matches)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := total
	if page.Size > 0 && start+page.Size < total {
		end = start + page.Size
	}
	return matches[start:end], total, nil
}

func (repo *sessionRepository) UpdateSession(_ context.Context, s session.Session) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.table[s.ID]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	if stored.Version != s.Version {
		return session.Session{}, session.ErrStorageConflict
	}
	s.Version++
	saved := s.Clone()
	repo.db.table[s.ID] = &saved
	return s, nil
}

func (repo *sessionRepository) DeleteSession(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return session.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

// sortSessions orders by the given fields; ties are broken by ID so pages stay stable.
func sortSessions(sessions []session.Session, ordering []core.DBOrdering) {
	sort.SliceStable(sessions, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareSessions(sessions[i], sessions[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return sessions[i].ID < sessions[j].ID
	})
}

func compareSessions(a, b session.Session, field string) int {
	switch field {
	case "start_time":
		return compareInts(a.StartTime.UnixNano(), b.StartTime.UnixNano())
	case "end_time":
		return compareInts(a.EndTime.UnixNano(), b.EndTime.UnixNano())
	case "created_at":
		return compareInts(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	case "current_students":
		return compareInts(int64(a.CurrentStudents), int64(b.CurrentStudents))
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	}
	return 0
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
