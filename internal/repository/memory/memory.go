// Package memory is a process-local implementation of the repository
// interfaces. It backs service and handler tests and keeps the same
// sentinel errors and atomicity guarantees as the PostgreSQL repositories.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/repository"
)

// DB holds every table behind one mutex.
type DB struct {
	mu  sync.Mutex
	now func() time.Time
	seq int64

	students map[int64]*model.Student
	sessions map[int64]*model.QuizSession
	answers  []model.QuizAnswer
	results  map[int64]*model.QuizResultSummary // by session_id
	tokens   map[string]*model.Token
	admins   map[int64]*model.Admin
	logs     []model.AdminLog
}

// New returns an empty database.
func New() *DB {
	return &DB{
		now:      time.Now,
		students: map[int64]*model.Student{},
		sessions: map[int64]*model.QuizSession{},
		results:  map[int64]*model.QuizResultSummary{},
		tokens:   map[string]*model.Token{},
		admins:   map[int64]*model.Admin{},
	}
}

// SetClock replaces the time source used for timestamps.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	db.now = now
	db.mu.Unlock()
}

func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}

// Students returns the students table.
func (db *DB) Students() *StudentStore { return &StudentStore{db} }

// Sessions returns the quiz_sessions table.
func (db *DB) Sessions() *SessionStore { return &SessionStore{db} }

// Answers returns the quiz_answers table.
func (db *DB) Answers() *AnswerStore { return &AnswerStore{db} }

// Results returns the result summaries.
func (db *DB) Results() *ResultStore { return &ResultStore{db} }

// Tokens returns the access tokens.
func (db *DB) Tokens() *TokenStore { return &TokenStore{db} }

// Admins returns the admin accounts.
func (db *DB) Admins() *AdminStore { return &AdminStore{db} }

// AdminLogs returns the audit trail.
func (db *DB) AdminLogs() *AdminLogStore { return &AdminLogStore{db} }

// ─── Students ───────────────────────────────────────────────────────

// StudentStore is the in-memory counterpart of repository.StudentRepository.
type StudentStore struct{ db *DB }

// GetByID returns a copy of the student or repository.ErrNotFound.
func (s *StudentStore) GetByID(_ context.Context, id int64) (*model.Student, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	st, ok := s.db.students[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

// FindLatest returns the newest student with exactly this identity.
func (s *StudentStore) FindLatest(_ context.Context, fullName, class, school string) (*model.Student, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var latest *model.Student
	for _, st := range s.db.students {
		if st.FullName != fullName || st.Class != class || st.School != school {
			continue
		}
		if latest == nil || st.CreatedAt.After(latest.CreatedAt) ||
			(st.CreatedAt.Equal(latest.CreatedAt) && st.ID > latest.ID) {
			latest = st
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

// Create assigns the ID and timestamps of st.
func (s *StudentStore) Create(_ context.Context, st *model.Student) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	now := s.db.now().UTC()
	st.ID = s.db.nextID()
	st.CreatedAt, st.UpdatedAt = now, now
	cp := *st
	s.db.students[st.ID] = &cp
	return nil
}

// ─── Sessions ───────────────────────────────────────────────────────

// SessionStore keeps quiz sessions keyed by ID.
type SessionStore struct{ db *DB }

// GetByID returns a copy of the session or repository.ErrNotFound.
func (s *SessionStore) GetByID(_ context.Context, id int64) (*model.QuizSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

// GetByToken finds the session bound to an access token.
func (s *SessionStore) GetByToken(_ context.Context, token string) (*model.QuizSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, sess := range s.db.sessions {
		if sess.SessionToken == token {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Create inserts sess. A second session for the same token is repository.ErrDuplicateSessionToken.
func (s *SessionStore) Create(_ context.Context, sess *model.QuizSession) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.sessions {
		if existing.SessionToken == sess.SessionToken {
			return repository.ErrDuplicateSessionToken
		}
	}
	now := s.db.now().UTC()
	sess.ID = s.db.nextID()
	sess.StartedAt, sess.CreatedAt, sess.UpdatedAt = now, now, now
	cp := *sess
	s.db.sessions[sess.ID] = &cp
	return nil
}

// RecordAnswer holds the database lock for the whole read-apply-write cycle.
func (s *SessionStore) RecordAnswer(_ context.Context, sessionID int64, apply repository.ApplyAnswerFunc) (*model.QuizSession, *model.QuizAnswer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	stored, ok := s.db.sessions[sessionID]
	if !ok {
		return nil, nil, repository.ErrNotFound
	}
	sess := *stored

	ans, err := apply(&sess)
	if err != nil {
		return nil, nil, err
	}

	now := s.db.now().UTC()
	sess.UpdatedAt = now
	ans.ID = s.db.nextID()
	ans.SessionID, ans.StudentID = sess.ID, sess.StudentID
	ans.AnsweredAt, ans.CreatedAt = now, now

	*stored = sess
	s.db.answers = append(s.db.answers, *ans)
	return &sess, ans, nil
}

// Close moves an active session to status under the database lock.
// A closed session is returned unchanged.
func (s *SessionStore) Close(_ context.Context, id int64, status model.SessionStatus, at time.Time) (*model.QuizSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if sess.IsActive() {
		sess.Status = status
		if sess.CompletedAt == nil {
			t := at
			sess.CompletedAt = &t
		}
		sess.UpdatedAt = s.db.now().UTC()
	}
	cp := *sess
	return &cp, nil
}

// ListStale returns active sessions idle since before, oldest first.
func (s *SessionStore) ListStale(_ context.Context, before time.Time, limit int) ([]model.QuizSession, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := []model.QuizSession{}
	for _, sess := range s.db.sessions {
		if sess.IsActive() && sess.UpdatedAt.Before(before) {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a session together with its answers and summary.
func (s *SessionStore) Delete(_ context.Context, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.db.sessions, id)
	delete(s.db.results, id)

	kept := s.db.answers[:0]
	for _, a := range s.db.answers {
		if a.SessionID != id {
			kept = append(kept, a)
		}
	}
	s.db.answers = kept
	return nil
}

// ─── Answers ────────────────────────────────────────────────────────

// AnswerStore reads the answers RecordAnswer appends.
type AnswerStore struct{ db *DB }

// ListBySession returns the answers of one session in submission order.
func (s *AnswerStore) ListBySession(_ context.Context, sessionID int64) ([]model.QuizAnswer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.QuizAnswer{}
	for _, a := range s.db.answers {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ListBriefBySessions groups export columns by session ID.
func (s *AnswerStore) ListBriefBySessions(_ context.Context, sessionIDs []int64) (map[int64][]repository.AnswerBrief, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	want := make(map[int64]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		want[id] = true
	}
	out := make(map[int64][]repository.AnswerBrief, len(sessionIDs))
	for _, a := range s.db.answers {
		if want[a.SessionID] {
			out[a.SessionID] = append(out[a.SessionID], repository.AnswerBrief{QuestionID: a.QuestionID, IsCorrect: a.IsCorrect})
		}
	}
	return out, nil
}

// ─── Results ────────────────────────────────────────────────────────

// ResultStore holds one summary per session.
type ResultStore struct{ db *DB }

// GetBySessionID returns the summary of a session or repository.ErrNotFound.
func (s *ResultStore) GetBySessionID(_ context.Context, sessionID int64) (*model.QuizResultSummary, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.results[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// Create inserts r, or returns repository.ErrDuplicateSummary if the session has one.
func (s *ResultStore) Create(_ context.Context, r *model.QuizResultSummary) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.results[r.SessionID]; ok {
		return repository.ErrDuplicateSummary
	}
	now := s.db.now().UTC()
	r.ID = s.db.nextID()
	r.CreatedAt, r.UpdatedAt = now, now
	cp := *r
	s.db.results[r.SessionID] = &cp
	return nil
}

// UpdateAggregates overwrites the counters and keeps status, completed_at and created_at.
func (s *ResultStore) UpdateAggregates(_ context.Context, r *model.QuizResultSummary) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	stored, ok := s.db.results[r.SessionID]
	if !ok {
		return repository.ErrNotFound
	}
	status, completedAt, createdAt, id := stored.Status, stored.CompletedAt, stored.CreatedAt, stored.ID
	*stored = *r
	stored.ID, stored.Status, stored.CompletedAt, stored.CreatedAt = id, status, completedAt, createdAt
	stored.UpdatedAt = s.db.now().UTC()
	r.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *ResultStore) row(r *model.QuizResultSummary) model.ResultRow {
	rr := model.ResultRow{QuizResultSummary: *r}
	if st, ok := s.db.students[r.StudentID]; ok {
		rr.FullName, rr.Class, rr.School = st.FullName, st.Class, st.School
	}
	if sess, ok := s.db.sessions[r.SessionID]; ok {
		rr.SessionToken, rr.TokenUsed = sess.SessionToken, sess.TokenUsed
	}
	return rr
}

// GetRow joins one summary with its student and session.
func (s *ResultStore) GetRow(_ context.Context, sessionID int64) (*model.ResultRow, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.results[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	rr := s.row(r)
	return &rr, nil
}

// List filters and pages joined rows, newest first.
func (s *ResultStore) List(_ context.Context, f model.ResultFilter) ([]model.ResultRow, int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	rows := []model.ResultRow{}
	for _, r := range s.db.results {
		rr := s.row(r)
		if !matches(rr, f) {
			continue
		}
		rows = append(rows, rr)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CompletedAt.Equal(rows[j].CompletedAt) {
			return rows[i].CompletedAt.After(rows[j].CompletedAt)
		}
		return rows[i].ID > rows[j].ID
	})

	total := len(rows)
	if f.PerPage > 0 {
		page := max(f.Page, 1)
		start := min((page-1)*f.PerPage, total)
		end := min(start+f.PerPage, total)
		rows = rows[start:end]
	}
	return rows, total, nil
}

func matches(r model.ResultRow, f model.ResultFilter) bool {
	if f.Level != nil && r.HighestLevelReached != *f.Level {
		return false
	}
	if f.School != "" && !strings.Contains(strings.ToLower(r.School), strings.ToLower(f.School)) {
		return false
	}
	if f.Status != "" && string(r.Status) != f.Status {
		return false
	}
	if f.DateFrom != nil && r.CompletedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && !r.CompletedAt.Before(f.DateTo.Add(24*time.Hour)) {
		return false
	}
	return true
}

// ─── Tokens ─────────────────────────────────────────────────────────

// TokenStore keeps access tokens keyed by code.
type TokenStore struct{ db *DB }

// Seed stores t as given, including its usage count.
func (s *TokenStore) Seed(t model.Token) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.db.nextID()
	}
	s.db.tokens[t.TokenCode] = &t
}

// GetByCode returns the token in any state.
func (s *TokenStore) GetByCode(_ context.Context, code string) (*model.Token, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tokens[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// GetUsable returns the token only while it can still be redeemed.
func (s *TokenStore) GetUsable(_ context.Context, code string) (*model.Token, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tokens[code]
	if !ok || !t.Usable(s.db.now()) {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// Use consumes one redemption if the token is still usable.
func (s *TokenStore) Use(_ context.Context, code string) (*model.Token, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tokens[code]
	if !ok || !t.Usable(s.db.now()) {
		return nil, repository.ErrNotFound
	}
	t.UsageCount++
	t.UpdatedAt = s.db.now().UTC()
	cp := *t
	return &cp, nil
}

// Create inserts t. Code clashes are repository.ErrDuplicateTokenCode.
func (s *TokenStore) Create(_ context.Context, t *model.Token) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.tokens[t.TokenCode]; ok {
		return repository.ErrDuplicateTokenCode
	}
	now := s.db.now().UTC()
	t.ID = s.db.nextID()
	t.UsageCount = 0
	t.CreatedAt, t.UpdatedAt = now, now
	cp := *t
	s.db.tokens[t.TokenCode] = &cp
	return nil
}

// List returns every token, newest first.
func (s *TokenStore) List(_ context.Context) ([]model.Token, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]model.Token, 0, len(s.db.tokens))
	for _, t := range s.db.tokens {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Update writes the editable fields of t.
func (s *TokenStore) Update(_ context.Context, t *model.Token) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	stored, ok := s.db.tokens[t.TokenCode]
	if !ok {
		return repository.ErrNotFound
	}
	stored.TokenName, stored.MaxUsage, stored.ExpiresAt, stored.IsActive = t.TokenName, t.MaxUsage, t.ExpiresAt, t.IsActive
	stored.UpdatedAt = s.db.now().UTC()
	t.UpdatedAt = stored.UpdatedAt
	return nil
}

// Delete removes the token with code.
func (s *TokenStore) Delete(_ context.Context, code string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.tokens[code]; !ok {
		return repository.ErrNotFound
	}
	delete(s.db.tokens, code)
	return nil
}

// ─── Admins ─────────────────────────────────────────────────────────

// AdminStore keeps admin accounts.
type AdminStore struct{ db *DB }

// GetByID returns a copy of the admin.
func (s *AdminStore) GetByID(_ context.Context, id int64) (*model.Admin, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.admins[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// GetByUsername looks an admin up by login name.
func (s *AdminStore) GetByUsername(_ context.Context, username string) (*model.Admin, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, a := range s.db.admins {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Create inserts a, rejecting a taken username or email.
func (s *AdminStore) Create(_ context.Context, a *model.Admin) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.admins {
		if existing.Username == a.Username {
			return repository.ErrDuplicateUsername
		}
		if existing.Email == a.Email {
			return repository.ErrDuplicateEmail
		}
	}
	now := s.db.now().UTC()
	a.ID = s.db.nextID()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	s.db.admins[a.ID] = &cp
	return nil
}

// TouchLastLogin stamps last_login with the current clock.
func (s *AdminStore) TouchLastLogin(_ context.Context, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.admins[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := s.db.now().UTC()
	a.LastLogin = &now
	return nil
}

// ─── Audit log ──────────────────────────────────────────────────────

// AdminLogStore is an append-only audit trail.
type AdminLogStore struct{ db *DB }

// Insert appends l.
func (s *AdminLogStore) Insert(_ context.Context, l *model.AdminLog) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l.ID = s.db.nextID()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.db.now().UTC()
	}
	s.db.logs = append(s.db.logs, *l)
	return nil
}

// BulkInsert appends logs one by one and reports how many were stored.
func (s *AdminLogStore) BulkInsert(ctx context.Context, logs []model.AdminLog) (int64, error) {
	for i := range logs {
		if err := s.Insert(ctx, &logs[i]); err != nil {
			return int64(i), err
		}
	}
	return int64(len(logs)), nil
}

// ListPaginated returns one page, newest first, and the total count.
func (s *AdminLogStore) ListPaginated(_ context.Context, limit, offset int) ([]model.AdminLog, int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	all := make([]model.AdminLog, len(s.db.logs))
	copy(all, s.db.logs)
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := len(all)
	start := min(max(offset, 0), total)
	end := total
	if limit > 0 {
		end = min(start+limit, total)
	}
	return all[start:end], total, nil
}
