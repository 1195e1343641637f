package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campushub/helpdesk-service/internal/domain"
)

// MemoryStore keeps the whole directory and ledger in process memory.
//
// It honours the same conditional-write contract as the Postgres repositories
// (including the two partial unique indexes) under a single mutex, and
// reports missing rows as pgx.ErrNoRows so callers cannot tell the two apart.
type MemoryStore struct {
	mu       sync.Mutex
	users    []*domain.User
	issues   []*domain.Issue
	messages []domain.ThreadMessage
	history  []domain.IssueHistory
	direct   []domain.DirectMessage
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Users exposes the store as a UserRepository.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Issues exposes the store as an IssueRepository.
func (s *MemoryStore) Issues() IssueRepository { return memoryIssues{s} }

// Messages exposes the store as a MessageRepository.
func (s *MemoryStore) Messages() MessageRepository { return memoryMessages{s} }

// History exposes the store as a HistoryRepository.
func (s *MemoryStore) History() HistoryRepository { return memoryHistory{s} }

// DirectMessages exposes the store as a DirectMessageRepository.
func (s *MemoryStore) DirectMessages() DirectMessageRepository { return memoryDirect{s} }

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return ErrEmailTaken
		}
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.LastSeen = now
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	r.s.users = append(r.s.users, &stored)
	return nil
}

func (r memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user := r.s.findUser(id)
	if user == nil {
		return nil, pgx.ErrNoRows
	}
	out := *user
	return &out, nil
}

func (r memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range r.s.users {
		if user.Email == email {
			out := *user
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memoryUsers) List(_ context.Context, filter UserFilter) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var ids map[string]struct{}
	if filter.IDs != nil {
		ids = make(map[string]struct{}, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = struct{}{}
		}
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	var result []domain.User
	for _, user := range r.s.users {
		if filter.Department != nil && !user.InDepartment(*filter.Department) {
			continue
		}
		if len(filter.Roles) > 0 && !containsRole(filter.Roles, user.Role) {
			continue
		}
		if ids != nil {
			if _, ok := ids[user.ID]; !ok {
				continue
			}
		}
		if filter.ExcludeID != "" && user.ID == filter.ExcludeID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(user.FullName), search) && !strings.Contains(user.Email, search) {
			continue
		}
		result = append(result, *user)
	}
	return result, nil
}

func (r memoryUsers) UpdateProfile(_ context.Context, id string, update ProfileUpdate) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user := r.s.findUser(id)
	if user == nil {
		return nil, pgx.ErrNoRows
	}
	if update.FullName != nil {
		user.FullName = *update.FullName
	}
	if update.ProfilePic != nil {
		user.ProfilePic = *update.ProfilePic
	}
	user.UpdatedAt = time.Now().UTC()
	out := *user
	return &out, nil
}

func (r memoryUsers) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user := r.s.findUser(id)
	if user == nil {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (r memoryUsers) RecordResolution(_ context.Context, staffID string, solved bool) (domain.PerformanceMetrics, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user := r.s.findUser(staffID)
	if user == nil {
		return domain.PerformanceMetrics{}, pgx.ErrNoRows
	}
	user.PerformanceMetrics = user.PerformanceMetrics.Record(solved)
	user.UpdatedAt = time.Now().UTC()
	return user.PerformanceMetrics, nil
}

func (r memoryUsers) SetMetrics(_ context.Context, staffID string, metrics domain.PerformanceMetrics) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user := r.s.findUser(staffID)
	if user == nil {
		return pgx.ErrNoRows
	}
	user.PerformanceMetrics = metrics
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (r memoryUsers) ResetMetrics(_ context.Context, roles []domain.Role, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var affected int64
	for _, user := range r.s.users {
		if len(roles) > 0 && !containsRole(roles, user.Role) {
			continue
		}
		stamp := at
		user.PerformanceMetrics = domain.PerformanceMetrics{}
		user.MetricsResetAt = &stamp
		user.UpdatedAt = at
		affected++
	}
	return affected, nil
}

func (r memoryUsers) SetPresence(_ context.Context, id string, online bool, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user := r.s.findUser(id)
	if user == nil {
		return pgx.ErrNoRows
	}
	user.IsOnline = online
	user.LastSeen = at
	return nil
}

type memoryIssues struct{ s *MemoryStore }

func (r memoryIssues) Create(_ context.Context, issue *domain.Issue) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.issues {
		if existing.Department == issue.Department && existing.SenderID == issue.SenderID && existing.Status.Active() {
			return ErrActiveIssueExists
		}
	}
	issue.ID = uuid.NewString()
	issue.UpdatedAt = issue.CreatedAt
	stored := *issue
	r.s.issues = append(r.s.issues, &stored)
	return nil
}

func (r memoryIssues) GetByID(_ context.Context, id string) (*domain.Issue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	issue := r.s.findIssue(id)
	if issue == nil {
		return nil, pgx.ErrNoRows
	}
	out := *issue
	return &out, nil
}

func (r memoryIssues) FindActiveForSender(_ context.Context, dept domain.Department, senderID string) (*domain.Issue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, issue := range r.s.issues {
		if issue.Department == dept && issue.SenderID == senderID && issue.Status.Active() {
			out := *issue
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memoryIssues) FindAssignedForStaff(_ context.Context, dept domain.Department, staffID string) (*domain.Issue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if issue := r.s.assignedTo(dept, staffID); issue != nil {
		out := *issue
		return &out, nil
	}
	return nil, pgx.ErrNoRows
}

func (r memoryIssues) ListByDepartment(_ context.Context, filter IssueFilter) ([]domain.Issue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []domain.Issue
	for _, issue := range r.s.issues {
		if issue.Department != filter.Department {
			continue
		}
		switch filter.View {
		case FeedFull:
		case FeedSender:
			if issue.SenderID != filter.ViewerID {
				continue
			}
		case FeedStaffQueue:
			if issue.Status != domain.IssueStatusOpen &&
				!(issue.Status == domain.IssueStatusAssigned && issue.AssignedTo(filter.ViewerID)) {
				continue
			}
		}
		result = append(result, *issue)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r memoryIssues) Accept(_ context.Context, id, staffID, staffName string, at time.Time) (*domain.Issue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	issue := r.s.findIssue(id)
	if issue == nil || issue.Status != domain.IssueStatusOpen {
		return nil, ErrTransitionRejected
	}
	if r.s.assignedTo(issue.Department, staffID) != nil {
		return nil, ErrStaffAlreadyAssigned
	}
	staff := staffID
	accepted := at
	issue.Status = domain.IssueStatusAssigned
	issue.AssignedStaff = &staff
	issue.AssignedStaffName = staffName
	issue.AcceptedAt = &accepted
	issue.UpdatedAt = at
	out := *issue
	return &out, nil
}

func (r memoryIssues) Solve(_ context.Context, id, staffID string, at, cutoff time.Time) (*domain.Issue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	issue := r.s.findIssue(id)
	if issue == nil || issue.Status != domain.IssueStatusAssigned || !issue.AssignedTo(staffID) ||
		issue.AcceptedAt == nil || !issue.AcceptedAt.After(cutoff) {
		return nil, ErrTransitionRejected
	}
	solved := at
	issue.Status = domain.IssueStatusSolved
	issue.SolvedAt = &solved
	issue.UpdatedAt = at
	out := *issue
	return &out, nil
}

func (r memoryIssues) MarkNotSolved(_ context.Context, id string, at time.Time) (*domain.Issue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	issue := r.s.findIssue(id)
	if issue == nil || issue.Status != domain.IssueStatusAssigned {
		return nil, ErrTransitionRejected
	}
	failIssue(issue, at)
	out := *issue
	return &out, nil
}

func (r memoryIssues) ExpireAssigned(_ context.Context, filter ExpireFilter, cutoff, at time.Time) ([]domain.Issue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []domain.Issue
	for _, issue := range r.s.issues {
		if issue.Status != domain.IssueStatusAssigned || issue.AcceptedAt == nil || issue.AcceptedAt.After(cutoff) {
			continue
		}
		if filter.IssueID != nil && issue.ID != *filter.IssueID {
			continue
		}
		if filter.Department != nil && issue.Department != *filter.Department {
			continue
		}
		if filter.StaffID != nil && !issue.AssignedTo(*filter.StaffID) {
			continue
		}
		if filter.SenderID != nil && issue.SenderID != *filter.SenderID {
			continue
		}
		failIssue(issue, at)
		result = append(result, *issue)
	}
	return result, nil
}

func (r memoryIssues) CountResolvedForStaff(_ context.Context, staffID string, since *time.Time) (int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total, solved int
	for _, issue := range r.s.issues {
		if !issue.AssignedTo(staffID) || !issue.Status.Terminal() {
			continue
		}
		if resolved := issue.ResolvedAt(); since != nil && (resolved == nil || !resolved.After(*since)) {
			continue
		}
		total++
		if issue.Status == domain.IssueStatusSolved {
			solved++
		}
	}
	return total, solved, nil
}

func (r memoryIssues) CountByDepartment(_ context.Context, dept domain.Department) (IssueCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var counts IssueCounts
	for _, issue := range r.s.issues {
		if issue.Department != dept {
			continue
		}
		counts.Total++
		switch issue.Status {
		case domain.IssueStatusOpen:
			counts.Open++
		case domain.IssueStatusAssigned:
			counts.Assigned++
		case domain.IssueStatusSolved:
			counts.Solved++
		case domain.IssueStatusNotSolved:
			counts.NotSolved++
		}
	}
	return counts, nil
}

func (r memoryIssues) DailyCounts(_ context.Context, dept domain.Department, from, to time.Time) ([]DailyCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	buckets := map[time.Time]*DailyCount{}
	for _, issue := range r.s.issues {
		if issue.Department != dept || issue.CreatedAt.Before(from) || !issue.CreatedAt.Before(to) {
			continue
		}
		created := issue.CreatedAt.UTC()
		day := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, time.UTC)
		bucket, ok := buckets[day]
		if !ok {
			bucket = &DailyCount{Day: day}
			buckets[day] = bucket
		}
		bucket.Total++
		if issue.Status == domain.IssueStatusSolved {
			bucket.Solved++
		}
	}

	result := make([]DailyCount, 0, len(buckets))
	for _, bucket := range buckets {
		result = append(result, *bucket)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day.Before(result[j].Day) })
	return result, nil
}

type memoryMessages struct{ s *MemoryStore }

func (r memoryMessages) Create(_ context.Context, msg *domain.ThreadMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.findIssue(msg.IssueID) == nil {
		return pgx.ErrNoRows
	}
	msg.ID = uuid.NewString()
	r.s.messages = append(r.s.messages, *msg)
	return nil
}

func (r memoryMessages) ListByIssue(_ context.Context, issueID string) ([]domain.ThreadMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.ThreadMessage
	for _, msg := range r.s.messages {
		if msg.IssueID == issueID {
			result = append(result, msg)
		}
	}
	return result, nil
}

type memoryDirect struct{ s *MemoryStore }

func (r memoryDirect) Create(_ context.Context, msg *domain.DirectMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg.ID = uuid.NewString()
	r.s.direct = append(r.s.direct, *msg)
	return nil
}

func (r memoryDirect) ListBetween(_ context.Context, userA, userB string) ([]domain.DirectMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.DirectMessage
	for _, msg := range r.s.direct {
		if msg.Involves(userA) && msg.Peer(userA) == userB {
			result = append(result, msg)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r memoryDirect) Partners(_ context.Context, userID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[string]struct{}{}
	partners := []string{}
	for _, msg := range r.s.direct {
		if !msg.Involves(userID) {
			continue
		}
		peer := msg.Peer(userID)
		if _, ok := seen[peer]; ok {
			continue
		}
		seen[peer] = struct{}{}
		partners = append(partners, peer)
	}
	sort.Strings(partners)
	return partners, nil
}

type memoryHistory struct{ s *MemoryStore }

func (r memoryHistory) Create(_ context.Context, entry *domain.IssueHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = uuid.NewString()
	r.s.history = append(r.s.history, *entry)
	return nil
}

func (r memoryHistory) ListByIssue(_ context.Context, issueID string) ([]domain.IssueHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.IssueHistory
	for _, entry := range r.s.history {
		if entry.IssueID == issueID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (s *MemoryStore) findUser(id string) *domain.User {
	for _, user := range s.users {
		if user.ID == id {
			return user
		}
	}
	return nil
}

func (s *MemoryStore) findIssue(id string) *domain.Issue {
	for _, issue := range s.issues {
		if issue.ID == id {
			return issue
		}
	}
	return nil
}

func (s *MemoryStore) assignedTo(dept domain.Department, staffID string) *domain.Issue {
	for _, issue := range s.issues {
		if issue.Department == dept && issue.Status == domain.IssueStatusAssigned && issue.AssignedTo(staffID) {
			return issue
		}
	}
	return nil
}

func failIssue(issue *domain.Issue, at time.Time) {
	failed := at
	issue.Status = domain.IssueStatusNotSolved
	issue.FailedAt = &failed
	issue.UpdatedAt = at
}

func containsRole(roles []domain.Role, role domain.Role) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}
