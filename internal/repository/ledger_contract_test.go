package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushub/helpdesk-service/internal/config"
	"github.com/campushub/helpdesk-service/internal/domain"
	"github.com/campushub/helpdesk-service/internal/persistence"
)

// postgresDSNEnv points the ledger tests at a disposable database.
const postgresDSNEnv = "HELPDESK_TEST_POSTGRES_DSN"

type ledger struct {
	users  UserRepository
	issues IssueRepository
	direct DirectMessageRepository
}

// ledgers returns every backend to check; Postgres joins when the DSN is set.
func ledgers(t *testing.T) map[string]func(t *testing.T) ledger {
	backends := map[string]func(t *testing.T) ledger{
		"memory": func(*testing.T) ledger {
			store := NewMemoryStore()
			return ledger{users: store.Users(), issues: store.Issues(), direct: store.DirectMessages()}
		},
	}
	dsn := os.Getenv(postgresDSNEnv)
	if dsn == "" {
		t.Logf("%s not set; ledger checks run on the memory store only", postgresDSNEnv)
		return backends
	}
	backends["postgres"] = func(t *testing.T) ledger {
		t.Helper()
		ctx := context.Background()
		pg, err := persistence.NewPostgres(ctx, config.PostgresConfig{DSN: dsn, MaxConns: 16}, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(pg.Close)
		pool := pg.PoolHandle()
		require.NoError(t, persistence.RunMigrations(ctx, pool, "../../migrations", zap.NewNop()))
		_, err = pool.Exec(ctx, `TRUNCATE direct_messages, issue_history, issue_messages, department_issues, users CASCADE`)
		require.NoError(t, err)
		return ledger{
			users:  NewUserRepository(pool),
			issues: NewIssueRepository(pool),
			direct: NewDirectMessageRepository(pool),
		}
	}
	return backends
}

func eachLedger(t *testing.T, run func(t *testing.T, l ledger)) {
	for name, open := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			run(t, open(t))
		})
	}
}

func (l ledger) user(t *testing.T, name string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{Email: name + "@campus.edu", FullName: name, Role: role}
	if role.IsStaff() {
		dept := domain.DepartmentIT
		user.Department = &dept
	}
	require.NoError(t, l.users.Create(context.Background(), user))
	return user
}

func (l ledger) issue(t *testing.T, dept domain.Department, sender *domain.User, at time.Time) *domain.Issue {
	t.Helper()
	issue := &domain.Issue{
		Department: dept,
		SenderID:   sender.ID,
		SenderName: sender.FullName,
		SenderType: domain.SenderStudent,
		Text:       "help",
		Status:     domain.IssueStatusOpen,
		CreatedAt:  at,
	}
	require.NoError(t, l.issues.Create(context.Background(), issue))
	return issue
}

func TestLedgerUniqueEmail(t *testing.T) {
	eachLedger(t, func(t *testing.T, l ledger) {
		l.user(t, "ada", domain.RoleStudent)
		err := l.users.Create(context.Background(), &domain.User{Email: "ada@campus.edu", FullName: "Ada", Role: domain.RoleStudent})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestLedgerOneActiveIssuePerSender(t *testing.T) {
	eachLedger(t, func(t *testing.T, l ledger) {
		ctx := context.Background()
		student := l.user(t, "student", domain.RoleStudent)
		staff := l.user(t, "staff", domain.RoleStaff)
		first := l.issue(t, domain.DepartmentIT, student, t0)

		err := l.issues.Create(ctx, &domain.Issue{
			Department: domain.DepartmentIT, SenderID: student.ID, SenderName: "student",
			SenderType: domain.SenderStudent, Text: "again", Status: domain.IssueStatusOpen, CreatedAt: t0,
		})
		assert.ErrorIs(t, err, ErrActiveIssueExists)

		l.issue(t, domain.DepartmentEU, student, t0)

		_, err = l.issues.Accept(ctx, first.ID, staff.ID, "staff", t0)
		require.NoError(t, err)
		_, err = l.issues.MarkNotSolved(ctx, first.ID, t0.Add(time.Second))
		require.NoError(t, err)
		l.issue(t, domain.DepartmentIT, student, t0.Add(time.Minute))
	})
}

func TestLedgerAcceptRace(t *testing.T) {
	eachLedger(t, func(t *testing.T, l ledger) {
		student := l.user(t, "student", domain.RoleStudent)
		issue := l.issue(t, domain.DepartmentIT, student, t0)
		staff := make([]*domain.User, 8)
		for i := range staff {
			staff[i] = l.user(t, fmt.Sprintf("staff%d", i), domain.RoleStaff)
		}

		var wg sync.WaitGroup
		results := make(chan error, len(staff))
		for _, member := range staff {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := l.issues.Accept(context.Background(), issue.ID, id, "", t0)
				results <- err
			}(member.ID)
		}
		wg.Wait()
		close(results)

		wins := 0
		for err := range results {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, ErrTransitionRejected)
		}
		assert.Equal(t, 1, wins)
	})
}

func TestLedgerStaffHoldsOneAssignment(t *testing.T) {
	eachLedger(t, func(t *testing.T, l ledger) {
		ctx := context.Background()
		staff := l.user(t, "staff", domain.RoleStaff)
		a := l.issue(t, domain.DepartmentIT, l.user(t, "s1", domain.RoleStudent), t0)
		b := l.issue(t, domain.DepartmentIT, l.user(t, "s2", domain.RoleStudent), t0)

		_, err := l.issues.Accept(ctx, a.ID, staff.ID, "staff", t0)
		require.NoError(t, err)
		_, err = l.issues.Accept(ctx, b.ID, staff.ID, "staff", t0)
		assert.ErrorIs(t, err, ErrStaffAlreadyAssigned)

		reloaded, err := l.issues.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.IssueStatusOpen, reloaded.Status)
	})
}

func TestLedgerSolveCutoff(t *testing.T) {
	eachLedger(t, func(t *testing.T, l ledger) {
		ctx := context.Background()
		staff := l.user(t, "staff", domain.RoleStaff)
		other := l.user(t, "other", domain.RoleStaff)
		issue := l.issue(t, domain.DepartmentIT, l.user(t, "s1", domain.RoleStudent), t0)
		_, err := l.issues.Accept(ctx, issue.ID, staff.ID, "staff", t0)
		require.NoError(t, err)

		_, err = l.issues.Solve(ctx, issue.ID, other.ID, t0.Add(time.Second), t0.Add(-time.Minute))
		assert.ErrorIs(t, err, ErrTransitionRejected)
		_, err = l.issues.Solve(ctx, issue.ID, staff.ID, t0.Add(2*time.Minute), t0)
		assert.ErrorIs(t, err, ErrTransitionRejected)

		solved, err := l.issues.Solve(ctx, issue.ID, staff.ID, t0.Add(time.Second), t0.Add(-time.Second))
		require.NoError(t, err)
		assert.Equal(t, domain.IssueStatusSolved, solved.Status)
		require.NotNil(t, solved.SolvedAt)
		assert.True(t, solved.SolvedAt.Equal(t0.Add(time.Second)))

		_, err = l.issues.MarkNotSolved(ctx, issue.ID, t0.Add(time.Minute))
		assert.ErrorIs(t, err, ErrTransitionRejected)
	})
}

func TestLedgerExpireAssigned(t *testing.T) {
	eachLedger(t, func(t *testing.T, l ledger) {
		ctx := context.Background()
		staffA := l.user(t, "staff-a", domain.RoleStaff)
		staffB := l.user(t, "staff-b", domain.RoleStaff)
		old := l.issue(t, domain.DepartmentIT, l.user(t, "s1", domain.RoleStudent), t0)
		fresh := l.issue(t, domain.DepartmentIT, l.user(t, "s2", domain.RoleStudent), t0)
		_, err := l.issues.Accept(ctx, old.ID, staffA.ID, "", t0)
		require.NoError(t, err)
		_, err = l.issues.Accept(ctx, fresh.ID, staffB.ID, "", t0.Add(100*time.Second))
		require.NoError(t, err)

		now := t0.Add(120 * time.Second)
		cutoff := now.Add(-120 * time.Second)
		expired, err := l.issues.ExpireAssigned(ctx, ExpireFilter{}, cutoff, now)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, old.ID, expired[0].ID)
		assert.Equal(t, domain.IssueStatusNotSolved, expired[0].Status)

		again, err := l.issues.ExpireAssigned(ctx, ExpireFilter{}, cutoff, now)
		require.NoError(t, err)
		assert.Empty(t, again)

		total, solved, err := l.issues.CountResolvedForStaff(ctx, staffA.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, 0, solved)
	})
}

func TestLedgerDirectMessages(t *testing.T) {
	eachLedger(t, func(t *testing.T, l ledger) {
		ctx := context.Background()
		ada := l.user(t, "ada", domain.RoleStudent)
		bob := l.user(t, "bob", domain.RoleStaff)
		cyd := l.user(t, "cyd", domain.RoleStudent)

		send := func(from, to *domain.User, text string, at time.Time) {
			t.Helper()
			require.NoError(t, l.direct.Create(ctx, &domain.DirectMessage{
				SenderID: from.ID, ReceiverID: to.ID, Text: text, CreatedAt: at,
			}))
		}
		send(bob, ada, "second", t0.Add(time.Minute))
		send(ada, bob, "first", t0)
		send(cyd, ada, "hey", t0)

		thread, err := l.direct.ListBetween(ctx, ada.ID, bob.ID)
		require.NoError(t, err)
		require.Len(t, thread, 2)
		assert.Equal(t, "first", thread[0].Text)
		assert.Equal(t, "second", thread[1].Text)

		partners, err := l.direct.Partners(ctx, ada.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{bob.ID, cyd.ID}, partners)

		listed, err := l.users.List(ctx, UserFilter{IDs: partners, ExcludeID: ada.ID, Search: "BO"})
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, bob.ID, listed[0].ID)

		none, err := l.users.List(ctx, UserFilter{IDs: []string{}})
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
