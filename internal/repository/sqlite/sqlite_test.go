package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/domain"
	"pulse/internal/repository"
)

func newTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "pulse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repos := NewRepositories(db)
	require.NoError(t, repos.Init(context.Background()))
	return repos
}

func createUser(t *testing.T, repos *Repositories, email string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		Email:        email,
		PasswordHash: "hash",
		FullName:     "Test " + email,
		Role:         role,
		Active:       true,
	}
	_, err := repos.Users.Create(context.Background(), user)
	require.NoError(t, err)
	return user
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	hire := day(2021, time.September, 1)
	user := &domain.User{
		Email:        "  Ana.Garcia@Example.com ",
		PasswordHash: "hash",
		FullName:     "Ana García",
		Role:         domain.RoleEmployee,
		Department:   "Finance",
		HireDate:     &hire,
		Active:       true,
	}
	id, err := repos.Users.Create(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "ana.garcia@example.com", user.Email)

	got, err := repos.Users.GetByEmail(ctx, "ANA.GARCIA@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Finance", got.Department)
	require.NotNil(t, got.HireDate)
	assert.True(t, hire.Equal(*got.HireDate))
	assert.True(t, got.Active)

	_, err = repos.Users.Create(ctx, &domain.User{Email: "ana.garcia@example.com", PasswordHash: "x", FullName: "dup", Role: domain.RoleEmployee})
	assert.ErrorIs(t, err, repository.ErrConflict)

	got.Active = false
	got.Role = domain.RoleAdmin
	require.NoError(t, repos.Users.Update(ctx, got))
	reloaded, err := repos.Users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, reloaded.Active)
	assert.Equal(t, domain.RoleAdmin, reloaded.Role)

	_, err = repos.Users.GetByID(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	n, err := repos.Users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVacationApproveDeductsDays(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	emp := createUser(t, repos, "emp@example.com", domain.RoleEmployee)
	admin := createUser(t, repos, "admin@example.com", domain.RoleAdmin)

	_, err := repos.Vacation.UpsertPeriod(ctx, emp.ID, 2026, 5)
	require.NoError(t, err)

	first := &domain.VacationRequest{UserID: emp.ID, StartDate: day(2026, time.March, 2), EndDate: day(2026, time.March, 4), Days: 3}
	_, err = repos.Vacation.CreateRequest(ctx, first)
	require.NoError(t, err)
	second := &domain.VacationRequest{UserID: emp.ID, StartDate: day(2026, time.April, 6), EndDate: day(2026, time.April, 8), Days: 3}
	_, err = repos.Vacation.CreateRequest(ctx, second)
	require.NoError(t, err)

	pending, err := repos.Vacation.PendingDays(ctx, emp.ID, 2026)
	require.NoError(t, err)
	assert.Equal(t, 6, pending)

	require.NoError(t, repos.Vacation.Approve(ctx, first.ID, admin.ID, "enjoy", time.Now()))
	period, err := repos.Vacation.GetPeriod(ctx, emp.ID, 2026)
	require.NoError(t, err)
	assert.Equal(t, 3, period.UsedDays)
	assert.Equal(t, 2, period.Available())

	err = repos.Vacation.Approve(ctx, second.ID, admin.ID, "", time.Now())
	assert.ErrorIs(t, err, repository.ErrInsufficientDays)
	req, err := repos.Vacation.GetRequest(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VacationStatusPending, req.Status)

	err = repos.Vacation.Approve(ctx, first.ID, admin.ID, "", time.Now())
	assert.ErrorIs(t, err, repository.ErrConflict)

	require.NoError(t, repos.Vacation.Reject(ctx, second.ID, admin.ID, "too many", time.Now()))
	req, err = repos.Vacation.GetRequest(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VacationStatusRejected, req.Status)
	assert.Equal(t, "too many", req.ReviewComment)
	require.NotNil(t, req.ReviewerID)
	assert.Equal(t, admin.ID, *req.ReviewerID)
	assert.NotNil(t, req.ReviewedAt)

	assert.ErrorIs(t, repos.Vacation.Cancel(ctx, second.ID), repository.ErrConflict)
}

func TestVacationSubmitRequest(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	emp := createUser(t, repos, "emp@example.com", domain.RoleEmployee)
	_, err := repos.Vacation.UpsertPeriod(ctx, emp.ID, 2026, 8)
	require.NoError(t, err)

	req := &domain.VacationRequest{UserID: emp.ID, StartDate: day(2026, time.March, 2), EndDate: day(2026, time.March, 6), Days: 5}
	_, err = repos.Vacation.SubmitRequest(ctx, req)
	require.NoError(t, err)
	assert.NotZero(t, req.ID)

	overlap := &domain.VacationRequest{UserID: emp.ID, StartDate: day(2026, time.March, 6), EndDate: day(2026, time.March, 10), Days: 3}
	_, err = repos.Vacation.SubmitRequest(ctx, overlap)
	assert.ErrorIs(t, err, repository.ErrOverlapping)
	assert.Zero(t, overlap.ID)

	tooLong := &domain.VacationRequest{UserID: emp.ID, StartDate: day(2026, time.April, 6), EndDate: day(2026, time.April, 9), Days: 4}
	_, err = repos.Vacation.SubmitRequest(ctx, tooLong)
	assert.ErrorIs(t, err, repository.ErrInsufficientDays)

	reqs, err := repos.Vacation.ListRequestsByUser(ctx, emp.ID)
	require.NoError(t, err)
	assert.Len(t, reqs, 1, "rejected submissions store nothing")

	require.NoError(t, repos.Vacation.Cancel(ctx, req.ID))
	again := &domain.VacationRequest{UserID: emp.ID, StartDate: day(2026, time.March, 2), EndDate: day(2026, time.March, 6), Days: 5}
	_, err = repos.Vacation.SubmitRequest(ctx, again)
	require.NoError(t, err, "cancelled requests neither overlap nor hold days")

	noPeriod := &domain.VacationRequest{UserID: emp.ID, StartDate: day(2027, time.March, 1), EndDate: day(2027, time.March, 1), Days: 1}
	_, err = repos.Vacation.SubmitRequest(ctx, noPeriod)
	assert.ErrorIs(t, err, repository.ErrInsufficientDays)
}

func TestVacationSubmitRequestConcurrent(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	emp := createUser(t, repos, "emp@example.com", domain.RoleEmployee)
	_, err := repos.Vacation.UpsertPeriod(ctx, emp.ID, 2026, 5)
	require.NoError(t, err)

	const submitters = 4
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, submitters)
	)
	for i := range submitters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			req := &domain.VacationRequest{UserID: emp.ID, StartDate: day(2026, time.March, 16), EndDate: day(2026, time.March, 20), Days: 5}
			_, errs[i] = repos.Vacation.SubmitRequest(ctx, req)
		}()
	}
	close(start)
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrOverlapping)
	}
	assert.Equal(t, 1, ok)

	pending, err := repos.Vacation.PendingDays(ctx, emp.ID, 2026)
	require.NoError(t, err)
	assert.Equal(t, 5, pending)
}

func TestHolidayRepository(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	_, err := repos.Holidays.Create(ctx, &domain.Holiday{Date: day(2026, time.January, 1), Name: "New Year"})
	require.NoError(t, err)
	_, err = repos.Holidays.Create(ctx, &domain.Holiday{Date: day(2026, time.January, 6), Name: "Epiphany"})
	require.NoError(t, err)
	_, err = repos.Holidays.Create(ctx, &domain.Holiday{Date: day(2026, time.January, 6), Name: "dup"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	list, err := repos.Holidays.ListBetween(ctx, day(2026, time.January, 2), day(2026, time.December, 31))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Epiphany", list[0].Name)

	assert.ErrorIs(t, repos.Holidays.Delete(ctx, 42), repository.ErrNotFound)
}

func TestChatTransitionIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	emp := createUser(t, repos, "emp@example.com", domain.RoleEmployee)
	admin := createUser(t, repos, "admin@example.com", domain.RoleAdmin)

	session := &domain.ChatSession{UserID: emp.ID, Title: "Payroll"}
	_, err := repos.Chat.CreateSession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, domain.ChatStatusActiveAI, session.Status)

	reason := "human_request"
	at := time.Now()
	require.NoError(t, repos.Chat.TransitionStatus(ctx, session.ID, domain.ChatStatusActiveAI, domain.ChatStatusWaitingHuman,
		domain.StatusChange{EscalationReason: &reason, EscalatedAt: &at}))

	err = repos.Chat.TransitionStatus(ctx, session.ID, domain.ChatStatusActiveAI, domain.ChatStatusHumanIntervention, domain.StatusChange{})
	assert.ErrorIs(t, err, repository.ErrConflict)

	require.NoError(t, repos.Chat.TransitionStatus(ctx, session.ID, domain.ChatStatusWaitingHuman, domain.ChatStatusHumanIntervention,
		domain.StatusChange{AssignedAdminID: &admin.ID}))

	got, err := repos.Chat.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChatStatusHumanIntervention, got.Status)
	require.NotNil(t, got.AssignedAdminID)
	assert.Equal(t, admin.ID, *got.AssignedAdminID)
	assert.Equal(t, "human_request", got.EscalationReason)
	assert.NotNil(t, got.EscalatedAt)

	require.NoError(t, repos.Chat.TransitionStatus(ctx, session.ID, domain.ChatStatusHumanIntervention, domain.ChatStatusActiveAI,
		domain.StatusChange{ClearAssignee: true}))
	got, err = repos.Chat.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AssignedAdminID)

	counts, err := repos.Chat.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.ChatStatusActiveAI])
}

func TestChatMessages(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	emp := createUser(t, repos, "emp@example.com", domain.RoleEmployee)

	session := &domain.ChatSession{UserID: emp.ID}
	_, err := repos.Chat.CreateSession(ctx, session)
	require.NoError(t, err)

	var ids []int64
	for i, content := range []string{"one", "two", "three", "four"} {
		sender := domain.SenderUser
		if i%2 == 1 {
			sender = domain.SenderAI
		}
		msg := &domain.ChatMessage{SessionID: session.ID, Sender: sender, Content: content}
		if sender == domain.SenderUser {
			msg.SenderUserID = &emp.ID
		}
		id, err := repos.Chat.AddMessage(ctx, msg)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	after, err := repos.Chat.ListMessages(ctx, session.ID, ids[1], 0)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, "three", after[0].Content)

	_, err = repos.Chat.AddMessage(ctx, &domain.ChatMessage{SessionID: session.ID, Sender: domain.SenderSystem, Content: "handed over"})
	require.NoError(t, err)

	recent, err := repos.Chat.RecentMessages(ctx, session.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "two", recent[0].Content)
	assert.Equal(t, "four", recent[2].Content)
	assert.Equal(t, domain.SenderAI, recent[2].Sender)
	assert.Nil(t, recent[2].SenderUserID)

	all, err := repos.Chat.RecentMessages(ctx, session.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	got, err := repos.Chat.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastMessageAt)

	sessions, err := repos.Chat.ListSessionsByStatus(ctx, domain.ChatStatusActiveAI, domain.ChatStatusWaitingHuman)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestChatAddMessageIfStatus(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	emp := createUser(t, repos, "emp@example.com", domain.RoleEmployee)

	session := &domain.ChatSession{UserID: emp.ID}
	_, err := repos.Chat.CreateSession(ctx, session)
	require.NoError(t, err)

	_, err = repos.Chat.AddMessageIfStatus(ctx, &domain.ChatMessage{SessionID: session.ID, Sender: domain.SenderAI, Content: "hola"}, domain.ChatStatusActiveAI)
	require.NoError(t, err)

	require.NoError(t, repos.Chat.TransitionStatus(ctx, session.ID, domain.ChatStatusActiveAI, domain.ChatStatusClosed, domain.StatusChange{}))
	_, err = repos.Chat.AddMessageIfStatus(ctx, &domain.ChatMessage{SessionID: session.ID, Sender: domain.SenderAI, Content: "late"}, domain.ChatStatusActiveAI)
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = repos.Chat.AddMessage(ctx, &domain.ChatMessage{SessionID: 9999, Sender: domain.SenderSystem, Content: "x"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	msgs, err := repos.Chat.ListMessages(ctx, session.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hola", msgs[0].Content)
}

func TestPayslipRepository(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	emp := createUser(t, repos, "emp@example.com", domain.RoleEmployee)

	p := &domain.Payslip{
		UserID:      emp.ID,
		Year:        2026,
		Month:       2,
		Currency:    "EUR",
		GrossAmount: 300000,
		Deductions:  []domain.Deduction{{Name: "IRPF", Amount: 45000}},
		NetAmount:   255000,
	}
	_, err := repos.Payslips.Create(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusPending, p.DocumentStatus)

	dup := *p
	_, err = repos.Payslips.Create(ctx, &dup)
	assert.ErrorIs(t, err, repository.ErrConflict)

	queued, err := repos.Payslips.ListByDocumentStatus(ctx, domain.DocumentStatusPending, domain.DocumentStatusFailed)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, []domain.Deduction{{Name: "IRPF", Amount: 45000}}, queued[0].Deductions)

	msg := "boom"
	require.NoError(t, repos.Payslips.UpdateDocumentStatus(ctx, p.ID, domain.DocumentStatusFailed, &msg))
	got, err := repos.Payslips.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "boom", got.ErrorMessage)

	require.NoError(t, repos.Payslips.MarkPublished(ctx, p.ID, "k", "s3://bucket/k", time.Now()))
	got, err = repos.Payslips.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusPublished, got.DocumentStatus)
	assert.Equal(t, "s3://bucket/k", got.DocumentLocation)
	assert.Empty(t, got.ErrorMessage)
	assert.NotNil(t, got.PublishedAt)
}

func TestBenefitRepository(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	emp := createUser(t, repos, "emp@example.com", domain.RoleEmployee)

	health := &domain.Benefit{UserID: emp.ID, Name: "Health insurance", Category: domain.BenefitHealth, MonthlyValue: 6000, StartDate: day(2026, time.January, 1), Active: true}
	_, err := repos.Benefits.Create(ctx, health)
	require.NoError(t, err)
	end := day(2025, time.December, 31)
	meal := &domain.Benefit{UserID: emp.ID, Name: "Meal card", Category: domain.BenefitMeal, MonthlyValue: 11000, StartDate: day(2025, time.January, 1), EndDate: &end, Active: false}
	_, err = repos.Benefits.Create(ctx, meal)
	require.NoError(t, err)

	active, err := repos.Benefits.ListByUser(ctx, emp.ID, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Health insurance", active[0].Name)

	all, err := repos.Benefits.ListByUser(ctx, emp.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := repos.Benefits.Get(ctx, meal.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndDate)
	assert.True(t, end.Equal(*got.EndDate))

	require.NoError(t, repos.Benefits.Delete(ctx, meal.ID))
	_, err = repos.Benefits.Get(ctx, meal.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTimeRecordRepository(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	emp := createUser(t, repos, "emp@example.com", domain.RoleEmployee)

	in := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	rec := &domain.TimeRecord{UserID: emp.ID, ClockIn: in}
	_, err := repos.Time.Create(ctx, rec)
	require.NoError(t, err)

	_, err = repos.Time.Create(ctx, &domain.TimeRecord{UserID: emp.ID, ClockIn: in.Add(time.Hour)})
	assert.ErrorIs(t, err, repository.ErrConflict)

	open, err := repos.Time.GetOpen(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, open.ID)

	require.NoError(t, repos.Time.Close(ctx, rec.ID, in.Add(8*time.Hour)))
	assert.ErrorIs(t, repos.Time.Close(ctx, rec.ID, in.Add(9*time.Hour)), repository.ErrConflict)

	_, err = repos.Time.GetOpen(ctx, emp.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	records, err := repos.Time.ListBetween(ctx, emp.ID, day(2026, time.March, 1), day(2026, time.April, 1))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 8*time.Hour, records[0].Duration())

	records, err = repos.Time.ListBetween(ctx, emp.ID, day(2026, time.April, 1), day(2026, time.May, 1))
	require.NoError(t, err)
	assert.Empty(t, records)
}
