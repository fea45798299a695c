package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/assistant"
	"pulse/internal/domain"
	"pulse/internal/llm"
	"pulse/internal/notify"
	"pulse/internal/repository/sqlite"
	"pulse/internal/service"
	"pulse/internal/storage"
)

type fakeStorage struct{}

func (fakeStorage) PutObject(_ context.Context, key string, _ io.Reader, opts storage.UploadOptions) (string, error) {
	return storage.Location(opts.Bucket, key), nil
}

func (fakeStorage) ListObjects(_ context.Context, _ string, prefix string) ([]storage.ObjectInfo, error) {
	ts := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	return []storage.ObjectInfo{{Key: prefix + "1/2026-01-a.html", Size: 2048, LastModified: &ts}}, nil
}

func (fakeStorage) DeletePrefix(context.Context, string, string) error { return nil }

func (fakeStorage) GetObjectURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://" + bucket + ".example/" + key, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	enqueued []int64
}

func (p *fakePublisher) Start(context.Context) error { return nil }
func (p *fakePublisher) Shutdown()                   {}
func (p *fakePublisher) Resume(context.Context) error {
	return nil
}
func (p *fakePublisher) Cancel(context.Context, int64) error { return nil }

func (p *fakePublisher) Enqueue(_ context.Context, id int64) error {
	p.mu.Lock()
	p.enqueued = append(p.enqueued, id)
	p.mu.Unlock()
	return nil
}

type apiEnv struct {
	t          *testing.T
	router     *gin.Engine
	repos      *sqlite.Repositories
	users      service.UserService
	payroll    service.PayrollService
	publisher  *fakePublisher
	employee   *domain.User
	admin      *domain.User
	empToken   string
	adminToken string
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "pulse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repos := sqlite.NewRepositories(db)
	require.NoError(t, repos.Init(context.Background()))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	users := service.NewUserService(repos.Users, repos.Vacation, 22)
	tokens := service.NewTokenService("test-secret", time.Hour)
	vacations := service.NewVacationService(repos.Vacation, repos.Holidays, repos.Users)
	payroll := service.NewPayrollService(repos.Payslips, repos.Users, service.DocumentConfig{Storage: fakeStorage{}, Bucket: "hr-docs"})
	times := service.NewTimeService(repos.Time)
	benefits := service.NewBenefitService(repos.Benefits, repos.Users)
	loader := service.NewContextLoader(repos.Users, vacations, payroll, benefits, times)
	chat := service.NewChatService(repos.Chat, loader, llm.NewStaticClient("Tienes 22 días disponibles."),
		assistant.NewDetector(assistant.DefaultRules()), notify.NewLogNotifier(logger), service.ChatConfig{Logger: logger})
	pub := &fakePublisher{}

	handler := NewHandler(Services{
		Users:     users,
		Tokens:    tokens,
		Vacations: vacations,
		Payroll:   payroll,
		Time:      times,
		Benefits:  benefits,
		Chat:      chat,
		Dashboard: loader,
		Overview:  service.NewOverviewService(repos.Users, repos.Vacation, repos.Chat),
		Publisher: pub,
		Storage:   fakeStorage{},
		Bucket:    "hr-docs",
		Logger:    logger,
	})
	router := gin.New()
	handler.RegisterRoutes(router)

	env := &apiEnv{t: t, router: router, repos: repos, users: users, payroll: payroll, publisher: pub}
	env.employee = env.createUser("ana@example.com", domain.RoleEmployee)
	env.admin = env.createUser("rrhh@example.com", domain.RoleAdmin)
	env.empToken = env.login("ana@example.com", "correct-horse")
	env.adminToken = env.login("rrhh@example.com", "correct-horse")
	return env
}

func (e *apiEnv) createUser(email string, role domain.Role) *domain.User {
	e.t.Helper()
	u, err := e.users.Create(context.Background(), service.CreateUserInput{
		Email:    email,
		Password: "correct-horse",
		FullName: strings.Split(email, "@")[0],
		Role:     role,
	})
	require.NoError(e.t, err)
	return u
}

func (e *apiEnv) login(email, password string) string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(e.t, resp.Token)
	return resp.Token
}

func (e *apiEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func TestHealthAndRequestID(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestAuthentication(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", errorBody(t, rec))

	rec = env.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(http.MethodGet, "/api/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/api/me", env.empToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[UserResponse](t, rec)
	assert.Equal(t, "ana@example.com", me.Email)
	assert.Equal(t, domain.RoleEmployee, me.Role)

	rec = env.do(http.MethodGet, "/api/admin/users", env.empToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPut, fmt.Sprintf("/api/admin/users/%d", env.employee.ID), env.adminToken, gin.H{"active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(http.MethodGet, "/api/me", env.empToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "disabled accounts lose access immediately")
}

func TestChangePassword(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(http.MethodPut, "/api/me/password", env.empToken, gin.H{"current_password": "wrong-one", "new_password": "battery-staple"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(http.MethodPut, "/api/me/password", env.empToken, gin.H{"current_password": "correct-horse", "new_password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(http.MethodPut, "/api/me/password", env.empToken, gin.H{"current_password": "correct-horse", "new_password": "battery-staple"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	env.login("ana@example.com", "battery-staple")
}

// futureWeek returns a Monday to Wednesday range at least a week ahead, within one year.
func futureWeek() (time.Time, time.Time) {
	start := domain.DateOnly(time.Now().AddDate(0, 0, 7))
	for start.Weekday() != time.Monday {
		start = start.AddDate(0, 0, 1)
	}
	end := start.AddDate(0, 0, 2)
	if end.Year() != start.Year() {
		start = start.AddDate(0, 0, 7)
		end = start.AddDate(0, 0, 2)
	}
	return start, end
}

func TestVacationFlow(t *testing.T) {
	env := newAPIEnv(t)
	start, end := futureWeek()
	year := start.Year()

	rec := env.do(http.MethodPut, fmt.Sprintf("/api/admin/users/%d/vacation-periods/%d", env.employee.ID, year), env.adminToken, gin.H{"total_days": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 10, decode[PeriodResponse](t, rec).Available)

	rec = env.do(http.MethodPost, "/api/vacations/requests", env.empToken, gin.H{
		"start_date": start.Format(time.DateOnly),
		"end_date":   end.Format(time.DateOnly),
		"reason":     "Family trip",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[VacationRequestResponse](t, rec)
	assert.Equal(t, 3, created.Days)
	assert.Equal(t, domain.VacationStatusPending, created.Status)

	rec = env.do(http.MethodPost, "/api/vacations/requests", env.empToken, gin.H{
		"start_date": end.Format(time.DateOnly),
		"end_date":   end.Format(time.DateOnly),
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "overlapping request")

	rec = env.do(http.MethodPost, "/api/vacations/requests", env.empToken, gin.H{"start_date": "soon", "end_date": "later"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/vacations/balance?year=%d", year), env.empToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decode[BalanceResponse](t, rec)
	assert.Equal(t, 3, balance.PendingDays)
	assert.Equal(t, 7, balance.Available)

	rec = env.do(http.MethodGet, "/api/admin/vacations/requests", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]VacationRequestResponse](t, rec), 1)

	rec = env.do(http.MethodPost, fmt.Sprintf("/api/admin/vacations/requests/%d/reject", created.ID), env.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "rejection needs a comment")

	rec = env.do(http.MethodPost, fmt.Sprintf("/api/admin/vacations/requests/%d/approve", created.ID), env.adminToken, gin.H{"comment": "Enjoy"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.VacationStatusApproved, decode[VacationRequestResponse](t, rec).Status)

	rec = env.do(http.MethodPost, fmt.Sprintf("/api/admin/vacations/requests/%d/approve", created.ID), env.adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, fmt.Sprintf("/api/vacations/requests/%d/cancel", created.ID), env.empToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "approved requests cannot be cancelled")

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/vacations/balance?year=%d", year), env.empToken, nil)
	balance = decode[BalanceResponse](t, rec)
	assert.Equal(t, 3, balance.UsedDays)
	assert.Equal(t, 7, balance.Available)
}

func TestHolidaysAdmin(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(http.MethodPost, "/api/admin/holidays", env.adminToken, gin.H{"date": "2026-12-25", "name": "Navidad"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	holiday := decode[HolidayResponse](t, rec)

	rec = env.do(http.MethodGet, "/api/holidays?year=2026", env.empToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []HolidayResponse{holiday}, decode[[]HolidayResponse](t, rec))

	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/admin/holidays/%d", holiday.ID), env.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, "/api/holidays?year=abc", env.empToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayslipFlow(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(http.MethodPost, "/api/admin/payslips", env.adminToken, gin.H{
		"user_id":      env.employee.ID,
		"year":         2026,
		"month":        1,
		"gross_amount": 250000,
		"deductions":   []gin.H{{"name": "IRPF", "amount": 37500}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	issued := decode[struct {
		Payslip PayslipResponse `json:"payslip"`
	}](t, rec).Payslip
	assert.Equal(t, int64(212500), issued.NetAmount)
	assert.Equal(t, "2026-01", issued.Period)
	assert.Equal(t, []int64{issued.ID}, env.publisher.enqueued)

	rec = env.do(http.MethodGet, "/api/payslips", env.empToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]PayslipResponse](t, rec), 1)

	other := env.createUser("luis@example.com", domain.RoleEmployee)
	otherToken := env.login(other.Email, "correct-horse")
	rec = env.do(http.MethodGet, fmt.Sprintf("/api/payslips/%d", issued.ID), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/payslips/%d/document", issued.ID), env.empToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "not published yet")

	require.NoError(t, env.payroll.MarkPublished(context.Background(), issued.ID, "payslips/1/2026-01-x.html", "s3://hr-docs/payslips/1/2026-01-x.html"))
	rec = env.do(http.MethodGet, fmt.Sprintf("/api/payslips/%d/document", issued.ID), env.empToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://hr-docs.example/payslips/1/2026-01-x.html", decode[map[string]string](t, rec)["url"])

	rec = env.do(http.MethodPost, fmt.Sprintf("/api/admin/payslips/%d/republish", issued.ID), env.adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "only failed payslips are republished")

	rec = env.do(http.MethodGet, "/api/admin/storage/objects?prefix=payslips/", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	objects := decode[[]StorageObjectResponse](t, rec)
	require.Len(t, objects, 1)
	assert.Equal(t, "payslips/1/2026-01-a.html", objects[0].Key)
}

func TestTimeTrackingAndBenefits(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(http.MethodPost, "/api/time/clock-out", env.empToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = env.do(http.MethodPost, "/api/time/clock-in", env.empToken, gin.H{"note": "office"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = env.do(http.MethodPost, "/api/time/clock-in", env.empToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodGet, "/api/time/summary", env.empToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, decode[TimeSummaryResponse](t, rec).OpenRecord)

	rec = env.do(http.MethodPost, "/api/time/clock-out", env.empToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, decode[TimeRecordResponse](t, rec).ClockOut)

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/admin/users/%d/time/records", env.employee.ID), env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]TimeRecordResponse](t, rec), 1)
	rec = env.do(http.MethodGet, "/api/time/records?from=bad", env.empToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, fmt.Sprintf("/api/admin/users/%d/benefits", env.employee.ID), env.adminToken, gin.H{
		"name":          "Health insurance",
		"category":      "health",
		"monthly_value": 6000,
		"start_date":    "2020-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	benefit := decode[BenefitResponse](t, rec)
	assert.Equal(t, domain.BenefitHealth, benefit.Category)

	rec = env.do(http.MethodGet, "/api/benefits", env.empToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[BenefitsResponse](t, rec)
	assert.Len(t, list.Benefits, 1)
	assert.Equal(t, int64(6000), list.MonthlyTotal)

	rec = env.do(http.MethodDelete, fmt.Sprintf("/api/admin/benefits/%d", benefit.ID), env.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/me/dashboard", env.empToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[DashboardResponse](t, rec)
	assert.Equal(t, "ana@example.com", dash.User.Email)
	assert.Empty(t, dash.Benefits.Benefits)
	require.NotNil(t, dash.Balance)
}

func TestChatOverHTTP(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(http.MethodPost, "/api/chat/sessions", env.empToken, gin.H{"title": "Vacaciones"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	session := decode[ChatSessionResponse](t, rec)
	assert.Equal(t, domain.ChatStatusActiveAI, session.Status)
	base := fmt.Sprintf("/api/chat/sessions/%d", session.ID)

	rec = env.do(http.MethodPost, base+"/messages", env.empToken, gin.H{"content": "¿Cuántos días me quedan?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	turn := decode[TurnResponse](t, rec)
	require.NotNil(t, turn.Reply)
	assert.Equal(t, "Tienes 22 días disponibles.", turn.Reply.Content)
	assert.False(t, turn.Escalated)

	rec = env.do(http.MethodPost, base+"/messages", env.empToken, gin.H{"content": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, fmt.Sprintf("%s/messages?after=%d", base, turn.UserMessage.ID), env.empToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ChatMessageResponse](t, rec), 1)

	rec = env.do(http.MethodPost, base+"/messages", env.empToken, gin.H{"content": "Quiero hablar con una persona"})
	require.Equal(t, http.StatusOK, rec.Code)
	turn = decode[TurnResponse](t, rec)
	assert.True(t, turn.Escalated)
	assert.Nil(t, turn.Reply)
	assert.Equal(t, domain.ChatStatusWaitingHuman, turn.Session.Status)

	rec = env.do(http.MethodGet, "/api/admin/chat/sessions?status=waiting_human", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ChatSessionResponse](t, rec), 1)
	rec = env.do(http.MethodGet, "/api/admin/chat/sessions?status=bogus", env.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	admin := fmt.Sprintf("/api/admin/chat/sessions/%d", session.ID)
	rec = env.do(http.MethodPost, admin+"/messages", env.adminToken, gin.H{"content": "Hola"})
	assert.Equal(t, http.StatusConflict, rec.Code, "intervene first")

	rec = env.do(http.MethodPost, admin+"/intervene", env.empToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(http.MethodPost, admin+"/intervene", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.ChatStatusHumanIntervention, decode[ChatSessionResponse](t, rec).Status)

	rec = env.do(http.MethodPost, admin+"/messages", env.adminToken, gin.H{"content": "Hola Ana, soy de RRHH"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, domain.SenderAdmin, decode[ChatMessageResponse](t, rec).Sender)

	rec = env.do(http.MethodPost, base+"/cancel-escalation", env.empToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, admin+"/release", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ChatStatusActiveAI, decode[ChatSessionResponse](t, rec).Status)
	rec = env.do(http.MethodPost, admin+"/release", env.adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, base+"/close", env.empToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodPost, base+"/messages", env.empToken, gin.H{"content": "¿Hola?"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodGet, "/api/admin/overview", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	overview := decode[OverviewResponse](t, rec)
	assert.Equal(t, 2, overview.Users)
	assert.Equal(t, 1, overview.ChatSessions[domain.ChatStatusClosed])
	assert.Equal(t, 0, overview.ChatSessions[domain.ChatStatusWaitingHuman])
}

func TestChatSessionsArePrivate(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(http.MethodPost, "/api/chat/sessions", env.empToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	session := decode[ChatSessionResponse](t, rec)

	other := env.createUser("luis@example.com", domain.RoleEmployee)
	otherToken := env.login(other.Email, "correct-horse")
	rec = env.do(http.MethodGet, fmt.Sprintf("/api/chat/sessions/%d", session.ID), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/admin/chat/sessions/%d/messages", session.ID), env.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatStream(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(http.MethodPost, "/api/chat/sessions", env.empToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	session := decode[ChatSessionResponse](t, rec)

	rec = env.do(http.MethodPost, fmt.Sprintf("/api/chat/sessions/%d/stream", session.ID), env.empToken, gin.H{"content": "Hola"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/event-stream"), rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event:message")
	assert.Contains(t, body, "event:token")
	assert.Contains(t, body, "event:done")
	assert.NotContains(t, body, "event:error")
	assert.Less(t, strings.Index(body, "event:message"), strings.Index(body, "event:token"))
	assert.Less(t, strings.Index(body, "event:token"), strings.Index(body, "event:done"))

	rec = env.do(http.MethodPost, fmt.Sprintf("/api/chat/sessions/%d/close", session.ID), env.empToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodPost, fmt.Sprintf("/api/chat/sessions/%d/stream", session.ID), env.empToken, gin.H{"content": "Hola"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "event:error")
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&service.ValidationError{Field: "x", Message: "bad"}, http.StatusBadRequest},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("user 9: %w", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: race", service.ErrInvalidTransition), http.StatusConflict},
		{service.ErrInsufficientBalance, http.StatusConflict},
		{service.ErrAssistantUnavailable, http.StatusBadGateway},
		{service.ErrStorageDisabled, http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, errorStatus(tc.err), tc.err.Error())
	}
}
