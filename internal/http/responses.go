package http

import (
	"time"

	"pulse/internal/domain"
	"pulse/internal/service"
	"pulse/internal/storage"
)

type UserResponse struct {
	ID         int64       `json:"id"`
	Email      string      `json:"email"`
	FullName   string      `json:"full_name"`
	Role       domain.Role `json:"role"`
	Department string      `json:"department"`
	Position   string      `json:"position"`
	HireDate   *string     `json:"hire_date,omitempty"`
	Active     bool        `json:"active"`
	CreatedAt  string      `json:"created_at"`
	UpdatedAt  string      `json:"updated_at"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type BalanceResponse struct {
	Year        int `json:"year"`
	TotalDays   int `json:"total_days"`
	UsedDays    int `json:"used_days"`
	PendingDays int `json:"pending_days"`
	Available   int `json:"available"`
}

type PeriodResponse struct {
	UserID    int64 `json:"user_id"`
	Year      int   `json:"year"`
	TotalDays int   `json:"total_days"`
	UsedDays  int   `json:"used_days"`
	Available int   `json:"available"`
}

type VacationRequestResponse struct {
	ID            int64                 `json:"id"`
	UserID        int64                 `json:"user_id"`
	StartDate     string                `json:"start_date"`
	EndDate       string                `json:"end_date"`
	Days          int                   `json:"days"`
	Reason        string                `json:"reason"`
	Status        domain.VacationStatus `json:"status"`
	ReviewerID    *int64                `json:"reviewer_id,omitempty"`
	ReviewComment string                `json:"review_comment,omitempty"`
	ReviewedAt    *string               `json:"reviewed_at,omitempty"`
	CreatedAt     string                `json:"created_at"`
}

type HolidayResponse struct {
	ID   int64  `json:"id"`
	Date string `json:"date"`
	Name string `json:"name"`
}

type PayslipResponse struct {
	ID               int64                 `json:"id"`
	UserID           int64                 `json:"user_id"`
	Year             int                   `json:"year"`
	Month            int                   `json:"month"`
	Period           string                `json:"period"`
	Currency         string                `json:"currency"`
	GrossAmount      int64                 `json:"gross_amount"`
	Deductions       []domain.Deduction    `json:"deductions"`
	TotalDeductions  int64                 `json:"total_deductions"`
	NetAmount        int64                 `json:"net_amount"`
	DocumentStatus   domain.DocumentStatus `json:"document_status"`
	DocumentLocation string                `json:"document_location,omitempty"`
	ErrorMessage     string                `json:"error_message,omitempty"`
	IssuedAt         string                `json:"issued_at"`
	PublishedAt      *string               `json:"published_at,omitempty"`
}

type TimeRecordResponse struct {
	ID       int64   `json:"id"`
	UserID   int64   `json:"user_id"`
	ClockIn  string  `json:"clock_in"`
	ClockOut *string `json:"clock_out,omitempty"`
	Minutes  int64   `json:"minutes"`
	Note     string  `json:"note,omitempty"`
}

type TimeSummaryResponse struct {
	From          string              `json:"from"`
	To            string              `json:"to"`
	WorkedMinutes int64               `json:"worked_minutes"`
	DaysWorked    int                 `json:"days_worked"`
	Records       int                 `json:"records"`
	OpenRecord    *TimeRecordResponse `json:"open_record,omitempty"`
}

type BenefitResponse struct {
	ID           int64                  `json:"id"`
	UserID       int64                  `json:"user_id"`
	Name         string                 `json:"name"`
	Category     domain.BenefitCategory `json:"category"`
	Description  string                 `json:"description,omitempty"`
	MonthlyValue int64                  `json:"monthly_value"`
	StartDate    string                 `json:"start_date"`
	EndDate      *string                `json:"end_date,omitempty"`
	Active       bool                   `json:"active"`
}

type BenefitsResponse struct {
	Benefits     []BenefitResponse `json:"benefits"`
	MonthlyTotal int64             `json:"monthly_total"`
}

type ChatSessionResponse struct {
	ID               int64             `json:"id"`
	UserID           int64             `json:"user_id"`
	Title            string            `json:"title"`
	Status           domain.ChatStatus `json:"status"`
	AssignedAdminID  *int64            `json:"assigned_admin_id,omitempty"`
	EscalationReason string            `json:"escalation_reason,omitempty"`
	EscalatedAt      *string           `json:"escalated_at,omitempty"`
	LastMessageAt    *string           `json:"last_message_at,omitempty"`
	CreatedAt        string            `json:"created_at"`
	UpdatedAt        string            `json:"updated_at"`
}

type ChatMessageResponse struct {
	ID           int64                `json:"id"`
	SessionID    int64                `json:"session_id"`
	Sender       domain.MessageSender `json:"sender"`
	SenderUserID *int64               `json:"sender_user_id,omitempty"`
	Content      string               `json:"content"`
	CreatedAt    string               `json:"created_at"`
}

type TurnResponse struct {
	Session     ChatSessionResponse   `json:"session"`
	UserMessage ChatMessageResponse   `json:"user_message"`
	Reply       *ChatMessageResponse  `json:"reply,omitempty"`
	System      []ChatMessageResponse `json:"system,omitempty"`
	Escalated   bool                  `json:"escalated"`
	Discarded   bool                  `json:"discarded,omitempty"`
}

type DashboardResponse struct {
	User            UserResponse              `json:"user"`
	Balance         *BalanceResponse          `json:"balance,omitempty"`
	PendingRequests []VacationRequestResponse `json:"pending_requests"`
	UpcomingLeave   []VacationRequestResponse `json:"upcoming_leave"`
	LatestPayslip   *PayslipResponse          `json:"latest_payslip,omitempty"`
	Benefits        BenefitsResponse          `json:"benefits"`
	Time            *TimeSummaryResponse      `json:"time,omitempty"`
}

type OverviewResponse struct {
	Users            int                       `json:"users"`
	PendingVacations int                       `json:"pending_vacations"`
	ChatSessions     map[domain.ChatStatus]int `json:"chat_sessions"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	v := formatTime(*t)
	return &v
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.DateOnly)
	return &v
}

func userToResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		Role:       u.Role,
		Department: u.Department,
		Position:   u.Position,
		HireDate:   formatDatePtr(u.HireDate),
		Active:     u.Active,
		CreatedAt:  formatTime(u.CreatedAt),
		UpdatedAt:  formatTime(u.UpdatedAt),
	}
}

func balanceToResponse(b *domain.VacationBalance) *BalanceResponse {
	if b == nil {
		return nil
	}
	return &BalanceResponse{
		Year:        b.Year,
		TotalDays:   b.TotalDays,
		UsedDays:    b.UsedDays,
		PendingDays: b.PendingDays,
		Available:   b.Available,
	}
}

func requestToResponse(r domain.VacationRequest) VacationRequestResponse {
	return VacationRequestResponse{
		ID:            r.ID,
		UserID:        r.UserID,
		StartDate:     r.StartDate.Format(time.DateOnly),
		EndDate:       r.EndDate.Format(time.DateOnly),
		Days:          r.Days,
		Reason:        r.Reason,
		Status:        r.Status,
		ReviewerID:    r.ReviewerID,
		ReviewComment: r.ReviewComment,
		ReviewedAt:    formatTimePtr(r.ReviewedAt),
		CreatedAt:     formatTime(r.CreatedAt),
	}
}

func requestsToResponse(reqs []domain.VacationRequest) []VacationRequestResponse {
	resp := make([]VacationRequestResponse, len(reqs))
	for i := range reqs {
		resp[i] = requestToResponse(reqs[i])
	}
	return resp
}

func holidayToResponse(h domain.Holiday) HolidayResponse {
	return HolidayResponse{ID: h.ID, Date: h.Date.Format(time.DateOnly), Name: h.Name}
}

func payslipToResponse(p domain.Payslip) PayslipResponse {
	deductions := p.Deductions
	if deductions == nil {
		deductions = []domain.Deduction{}
	}
	return PayslipResponse{
		ID:               p.ID,
		UserID:           p.UserID,
		Year:             p.Year,
		Month:            p.Month,
		Period:           p.Period(),
		Currency:         p.Currency,
		GrossAmount:      p.GrossAmount,
		Deductions:       deductions,
		TotalDeductions:  p.TotalDeductions(),
		NetAmount:        p.NetAmount,
		DocumentStatus:   p.DocumentStatus,
		DocumentLocation: p.DocumentLocation,
		ErrorMessage:     p.ErrorMessage,
		IssuedAt:         formatTime(p.IssuedAt),
		PublishedAt:      formatTimePtr(p.PublishedAt),
	}
}

func payslipsToResponse(ps []domain.Payslip) []PayslipResponse {
	resp := make([]PayslipResponse, len(ps))
	for i := range ps {
		resp[i] = payslipToResponse(ps[i])
	}
	return resp
}

func timeRecordToResponse(r domain.TimeRecord) TimeRecordResponse {
	return TimeRecordResponse{
		ID:       r.ID,
		UserID:   r.UserID,
		ClockIn:  formatTime(r.ClockIn),
		ClockOut: formatTimePtr(r.ClockOut),
		Minutes:  int64(r.Duration() / time.Minute),
		Note:     r.Note,
	}
}

func timeRecordsToResponse(recs []domain.TimeRecord) []TimeRecordResponse {
	resp := make([]TimeRecordResponse, len(recs))
	for i := range recs {
		resp[i] = timeRecordToResponse(recs[i])
	}
	return resp
}

func summaryToResponse(s *domain.TimeSummary) *TimeSummaryResponse {
	if s == nil {
		return nil
	}
	resp := &TimeSummaryResponse{
		From:          s.From.Format(time.DateOnly),
		To:            s.To.Format(time.DateOnly),
		WorkedMinutes: s.WorkedMinutes,
		DaysWorked:    s.DaysWorked,
		Records:       s.Records,
	}
	if s.OpenRecord != nil {
		open := timeRecordToResponse(*s.OpenRecord)
		resp.OpenRecord = &open
	}
	return resp
}

func benefitToResponse(b domain.Benefit) BenefitResponse {
	return BenefitResponse{
		ID:           b.ID,
		UserID:       b.UserID,
		Name:         b.Name,
		Category:     b.Category,
		Description:  b.Description,
		MonthlyValue: b.MonthlyValue,
		StartDate:    b.StartDate.Format(time.DateOnly),
		EndDate:      formatDatePtr(b.EndDate),
		Active:       b.Active,
	}
}

func benefitsToResponse(bs []domain.Benefit) []BenefitResponse {
	resp := make([]BenefitResponse, len(bs))
	for i := range bs {
		resp[i] = benefitToResponse(bs[i])
	}
	return resp
}

func sessionToResponse(s domain.ChatSession) ChatSessionResponse {
	return ChatSessionResponse{
		ID:               s.ID,
		UserID:           s.UserID,
		Title:            s.Title,
		Status:           s.Status,
		AssignedAdminID:  s.AssignedAdminID,
		EscalationReason: s.EscalationReason,
		EscalatedAt:      formatTimePtr(s.EscalatedAt),
		LastMessageAt:    formatTimePtr(s.LastMessageAt),
		CreatedAt:        formatTime(s.CreatedAt),
		UpdatedAt:        formatTime(s.UpdatedAt),
	}
}

func sessionsToResponse(ss []domain.ChatSession) []ChatSessionResponse {
	resp := make([]ChatSessionResponse, len(ss))
	for i := range ss {
		resp[i] = sessionToResponse(ss[i])
	}
	return resp
}

func messageToResponse(m domain.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:           m.ID,
		SessionID:    m.SessionID,
		Sender:       m.Sender,
		SenderUserID: m.SenderUserID,
		Content:      m.Content,
		CreatedAt:    formatTime(m.CreatedAt),
	}
}

func messagesToResponse(ms []domain.ChatMessage) []ChatMessageResponse {
	resp := make([]ChatMessageResponse, len(ms))
	for i := range ms {
		resp[i] = messageToResponse(ms[i])
	}
	return resp
}

func turnToResponse(r *service.TurnResult) TurnResponse {
	resp := TurnResponse{
		Session:     sessionToResponse(r.Session),
		UserMessage: messageToResponse(r.UserMessage),
		Escalated:   r.Escalated,
		Discarded:   r.Discarded,
	}
	if r.Reply != nil {
		reply := messageToResponse(*r.Reply)
		resp.Reply = &reply
	}
	if len(r.System) > 0 {
		resp.System = messagesToResponse(r.System)
	}
	return resp
}

func dashboardToResponse(d *service.Dashboard) DashboardResponse {
	resp := DashboardResponse{
		User:            userToResponse(d.User),
		Balance:         balanceToResponse(d.Balance),
		PendingRequests: requestsToResponse(d.PendingRequests),
		UpcomingLeave:   requestsToResponse(d.UpcomingLeave),
		Benefits: BenefitsResponse{
			Benefits:     benefitsToResponse(d.Benefits),
			MonthlyTotal: d.BenefitsTotal,
		},
		Time: summaryToResponse(d.Time),
	}
	if d.LatestPayslip != nil {
		p := payslipToResponse(*d.LatestPayslip)
		resp.LatestPayslip = &p
	}
	return resp
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
