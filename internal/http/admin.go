package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pulse/internal/domain"
	"pulse/internal/service"
)

type createUserRequest struct {
	Email        string      `json:"email" binding:"required"`
	Password     string      `json:"password" binding:"required"`
	FullName     string      `json:"full_name" binding:"required"`
	Role         domain.Role `json:"role"`
	Department   string      `json:"department"`
	Position     string      `json:"position"`
	HireDate     string      `json:"hire_date"`
	VacationDays *int        `json:"vacation_days"`
}

type updateUserRequest struct {
	FullName   *string      `json:"full_name"`
	Role       *domain.Role `json:"role"`
	Department *string      `json:"department"`
	Position   *string      `json:"position"`
	HireDate   *string      `json:"hire_date"`
	Active     *bool        `json:"active"`
}

type resetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

type allotmentRequest struct {
	TotalDays *int `json:"total_days" binding:"required"`
}

type reviewRequest struct {
	Comment string `json:"comment"`
}

type holidayRequest struct {
	Date string `json:"date" binding:"required"`
	Name string `json:"name" binding:"required"`
}

type issuePayslipRequest struct {
	UserID      int64              `json:"user_id" binding:"required"`
	Year        int                `json:"year" binding:"required"`
	Month       int                `json:"month" binding:"required"`
	Currency    string             `json:"currency"`
	GrossAmount int64              `json:"gross_amount" binding:"required"`
	Deductions  []domain.Deduction `json:"deductions"`
}

type benefitRequest struct {
	Name         string                 `json:"name" binding:"required"`
	Category     domain.BenefitCategory `json:"category"`
	Description  string                 `json:"description"`
	MonthlyValue int64                  `json:"monthly_value"`
	StartDate    string                 `json:"start_date"`
	EndDate      string                 `json:"end_date"`
	Active       *bool                  `json:"active"`
}

func (h *Handler) overview(c *gin.Context) {
	o, err := h.svc.Overview.Overview(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, OverviewResponse{
		Users:            o.Users,
		PendingVacations: o.PendingVacations,
		ChatSessions:     o.ChatSessions,
	})
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.svc.Users.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	input := service.CreateUserInput{
		Email:        req.Email,
		Password:     req.Password,
		FullName:     req.FullName,
		Role:         domain.Role(strings.ToUpper(string(req.Role))),
		Department:   req.Department,
		Position:     req.Position,
		VacationDays: req.VacationDays,
	}
	if strings.TrimSpace(req.HireDate) != "" {
		d, err := parseDate(req.HireDate)
		if err != nil {
			badRequest(c, "invalid hire_date, expected YYYY-MM-DD")
			return
		}
		input.HireDate = &d
	}

	user, err := h.svc.Users.Create(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userToResponse(*user))
}

func (h *Handler) updateUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	input := service.UpdateUserInput{
		FullName:   req.FullName,
		Department: req.Department,
		Position:   req.Position,
		Active:     req.Active,
	}
	if req.Role != nil {
		role := domain.Role(strings.ToUpper(string(*req.Role)))
		input.Role = &role
	}
	if req.HireDate != nil {
		d, err := parseDate(*req.HireDate)
		if err != nil {
			badRequest(c, "invalid hire_date, expected YYYY-MM-DD")
			return
		}
		input.HireDate = &d
	}

	user, err := h.svc.Users.Update(c.Request.Context(), currentUser(c).ID, id, input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) resetPassword(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if _, err := h.svc.Users.GetByID(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.svc.Users.ResetPassword(c.Request.Context(), id, req.Password); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) setAllotment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	year, ok := pathID(c, "year")
	if !ok {
		return
	}
	var req allotmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	period, err := h.svc.Vacations.SetAllotment(c.Request.Context(), id, int(year), *req.TotalDays)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PeriodResponse{
		UserID:    period.UserID,
		Year:      period.Year,
		TotalDays: period.TotalDays,
		UsedDays:  period.UsedDays,
		Available: period.Available(),
	})
}

func (h *Handler) userTimeRecords(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.writeTimeRecords(c, id)
}

func (h *Handler) userPayslips(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	payslips, err := h.svc.Payroll.ListByUser(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payslipsToResponse(payslips))
}

func (h *Handler) userBenefits(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	benefits, err := h.svc.Benefits.ListByUser(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, benefitsToResponse(benefits))
}

func (h *Handler) reviewQueue(c *gin.Context) {
	status := domain.VacationStatus(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	reqs, err := h.svc.Vacations.ListByStatus(c.Request.Context(), status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, requestsToResponse(reqs))
}

func (h *Handler) approveVacation(c *gin.Context) {
	h.review(c, h.svc.Vacations.Approve)
}

func (h *Handler) rejectVacation(c *gin.Context) {
	h.review(c, h.svc.Vacations.Reject)
}

func (h *Handler) review(c *gin.Context, decide func(ctx context.Context, reviewerID, requestID int64, comment string) (*domain.VacationRequest, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	reviewed, err := decide(c.Request.Context(), currentUser(c).ID, id, req.Comment)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, requestToResponse(*reviewed))
}

func (h *Handler) addHoliday(c *gin.Context) {
	var req holidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(c, "invalid date, expected YYYY-MM-DD")
		return
	}
	holiday, err := h.svc.Vacations.AddHoliday(c.Request.Context(), date, req.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, holidayToResponse(*holiday))
}

func (h *Handler) removeHoliday(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Vacations.RemoveHoliday(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) issuePayslip(c *gin.Context) {
	var req issuePayslipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	payslip, err := h.svc.Payroll.Issue(c.Request.Context(), service.IssuePayslipInput{
		UserID:      req.UserID,
		Year:        req.Year,
		Month:       req.Month,
		Currency:    req.Currency,
		GrossAmount: req.GrossAmount,
		Deductions:  req.Deductions,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := gin.H{"payslip": payslipToResponse(*payslip)}
	if warning := h.enqueuePublish(c, payslip.ID); warning != "" {
		resp["warnings"] = []string{warning}
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) republishPayslip(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if h.svc.Publisher == nil {
		h.writeError(c, service.ErrStorageDisabled)
		return
	}
	payslip, err := h.svc.Payroll.PrepareRepublish(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp := gin.H{"payslip": payslipToResponse(*payslip)}
	if warning := h.enqueuePublish(c, payslip.ID); warning != "" {
		resp["warnings"] = []string{warning}
	}
	c.JSON(http.StatusAccepted, resp)
}

// enqueuePublish hands the payslip to the publisher. The payslip stays
// pending on failure and is picked up again on the next start.
func (h *Handler) enqueuePublish(c *gin.Context, id int64) string {
	if h.svc.Publisher == nil {
		return "document storage is not configured, the payslip document was not published"
	}
	if err := h.svc.Publisher.Enqueue(c.Request.Context(), id); err != nil {
		h.logger.WithField("payslip_id", id).Warnf("enqueue publish: %v", err)
		return "publish payslip: " + err.Error()
	}
	return ""
}

func (h *Handler) listObjects(c *gin.Context) {
	if h.svc.Storage == nil || h.svc.Bucket == "" {
		h.writeError(c, service.ErrStorageDisabled)
		return
	}

	objects, err := h.svc.Storage.ListObjects(c.Request.Context(), h.svc.Bucket, c.Query("prefix"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) assignBenefit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	input, ok := bindBenefit(c)
	if !ok {
		return
	}
	benefit, err := h.svc.Benefits.Assign(c.Request.Context(), id, input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, benefitToResponse(*benefit))
}

func (h *Handler) updateBenefit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	input, ok := bindBenefit(c)
	if !ok {
		return
	}
	benefit, err := h.svc.Benefits.Update(c.Request.Context(), id, input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, benefitToResponse(*benefit))
}

func (h *Handler) removeBenefit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Benefits.Remove(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func bindBenefit(c *gin.Context) (service.BenefitInput, bool) {
	var req benefitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return service.BenefitInput{}, false
	}
	input := service.BenefitInput{
		Name:         req.Name,
		Category:     req.Category,
		Description:  req.Description,
		MonthlyValue: req.MonthlyValue,
		Active:       req.Active,
	}
	if strings.TrimSpace(req.StartDate) != "" {
		d, err := parseDate(req.StartDate)
		if err != nil {
			badRequest(c, "invalid start_date, expected YYYY-MM-DD")
			return service.BenefitInput{}, false
		}
		input.StartDate = d
	}
	if strings.TrimSpace(req.EndDate) != "" {
		d, err := parseDate(req.EndDate)
		if err != nil {
			badRequest(c, "invalid end_date, expected YYYY-MM-DD")
			return service.BenefitInput{}, false
		}
		input.EndDate = &d
	}
	return input, true
}
