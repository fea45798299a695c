package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pulse/internal/service"
)

type vacationRequestBody struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	Reason    string `json:"reason"`
}

type clockInRequest struct {
	Note string `json:"note"`
}

func (h *Handler) vacationBalance(c *gin.Context) {
	year, ok := queryInt(c, "year", time.Now().Year())
	if !ok {
		return
	}
	balance, err := h.svc.Vacations.Balance(c.Request.Context(), currentUser(c).ID, year)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, balanceToResponse(balance))
}

func (h *Handler) listVacationRequests(c *gin.Context) {
	reqs, err := h.svc.Vacations.ListRequests(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, requestsToResponse(reqs))
}

func (h *Handler) createVacationRequest(c *gin.Context) {
	var body vacationRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	start, err := parseDate(body.StartDate)
	if err != nil {
		badRequest(c, "invalid start_date, expected YYYY-MM-DD")
		return
	}
	end, err := parseDate(body.EndDate)
	if err != nil {
		badRequest(c, "invalid end_date, expected YYYY-MM-DD")
		return
	}

	req, err := h.svc.Vacations.Request(c.Request.Context(), currentUser(c).ID, service.VacationRequestInput{
		StartDate: start,
		EndDate:   end,
		Reason:    body.Reason,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, requestToResponse(*req))
}

func (h *Handler) cancelVacationRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	req, err := h.svc.Vacations.Cancel(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, requestToResponse(*req))
}

func (h *Handler) listHolidays(c *gin.Context) {
	year, ok := queryInt(c, "year", time.Now().Year())
	if !ok {
		return
	}
	holidays, err := h.svc.Vacations.Holidays(c.Request.Context(), year)
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp := make([]HolidayResponse, len(holidays))
	for i := range holidays {
		resp[i] = holidayToResponse(holidays[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listPayslips(c *gin.Context) {
	payslips, err := h.svc.Payroll.ListByUser(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payslipsToResponse(payslips))
}

func (h *Handler) getPayslip(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Payroll.GetForUser(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payslipToResponse(*p))
}

func (h *Handler) payslipDocument(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	url, expiresAt, err := h.svc.Payroll.DocumentURL(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_at": formatTime(expiresAt)})
}

func (h *Handler) clockIn(c *gin.Context) {
	var body clockInRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	rec, err := h.svc.Time.ClockIn(c.Request.Context(), currentUser(c).ID, body.Note)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, timeRecordToResponse(*rec))
}

func (h *Handler) clockOut(c *gin.Context) {
	rec, err := h.svc.Time.ClockOut(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, timeRecordToResponse(*rec))
}

func (h *Handler) timeRecords(c *gin.Context) {
	h.writeTimeRecords(c, currentUser(c).ID)
}

func (h *Handler) writeTimeRecords(c *gin.Context, userID int64) {
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return
	}
	if !to.IsZero() {
		// inclusive end date
		to = to.AddDate(0, 0, 1)
	}
	recs, err := h.svc.Time.Records(c.Request.Context(), userID, from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, timeRecordsToResponse(recs))
}

func (h *Handler) timeSummary(c *gin.Context) {
	year, ok := queryInt(c, "year", 0)
	if !ok {
		return
	}
	month, ok := queryInt(c, "month", 0)
	if !ok {
		return
	}
	summary, err := h.svc.Time.Summary(c.Request.Context(), currentUser(c).ID, year, month)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaryToResponse(summary))
}

func (h *Handler) listBenefits(c *gin.Context) {
	benefits, total, err := h.svc.Benefits.ListActive(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, BenefitsResponse{Benefits: benefitsToResponse(benefits), MonthlyTotal: total})
}
