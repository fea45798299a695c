package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pulse/internal/publisher"
	"pulse/internal/service"
	"pulse/internal/storage"
)

// DashboardLoader assembles the employee landing page.
type DashboardLoader interface {
	Dashboard(ctx context.Context, userID int64) (*service.Dashboard, error)
}

// Services are the dependencies the HTTP layer dispatches to. Publisher
// and Storage are nil when no bucket is configured.
type Services struct {
	Users     service.UserService
	Tokens    service.TokenService
	Vacations service.VacationService
	Payroll   service.PayrollService
	Time      service.TimeService
	Benefits  service.BenefitService
	Chat      service.ChatService
	Dashboard DashboardLoader
	Overview  service.OverviewService
	Publisher publisher.Manager
	Storage   storage.Service
	Bucket    string
	Logger    *logrus.Logger
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	svc    Services
	logger *logrus.Logger
}

func NewHandler(svc Services) *Handler {
	logger := svc.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), corsMiddleware())

	api := router.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})
	api.POST("/auth/login", h.login)

	authed := api.Group("")
	authed.Use(h.authMiddleware())
	{
		authed.GET("/me", h.me)
		authed.PUT("/me/password", h.changePassword)
		authed.GET("/me/dashboard", h.dashboard)

		authed.GET("/vacations/balance", h.vacationBalance)
		authed.GET("/vacations/requests", h.listVacationRequests)
		authed.POST("/vacations/requests", h.createVacationRequest)
		authed.POST("/vacations/requests/:id/cancel", h.cancelVacationRequest)
		authed.GET("/holidays", h.listHolidays)

		authed.GET("/payslips", h.listPayslips)
		authed.GET("/payslips/:id", h.getPayslip)
		authed.GET("/payslips/:id/document", h.payslipDocument)

		authed.POST("/time/clock-in", h.clockIn)
		authed.POST("/time/clock-out", h.clockOut)
		authed.GET("/time/records", h.timeRecords)
		authed.GET("/time/summary", h.timeSummary)

		authed.GET("/benefits", h.listBenefits)

		authed.GET("/chat/sessions", h.listChatSessions)
		authed.POST("/chat/sessions", h.createChatSession)
		authed.GET("/chat/sessions/:id", h.getChatSession)
		authed.GET("/chat/sessions/:id/messages", h.listChatMessages)
		authed.POST("/chat/sessions/:id/messages", h.sendChatMessage)
		authed.POST("/chat/sessions/:id/stream", h.streamChatMessage)
		authed.POST("/chat/sessions/:id/escalate", h.escalateChat)
		authed.POST("/chat/sessions/:id/cancel-escalation", h.cancelEscalation)
		authed.POST("/chat/sessions/:id/close", h.closeChat)
	}

	admin := authed.Group("/admin")
	admin.Use(requireAdmin())
	{
		admin.GET("/overview", h.overview)

		admin.GET("/users", h.listUsers)
		admin.POST("/users", h.createUser)
		admin.PUT("/users/:id", h.updateUser)
		admin.PUT("/users/:id/password", h.resetPassword)
		admin.PUT("/users/:id/vacation-periods/:year", h.setAllotment)
		admin.GET("/users/:id/time/records", h.userTimeRecords)
		admin.GET("/users/:id/payslips", h.userPayslips)
		admin.GET("/users/:id/benefits", h.userBenefits)
		admin.POST("/users/:id/benefits", h.assignBenefit)

		admin.GET("/vacations/requests", h.reviewQueue)
		admin.POST("/vacations/requests/:id/approve", h.approveVacation)
		admin.POST("/vacations/requests/:id/reject", h.rejectVacation)
		admin.POST("/holidays", h.addHoliday)
		admin.DELETE("/holidays/:id", h.removeHoliday)

		admin.POST("/payslips", h.issuePayslip)
		admin.POST("/payslips/:id/republish", h.republishPayslip)
		admin.GET("/storage/objects", h.listObjects)

		admin.PUT("/benefits/:id", h.updateBenefit)
		admin.DELETE("/benefits/:id", h.removeBenefit)

		admin.GET("/chat/sessions", h.adminChatSessions)
		admin.GET("/chat/sessions/:id/messages", h.listChatMessages)
		admin.POST("/chat/sessions/:id/intervene", h.intervene)
		admin.POST("/chat/sessions/:id/messages", h.adminChatMessage)
		admin.POST("/chat/sessions/:id/release", h.releaseChat)
		admin.POST("/chat/sessions/:id/close", h.closeChat)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

const requestIDHeader = "X-Request-ID"

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, id)

		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency":    time.Since(start).String(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	}
}

// writeError maps service errors to status codes and the {"error": "..."} body.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.WithField("path", c.Request.URL.Path).Errorf("internal error: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func errorStatus(err error) int {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrInsufficientBalance),
		errors.Is(err, service.ErrOverlappingRequest),
		errors.Is(err, service.ErrSessionClosed),
		errors.Is(err, service.ErrAlreadyClockedIn),
		errors.Is(err, service.ErrNotClockedIn),
		errors.Is(err, service.ErrDocumentNotReady),
		errors.Is(err, service.ErrPayslipExists),
		errors.Is(err, service.ErrNotRepublishable),
		errors.Is(err, service.ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrAssistantUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrStorageDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func queryDate(c *gin.Context, name string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return time.Time{}, true
	}
	t, err := parseDate(raw)
	if err != nil {
		badRequest(c, "invalid "+name+", expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), time.UTC)
}
