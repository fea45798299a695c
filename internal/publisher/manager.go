package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pulse/internal/domain"
	"pulse/internal/service"
	"pulse/internal/storage"
)

// Manager coordinates payslip rendering, upload and publishing state.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	Enqueue(ctx context.Context, payslipID int64) error
	Resume(ctx context.Context) error
	Cancel(ctx context.Context, payslipID int64) error
}

type Config struct {
	Bucket        string
	KeyPrefix     string
	MaxConcurrent int
	Logger        *logrus.Logger
}

var ErrNotStarted = errors.New("publisher not started")

type manager struct {
	cfg     Config
	payroll service.PayrollService
	users   service.UserService
	storage storage.Service

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	active map[int64]*jobHandle

	newID func() string
}

type jobHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, payroll service.PayrollService, users service.UserService, store storage.Service) Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &manager{
		cfg:     cfg,
		payroll: payroll,
		users:   users,
		storage: store,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		active:  make(map[int64]*jobHandle),
		newID:   func() string { return uuid.NewString() },
	}
}

func (m *manager) Start(ctx context.Context) error {
	if m.storage == nil || strings.TrimSpace(m.cfg.Bucket) == "" {
		return fmt.Errorf("%w: no bucket configured", service.ErrStorageDisabled)
	}
	m.mu.Lock()
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()
	m.cfg.Logger.Infof("payslip publisher started, bucket: %s, workers: %d", m.cfg.Bucket, m.cfg.MaxConcurrent)
	return nil
}

func (m *manager) Shutdown() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("payslip publisher stopped")
}

func (m *manager) Enqueue(ctx context.Context, payslipID int64) error {
	payslip, err := m.payroll.Get(ctx, payslipID)
	if err != nil {
		return err
	}
	return m.spawnJob(*payslip)
}

// Resume picks up payslips a previous run left unfinished.
func (m *manager) Resume(ctx context.Context) error {
	payslips, err := m.payroll.ListByDocumentStatus(ctx,
		domain.DocumentStatusPending,
		domain.DocumentStatusRendering,
		domain.DocumentStatusUploading,
	)
	if err != nil {
		return err
	}

	for i := range payslips {
		if err := m.spawnJob(payslips[i]); err != nil {
			return err
		}
	}
	if len(payslips) > 0 {
		m.cfg.Logger.Infof("resumed %d unpublished payslips", len(payslips))
	}
	return nil
}

func (m *manager) spawnJob(payslip domain.Payslip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return ErrNotStarted
	}
	if _, running := m.active[payslip.ID]; running {
		return nil
	}

	jobCtx, cancel := context.WithCancel(m.ctx)
	handle := &jobHandle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.active[payslip.ID] = handle
	base := m.ctx

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			cancel()
			m.unregisterJob(payslip.ID)
			close(handle.done)
		}()
		select {
		case <-base.Done():
			return
		case <-jobCtx.Done():
			return
		case m.sem <- struct{}{}:
			defer func() { <-m.sem }()
			m.publish(jobCtx, &payslip)
		}
	}()
	return nil
}

func (m *manager) unregisterJob(id int64) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

func (m *manager) getJobHandle(id int64) (*jobHandle, bool) {
	m.mu.Lock()
	handle, ok := m.active[id]
	m.mu.Unlock()
	return handle, ok
}

// Cancel stops an in-flight job and waits for it to return. The payslip
// keeps its current status so Resume or a republish can finish it.
func (m *manager) Cancel(ctx context.Context, payslipID int64) error {
	handle, ok := m.getJobHandle(payslipID)
	if !ok {
		return nil
	}

	handle.cancel()

	select {
	case <-handle.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *manager) publish(ctx context.Context, p *domain.Payslip) {
	logger := m.cfg.Logger.WithFields(logrus.Fields{"payslip_id": p.ID, "user_id": p.UserID})
	if p.DocumentStatus == domain.DocumentStatusPublished {
		logger.Debug("payslip already published, skipping")
		return
	}

	if err := m.payroll.UpdateDocumentStatus(ctx, p.ID, domain.DocumentStatusRendering, nil); err != nil {
		logger.Errorf("update status failed: %v", err)
		return
	}
	p.DocumentStatus = domain.DocumentStatusRendering

	employee, err := m.users.GetByID(ctx, p.UserID)
	if err != nil {
		m.failJob(ctx, p.ID, fmt.Errorf("load employee: %w", err))
		return
	}

	var buf bytes.Buffer
	if err := renderPayslip(&buf, *p, *employee); err != nil {
		m.failJob(ctx, p.ID, err)
		return
	}

	if err := m.payroll.UpdateDocumentStatus(ctx, p.ID, domain.DocumentStatusUploading, nil); err != nil {
		logger.Errorf("set uploading status: %v", err)
		return
	}
	p.DocumentStatus = domain.DocumentStatusUploading

	key := m.objectKey(p)
	progressLogger := newUploadProgressLogger(logger)
	opts := storage.UploadOptions{
		Bucket:      m.cfg.Bucket,
		ContentType: "text/html; charset=utf-8",
		Size:        int64(buf.Len()),
		ProgressCallback: func(done, total int64) {
			progressLogger(done, total)
		},
	}

	logger.Infof("upload started: %s (%s)", key, formatBytes(opts.Size))

	location, err := m.storage.PutObject(ctx, key, &buf, opts)
	if err != nil {
		m.failJob(ctx, p.ID, fmt.Errorf("upload: %w", err))
		return
	}

	previous := p.DocumentKey
	if err := m.payroll.MarkPublished(ctx, p.ID, key, location); err != nil {
		logger.Errorf("mark published: %v", err)
		return
	}
	p.DocumentStatus = domain.DocumentStatusPublished

	if previous != "" && previous != key {
		if err := m.storage.DeletePrefix(ctx, m.cfg.Bucket, previous); err != nil {
			logger.Warnf("remove previous document %s: %v", previous, err)
		}
	}

	logger.Infof("payslip published to %s", location)
}

func (m *manager) objectKey(p *domain.Payslip) string {
	name := fmt.Sprintf("%d/%04d-%02d-%s.html", p.UserID, p.Year, p.Month, m.newID())
	prefix := strings.Trim(m.cfg.KeyPrefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// failJob persists the failure unless the job was cancelled, in which case
// the payslip stays resumable.
func (m *manager) failJob(ctx context.Context, payslipID int64, failErr error) {
	logger := m.cfg.Logger.WithField("payslip_id", payslipID)
	if ctx.Err() != nil {
		logger.Infof("publishing cancelled: %v", failErr)
		return
	}
	msg := failErr.Error()
	if err := m.payroll.UpdateDocumentStatus(ctx, payslipID, domain.DocumentStatusFailed, &msg); err != nil {
		logger.Errorf("persist failure status: %v", err)
	}
	logger.Error(msg)
}

func newUploadProgressLogger(logger *logrus.Entry) func(done, total int64) {
	var lastLog time.Time
	return func(done, total int64) {
		now := time.Now()
		if total == 0 {
			if now.Sub(lastLog) < 500*time.Millisecond && done != 0 {
				return
			}
			lastLog = now
			logger.Debugf("upload progress: %s uploaded", formatBytes(done))
			return
		}

		if now.Sub(lastLog) < 500*time.Millisecond && done != total {
			return
		}
		lastLog = now
		logger.Debugf("upload progress: %.1f%% (%s/%s)", float64(done)/float64(total)*100, formatBytes(done), formatBytes(total))
	}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%dB", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB",
		float64(b)/float64(div),
		"KMGTPE"[exp],
	)
}

var _ Manager = (*manager)(nil)
