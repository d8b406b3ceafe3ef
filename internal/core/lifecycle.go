package core

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

type JobRepository interface {
	Insert(ctx context.Context, j *PrintJob) error
	FindByID(ctx context.Context, id string) (*PrintJob, error)
	FindByToken(ctx context.Context, token string) ([]*PrintJob, error)
	FindByShopBetween(ctx context.Context, shopID string, start, end time.Time) ([]*PrintJob, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]*PrintJob, error)
	UpdateStatusAndFiles(ctx context.Context, j *PrintJob) error
	UpdateStatusAndFilesBatch(ctx context.Context, jobs []*PrintJob) error
}

type ShopRepository interface {
	FindByID(ctx context.Context, id string) (*Shop, error)
	SetAcceptingUploads(ctx context.Context, id string, accepting bool) error
}

type ArtifactStore interface {
	Remove(path string) error
}

// Manager owns the job state machine. Every mutation runs as one critical
// section per token: read current jobs, best-effort delete artifacts, commit
// status, then publish. Events go out only after the repository commit.
type Manager struct {
	jobs  JobRepository
	shops ShopRepository
	store ArtifactStore
	bus   EventPublisher
	hooks EventPublisher
	locks *tokenLocks
}

// NewManager wires the lifecycle manager. hooks is an optional secondary
// event sink (outbound webhooks); pass nil to disable.
func NewManager(jobs JobRepository, shops ShopRepository, store ArtifactStore, bus EventPublisher, hooks EventPublisher) *Manager {
	return &Manager{
		jobs:  jobs,
		shops: shops,
		store: store,
		bus:   bus,
		hooks: hooks,
		locks: newTokenLocks(),
	}
}

func (m *Manager) publish(shopID, event string, payload interface{}) {
	if m.bus != nil {
		m.bus.PublishToShop(shopID, event, payload)
	}
	if m.hooks != nil {
		m.hooks.PublishToShop(shopID, event, payload)
	}
}

type CreateJobParams struct {
	ShopID      string
	TokenNumber string
	PrintType   PrintType
	PrintSide   PrintSide
	Copies      int
	Files       []FileRef
}

// CreateJob persists a new pending job for already-stored files and publishes
// a newBatchPrintJob event to the shop's room. A token is generated when the
// caller does not supply one.
func (m *Manager) CreateJob(ctx context.Context, p CreateJobParams) (*PrintJob, error) {
	if p.ShopID == "" {
		return nil, &ValidationError{Field: "shop_id", Reason: "required"}
	}
	if p.PrintType != PrintTypeBW && p.PrintType != PrintTypeColor {
		return nil, &ValidationError{Field: "print_type", Reason: "must be bw or color"}
	}
	if p.PrintSide != PrintSideSingle && p.PrintSide != PrintSideDouble {
		return nil, &ValidationError{Field: "print_side", Reason: "must be single or double"}
	}
	if len(p.Files) == 0 {
		return nil, &ValidationError{Field: "files", Reason: "at least one file is required"}
	}
	for _, f := range p.Files {
		if f.FileName == "" {
			return nil, &ValidationError{Field: "files", Reason: "file name is required"}
		}
		if f.FilePath == nil || *f.FilePath == "" {
			return nil, &ValidationError{Field: "files", Reason: "file path is required at creation"}
		}
	}
	if p.Copies <= 0 {
		p.Copies = 1
	}

	shop, err := m.shops.FindByID(ctx, p.ShopID)
	if err != nil {
		return nil, err
	}
	if !shop.IsAcceptingUploads {
		return nil, ErrShopNotAccepting
	}

	token := p.TokenNumber
	if token == "" {
		token = GenerateToken(tokenLength)
	}

	job := &PrintJob{
		ID:          uuid.NewString(),
		ShopID:      p.ShopID,
		TokenNumber: token,
		PrintType:   p.PrintType,
		PrintSide:   p.PrintSide,
		Copies:      p.Copies,
		Status:      JobStatusPending,
		Files:       p.Files,
		UploadedAt:  time.Now().UTC(),
	}

	unlock := m.locks.Lock(token)
	defer unlock()

	if err := m.jobs.Insert(ctx, job); err != nil {
		return nil, &PersistenceError{Op: "create job", Err: err}
	}

	m.publish(job.ShopID, EventNewBatchPrintJob, NewBatchPrintJobEvent{
		ID:         job.ID,
		Token:      job.TokenNumber,
		Files:      job.Files,
		PrintType:  job.PrintType,
		PrintSide:  job.PrintSide,
		Copies:     job.Copies,
		Status:     job.Status,
		UploadTime: job.UploadedAt,
	})

	return job, nil
}

// UpdateSingleStatus transitions one job. For completed and deleted targets
// the backing artifacts are removed best-effort before the commit; a failed
// delete is logged and never blocks the remaining files or the transition.
func (m *Manager) UpdateSingleStatus(ctx context.Context, jobID string, newStatus JobStatus) (*PrintJob, error) {
	if !newStatus.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", newStatus)}
	}

	// The token is only known after a load; the authoritative read happens
	// again under the lock.
	probe, err := m.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(probe.TokenNumber)
	defer unlock()

	job, err := m.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == newStatus {
		return job, nil
	}
	if job.Status.Terminal() {
		return nil, fmt.Errorf("job %s is %s: %w", job.ID, job.Status, ErrInvalidTransition)
	}

	m.cleanupArtifacts(job)
	job.Status = newStatus
	job.ClearFilePaths()

	if err := m.jobs.UpdateStatusAndFiles(ctx, job); err != nil {
		return nil, &PersistenceError{Op: "update job status", Err: err}
	}

	m.publish(job.ShopID, EventJobStatusUpdate, JobStatusUpdateEvent{
		ID:     job.ID,
		Token:  job.TokenNumber,
		Status: job.Status,
	})

	return job, nil
}

// UpdateBatchStatus transitions every job currently tagged with token as one
// logical batch. Jobs already at the target status are left as they are, so a
// re-run after a partial failure converges. One batchStatusUpdate event is
// published after the commit.
func (m *Manager) UpdateBatchStatus(ctx context.Context, token string, newStatus JobStatus) (int, error) {
	if newStatus != JobStatusCompleted && newStatus != JobStatusDeleted {
		return 0, &ValidationError{Field: "status", Reason: "batch status must be completed or deleted"}
	}

	unlock := m.locks.Lock(token)
	defer unlock()

	jobs, err := m.jobs.FindByToken(ctx, token)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, ErrNotFound
	}

	var dirty []*PrintJob
	var shopID string
	count := 0
	for _, job := range jobs {
		shopID = job.ShopID
		switch {
		case job.Status == newStatus:
			count++
		case job.Status.Terminal():
			// A job another operation already finished stays as is.
			log.Printf("[lifecycle] batch %s skips job %s already %s", token, job.ID, job.Status)
		default:
			m.cleanupArtifacts(job)
			job.Status = newStatus
			job.ClearFilePaths()
			dirty = append(dirty, job)
			count++
		}
	}

	if len(dirty) > 0 {
		if err := m.jobs.UpdateStatusAndFilesBatch(ctx, dirty); err != nil {
			return 0, &PersistenceError{Op: "batch status update", Err: err}
		}
	}

	m.publish(shopID, EventBatchStatusUpdate, BatchStatusUpdateEvent{
		Token:  token,
		Status: newStatus,
		Count:  count,
	})

	return count, nil
}

// DeleteSingleJob marks one job deleted. Deleting an already-deleted job is a
// no-op returning the current state.
func (m *Manager) DeleteSingleJob(ctx context.Context, jobID string) (*PrintJob, error) {
	return m.UpdateSingleStatus(ctx, jobID, JobStatusDeleted)
}

func (m *Manager) DeleteBatch(ctx context.Context, token string) (int, error) {
	return m.UpdateBatchStatus(ctx, token, JobStatusDeleted)
}

// cleanupArtifacts removes every live file of the job from disk, continuing
// past individual failures. Each failure is logged with the job id and path.
func (m *Manager) cleanupArtifacts(job *PrintJob) {
	for _, f := range job.LiveFiles() {
		if err := m.store.Remove(*f.FilePath); err != nil {
			log.Printf("[lifecycle] failed to delete artifact job=%s path=%s: %v", job.ID, *f.FilePath, err)
		}
	}
}

// GetJobsForShopToday lists the shop's non-deleted jobs uploaded today,
// newest first.
func (m *Manager) GetJobsForShopToday(ctx context.Context, shopID string) ([]*PrintJob, error) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	jobs, err := m.jobs.FindByShopBetween(ctx, shopID, start, end)
	if err != nil {
		return nil, &PersistenceError{Op: "list shop jobs", Err: err}
	}
	return jobs, nil
}

// TokenStatus is the customer-facing status record for a token. When several
// jobs share the token the status of the earliest upload is reported and the
// file names of every job are collected.
type TokenStatus struct {
	Status    JobStatus `json:"status"`
	FileNames []string  `json:"file_names"`
	PrintType PrintType `json:"print_type"`
	PrintSide PrintSide `json:"print_side"`
	Copies    int       `json:"copies"`
}

// GetJobStatus reports the status for a token. Deleted jobs are not filtered
// out here; only the shop's "today" listing hides them.
func (m *Manager) GetJobStatus(ctx context.Context, token string) (*TokenStatus, error) {
	jobs, err := m.jobs.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, ErrNotFound
	}

	first := jobs[0]
	status := &TokenStatus{
		Status:    first.Status,
		PrintType: first.PrintType,
		PrintSide: first.PrintSide,
		Copies:    first.Copies,
	}
	for _, job := range jobs {
		for _, f := range job.Files {
			status.FileNames = append(status.FileNames, f.FileName)
		}
	}
	return status, nil
}

func (m *Manager) GetShop(ctx context.Context, shopID string) (*Shop, error) {
	return m.shops.FindByID(ctx, shopID)
}

// ToggleShopAcceptingUploads flips the shop's upload gate and publishes a
// shopStatusUpdate to the shop's room after the commit.
func (m *Manager) ToggleShopAcceptingUploads(ctx context.Context, shopID string, accepting bool) (*Shop, error) {
	if err := m.shops.SetAcceptingUploads(ctx, shopID, accepting); err != nil {
		return nil, err
	}
	shop, err := m.shops.FindByID(ctx, shopID)
	if err != nil {
		return nil, err
	}

	m.publish(shop.ID, EventShopStatusUpdate, ShopStatusUpdateEvent{
		IsAcceptingUploads: shop.IsAcceptingUploads,
	})

	return shop, nil
}

// ExpireStale transitions jobs left pending before cutoff to expired, token
// by token under the usual lock. Artifacts of expired jobs are removed the
// same way completion removes them; stale uploads do not pin disk space.
func (m *Manager) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := m.jobs.FindPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, &PersistenceError{Op: "find stale jobs", Err: err}
	}

	tokens := make(map[string]bool)
	for _, job := range stale {
		tokens[job.TokenNumber] = true
	}

	expired := 0
	for token := range tokens {
		n, err := m.expireToken(ctx, token, cutoff)
		if err != nil {
			log.Printf("[lifecycle] expiry for token %s failed: %v", token, err)
			continue
		}
		expired += n
	}
	return expired, nil
}

func (m *Manager) expireToken(ctx context.Context, token string, cutoff time.Time) (int, error) {
	unlock := m.locks.Lock(token)
	defer unlock()

	jobs, err := m.jobs.FindByToken(ctx, token)
	if err != nil {
		return 0, err
	}

	var dirty []*PrintJob
	for _, job := range jobs {
		if job.Status != JobStatusPending || !job.UploadedAt.Before(cutoff) {
			continue
		}
		m.cleanupArtifacts(job)
		job.Status = JobStatusExpired
		job.ClearFilePaths()
		dirty = append(dirty, job)
	}
	if len(dirty) == 0 {
		return 0, nil
	}

	if err := m.jobs.UpdateStatusAndFilesBatch(ctx, dirty); err != nil {
		return 0, &PersistenceError{Op: "expire jobs", Err: err}
	}

	for _, job := range dirty {
		m.publish(job.ShopID, EventJobStatusUpdate, JobStatusUpdateEvent{
			ID:     job.ID,
			Token:  job.TokenNumber,
			Status: job.Status,
		})
	}
	return len(dirty), nil
}

const tokenLength = 6

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateToken returns a short human-readable batch code. Tokens are not
// globally unique across time; token-scoped operations always mean "all jobs
// presently tagged with this token".
func GenerateToken(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("token generation: %v", err))
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf)
}
