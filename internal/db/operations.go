package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/walkup/printq/internal/core"
)

type JobOperations struct{}

func marshalFiles(files []core.FileRef) (string, error) {
	data, err := json.Marshal(files)
	if err != nil {
		return "", fmt.Errorf("failed to marshal file refs: %w", err)
	}
	return string(data), nil
}

func scanJob(scanner interface{ Scan(...interface{}) error }) (*core.PrintJob, error) {
	j := &core.PrintJob{}
	var filesJSON string
	if err := scanner.Scan(
		&j.ID, &j.ShopID, &j.TokenNumber, &j.PrintType, &j.PrintSide,
		&j.Copies, &j.Status, &filesJSON, &j.UploadedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(filesJSON), &j.Files); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file refs for job %s: %w", j.ID, err)
	}
	return j, nil
}

func (o *JobOperations) Insert(ctx context.Context, j *core.PrintJob) error {
	filesJSON, err := marshalFiles(j.Files)
	if err != nil {
		return err
	}
	_, err = GetDB().ExecContext(ctx, InsertJob,
		j.ID, j.ShopID, j.TokenNumber, j.PrintType, j.PrintSide,
		j.Copies, j.Status, filesJSON, j.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (o *JobOperations) FindByID(ctx context.Context, id string) (*core.PrintJob, error) {
	j, err := scanJob(GetDB().QueryRowContext(ctx, GetJobByID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

func (o *JobOperations) FindByToken(ctx context.Context, token string) ([]*core.PrintJob, error) {
	rows, err := GetDB().QueryContext(ctx, GetJobsByToken, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs by token: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (o *JobOperations) FindByShopBetween(ctx context.Context, shopID string, start, end time.Time) ([]*core.PrintJob, error) {
	rows, err := GetDB().QueryContext(ctx, GetJobsByShopBetween, shopID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs for shop: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (o *JobOperations) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]*core.PrintJob, error) {
	rows, err := GetDB().QueryContext(ctx, GetPendingJobsBefore, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// UpdateStatusAndFiles persists the job's current status and file list as one
// single-row update.
func (o *JobOperations) UpdateStatusAndFiles(ctx context.Context, j *core.PrintJob) error {
	filesJSON, err := marshalFiles(j.Files)
	if err != nil {
		return err
	}
	_, err = GetDB().ExecContext(ctx, UpdateJobStatusFiles, j.Status, filesJSON, j.ID)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

// UpdateStatusAndFilesBatch applies the same update to every job in one
// transaction. The write as a whole either commits or rolls back; re-running
// it with the same inputs is a no-op.
func (o *JobOperations) UpdateStatusAndFilesBatch(ctx context.Context, jobs []*core.PrintJob) error {
	tx, err := GetDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch update: %w", err)
	}

	for _, j := range jobs {
		filesJSON, err := marshalFiles(j.Files)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, UpdateJobStatusFiles, j.Status, filesJSON, j.ID); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to update job %s in batch: %w", j.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch update: %w", err)
	}
	return nil
}

func collectJobs(rows *sql.Rows) ([]*core.PrintJob, error) {
	var jobs []*core.PrintJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

type ShopOperations struct{}

func (o *ShopOperations) Insert(ctx context.Context, s *core.Shop) error {
	_, err := GetDB().ExecContext(ctx, InsertShop,
		s.ID, s.Name, s.BWCostPerPage, s.ColorCostPerPage, s.IsAcceptingUploads)
	if err != nil {
		return fmt.Errorf("failed to insert shop: %w", err)
	}
	return nil
}

func (o *ShopOperations) FindByID(ctx context.Context, id string) (*core.Shop, error) {
	s := &core.Shop{}
	err := GetDB().QueryRowContext(ctx, GetShopByID, id).Scan(
		&s.ID, &s.Name, &s.BWCostPerPage, &s.ColorCostPerPage,
		&s.IsAcceptingUploads, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return s, nil
}

func (o *ShopOperations) SetAcceptingUploads(ctx context.Context, id string, accepting bool) error {
	result, err := GetDB().ExecContext(ctx, UpdateShopAccepting, accepting, id)
	if err != nil {
		return fmt.Errorf("failed to update shop: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

type WebhookOperations struct{}

func (o *WebhookOperations) CreateWebhook(ctx context.Context, w *Webhook) error {
	result, err := GetDB().ExecContext(ctx, InsertWebhook,
		w.Name, w.URL, w.Secret, w.EventsJSON, w.Enabled)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get webhook id: %w", err)
	}
	w.ID = id
	return nil
}

func (o *WebhookOperations) GetWebhookByID(ctx context.Context, id int64) (*Webhook, error) {
	w := &Webhook{}
	err := GetDB().QueryRowContext(ctx, GetWebhookByID, id).Scan(
		&w.ID, &w.Name, &w.URL, &w.Secret, &w.EventsJSON, &w.Enabled, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return w, nil
}

func (o *WebhookOperations) ListWebhooks(ctx context.Context) ([]*Webhook, error) {
	rows, err := GetDB().QueryContext(ctx, ListWebhooks)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	return collectWebhooks(rows)
}

func (o *WebhookOperations) ListActiveWebhooksForEvent(ctx context.Context, event string) ([]*Webhook, error) {
	pattern := "%\"" + event + "\"%"
	rows, err := GetDB().QueryContext(ctx, ListWebhooksForEvent, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks for event: %w", err)
	}
	defer rows.Close()

	return collectWebhooks(rows)
}

func collectWebhooks(rows *sql.Rows) ([]*Webhook, error) {
	var webhooks []*Webhook
	for rows.Next() {
		w := &Webhook{}
		if err := rows.Scan(
			&w.ID, &w.Name, &w.URL, &w.Secret, &w.EventsJSON, &w.Enabled, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func (o *WebhookOperations) UpdateWebhook(ctx context.Context, w *Webhook) error {
	_, err := GetDB().ExecContext(ctx, UpdateWebhook,
		w.Name, w.URL, w.Secret, w.EventsJSON, w.Enabled, w.ID)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	return nil
}

func (o *WebhookOperations) DeleteWebhook(ctx context.Context, id int64) error {
	_, err := GetDB().ExecContext(ctx, DeleteWebhook, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

type SettingsOperations struct{}

func (o *SettingsOperations) GetSetting(ctx context.Context, key string) (*Setting, error) {
	s := &Setting{Key: key}
	err := GetDB().QueryRowContext(ctx, GetSetting, key).Scan(&s.Value, &s.Encrypted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return s, nil
}

func (o *SettingsOperations) SetSetting(ctx context.Context, key, value string, encrypted bool) error {
	_, err := GetDB().ExecContext(ctx, SetSetting, key, value, encrypted, value, encrypted)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

func (o *SettingsOperations) DeleteSetting(ctx context.Context, key string) error {
	_, err := GetDB().ExecContext(ctx, DeleteSetting, key)
	if err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}
	return nil
}

var (
	Jobs     = &JobOperations{}
	Shops    = &ShopOperations{}
	Webhooks = &WebhookOperations{}
	Settings = &SettingsOperations{}
)
