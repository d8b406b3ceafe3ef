package db

const (
	InsertJob = `
		INSERT INTO print_jobs (id, shop_id, token_number, print_type, print_side, copies, status, files_json, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	GetJobByID = `
		SELECT id, shop_id, token_number, print_type, print_side, copies, status, files_json, uploaded_at
		FROM print_jobs WHERE id = ?
	`

	GetJobsByToken = `
		SELECT id, shop_id, token_number, print_type, print_side, copies, status, files_json, uploaded_at
		FROM print_jobs WHERE token_number = ? ORDER BY uploaded_at ASC
	`

	GetJobsByShopBetween = `
		SELECT id, shop_id, token_number, print_type, print_side, copies, status, files_json, uploaded_at
		FROM print_jobs
		WHERE shop_id = ? AND uploaded_at >= ? AND uploaded_at < ? AND status != 'deleted'
		ORDER BY uploaded_at DESC
	`

	GetPendingJobsBefore = `
		SELECT id, shop_id, token_number, print_type, print_side, copies, status, files_json, uploaded_at
		FROM print_jobs WHERE status = 'pending' AND uploaded_at < ?
		ORDER BY uploaded_at ASC
	`

	UpdateJobStatusFiles = `
		UPDATE print_jobs SET status = ?, files_json = ? WHERE id = ?
	`
)

const (
	InsertShop = `
		INSERT INTO shops (id, name, bw_cost_per_page, color_cost_per_page, is_accepting_uploads)
		VALUES (?, ?, ?, ?, ?)
	`

	GetShopByID = `
		SELECT id, name, bw_cost_per_page, color_cost_per_page, is_accepting_uploads, created_at
		FROM shops WHERE id = ?
	`

	UpdateShopAccepting = `
		UPDATE shops SET is_accepting_uploads = ? WHERE id = ?
	`
)

const (
	InsertWebhook = `
		INSERT INTO webhooks (name, url, secret, events_json, enabled)
		VALUES (?, ?, ?, ?, ?)
	`

	GetWebhookByID = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks WHERE id = ?
	`

	ListWebhooks = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks ORDER BY name ASC
	`

	ListWebhooksForEvent = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks WHERE enabled = 1 AND events_json LIKE ?
	`

	UpdateWebhook = `
		UPDATE webhooks SET name = ?, url = ?, secret = ?, events_json = ?, enabled = ? WHERE id = ?
	`

	DeleteWebhook = `DELETE FROM webhooks WHERE id = ?`
)

const (
	GetSetting = `SELECT value, encrypted FROM settings WHERE key = ?`

	SetSetting = `
		INSERT INTO settings (key, value, encrypted, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = ?, encrypted = ?, updated_at = CURRENT_TIMESTAMP
	`

	DeleteSetting = `DELETE FROM settings WHERE key = ?`
)
