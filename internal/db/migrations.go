package db

func loadMigrations() []Migration {
	return []Migration{
		{
			Version: "001_initial",
			SQL: `
				CREATE TABLE IF NOT EXISTS shops (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					bw_cost_per_page REAL NOT NULL DEFAULT 0,
					color_cost_per_page REAL NOT NULL DEFAULT 0,
					is_accepting_uploads INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS print_jobs (
					id TEXT PRIMARY KEY,
					shop_id TEXT NOT NULL,
					token_number TEXT NOT NULL,
					print_type TEXT NOT NULL,
					print_side TEXT NOT NULL,
					copies INTEGER NOT NULL DEFAULT 1,
					status TEXT NOT NULL DEFAULT 'pending',
					files_json TEXT NOT NULL,
					uploaded_at DATETIME NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_print_jobs_token ON print_jobs(token_number);
				CREATE INDEX IF NOT EXISTS idx_print_jobs_shop_uploaded ON print_jobs(shop_id, uploaded_at);
				CREATE INDEX IF NOT EXISTS idx_print_jobs_status ON print_jobs(status);

				CREATE TABLE IF NOT EXISTS settings (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					encrypted INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS webhooks (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					url TEXT NOT NULL,
					secret TEXT NOT NULL DEFAULT '',
					events_json TEXT NOT NULL DEFAULT '[]',
					enabled INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
	}
}
