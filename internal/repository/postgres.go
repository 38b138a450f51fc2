package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// NewPostgresDB creates and initializes a PostgreSQL database connection
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cameras (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		url_hash TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		rotation TEXT NOT NULL DEFAULT 'none',
		day_counter_start_date TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS images (
		id TEXT PRIMARY KEY,
		camera_id TEXT NOT NULL REFERENCES cameras(id) ON DELETE CASCADE,
		filename TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_size_bytes BIGINT NOT NULL,
		width INTEGER,
		height INTEGER,
		format TEXT NOT NULL,
		day_number INTEGER,
		captured_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_images_camera_id ON images(camera_id);
	CREATE INDEX IF NOT EXISTS idx_images_captured_at ON images(captured_at);

	CREATE TABLE IF NOT EXISTS timelapse_batches (
		id TEXT PRIMARY KEY,
		camera_id TEXT NOT NULL REFERENCES cameras(id) ON DELETE CASCADE,
		batch_type TEXT NOT NULL,
		status TEXT NOT NULL,
		generation_mode TEXT NOT NULL,
		total_frames INTEGER NOT NULL DEFAULT 0,
		frame_rate INTEGER NOT NULL DEFAULT 30,
		output_path TEXT,
		file_size_bytes BIGINT NOT NULL DEFAULT 0,
		error_message TEXT,
		started_at TIMESTAMP,
		completed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_batches_camera_id ON timelapse_batches(camera_id);
	CREATE INDEX IF NOT EXISTS idx_batches_status ON timelapse_batches(status);

	CREATE TABLE IF NOT EXISTS capture_attempts (
		id TEXT PRIMARY KEY,
		camera_id TEXT NOT NULL REFERENCES cameras(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		image_id TEXT REFERENCES images(id),
		error_message TEXT,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		attempted_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_camera_id ON capture_attempts(camera_id);
	CREATE INDEX IF NOT EXISTS idx_attempts_attempted_at ON capture_attempts(attempted_at);
	`

	_, err := db.Exec(schema)
	return err
}
