package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS venues (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		logo TEXT NOT NULL DEFAULT '',
		primary_color TEXT NOT NULL DEFAULT '',
		secondary_color TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		venue_id TEXT NOT NULL,
		filter TEXT NOT NULL DEFAULT 'none',
		frame TEXT NOT NULL DEFAULT 'none',
		caption TEXT NOT NULL DEFAULT '',
		original_image BLOB,
		processed_image BLOB,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_photos_venue_created ON photos (venue_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS analytics (
		venue_id TEXT NOT NULL,
		date TEXT NOT NULL,
		total_prints INTEGER NOT NULL DEFAULT 0,
		total_revenue_cents INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (venue_id, date)
	)`,
}

type SQLiteDatabase struct {
	db               *sqlx.DB
	connectionString string
	now              func() time.Time
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sqlx.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
		now:              time.Now,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() (*sqlx.DB, error) {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return nil, err
		}
	}
	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DoesDatabaseExist reports whether the schema has been created.
func (s *SQLiteDatabase) DoesDatabaseExist(ctx context.Context) (bool, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return false, err
	}
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'photos'`)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SQLiteDatabase) GetVenue(ctx context.Context, id string) (*Venue, error) {
	var venue Venue
	err := s.db.GetContext(ctx, &venue, `SELECT id, name, logo, primary_color, secondary_color, contact_email FROM venues WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err, "venue", id)
	}
	return &venue, nil
}

func (s *SQLiteDatabase) UpsertVenue(ctx context.Context, venue *Venue) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO venues (id, name, logo, primary_color, secondary_color, contact_email)
		VALUES (:id, :name, :logo, :primary_color, :secondary_color, :contact_email)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			logo = excluded.logo,
			primary_color = excluded.primary_color,
			secondary_color = excluded.secondary_color,
			contact_email = excluded.contact_email`, venue)
	if err != nil {
		return fmt.Errorf("failed to upsert venue %s: %w", venue.ID, err)
	}
	return nil
}

func (s *SQLiteDatabase) CreatePhoto(ctx context.Context, photo *Photo) (*Photo, error) {
	stored := *photo
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt == 0 {
		stored.CreatedAt = s.now().UnixMilli()
	}

	_, err := s.db.NamedExecContext(ctx, `INSERT INTO photos (id, venue_id, filter, frame, caption, original_image, processed_image, created_at)
		VALUES (:id, :venue_id, :filter, :frame, :caption, :original_image, :processed_image, :created_at)`, &stored)
	if err != nil {
		return nil, fmt.Errorf("failed to insert photo: %w", err)
	}
	return &stored, nil
}

func (s *SQLiteDatabase) GetPhotos(ctx context.Context, venueID string) ([]*Photo, error) {
	photos := []*Photo{}
	err := s.db.SelectContext(ctx, &photos, `SELECT id, venue_id, filter, frame, caption, created_at
		FROM photos WHERE venue_id = ? ORDER BY created_at DESC, id DESC`, venueID)
	if err != nil {
		return nil, err
	}
	return photos, nil
}

func (s *SQLiteDatabase) GetPhotoByID(ctx context.Context, id string) (*Photo, error) {
	var photo Photo
	err := s.db.GetContext(ctx, &photo, `SELECT id, venue_id, filter, frame, caption, created_at
		FROM photos WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err, "photo", id)
	}
	return &photo, nil
}

func (s *SQLiteDatabase) GetProcessedImageByID(ctx context.Context, id string) ([]byte, error) {
	var processed []byte
	if err := s.db.GetContext(ctx, &processed, "SELECT processed_image FROM photos WHERE id = ?", id); err != nil {
		return nil, notFound(err, "photo", id)
	}
	return processed, nil
}

func (s *SQLiteDatabase) DeletePhoto(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM photos WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("photo %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteDatabase) AddPrints(ctx context.Context, venueID, date string, prints int, revenueCents int64) error {
	if prints < 0 || revenueCents < 0 {
		return fmt.Errorf("analytics counters cannot decrease (prints=%d, revenue=%d)", prints, revenueCents)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO analytics (venue_id, date, total_prints, total_revenue_cents)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(venue_id, date) DO UPDATE SET
			total_prints = total_prints + excluded.total_prints,
			total_revenue_cents = total_revenue_cents + excluded.total_revenue_cents`,
		venueID, date, prints, revenueCents)
	if err != nil {
		return fmt.Errorf("failed to record prints for %s on %s: %w", venueID, date, err)
	}
	return nil
}

func (s *SQLiteDatabase) GetDailyAnalytics(ctx context.Context, venueID, fromDate, toDate string) ([]DailyAnalytics, error) {
	days := []DailyAnalytics{}
	err := s.db.SelectContext(ctx, &days, `SELECT venue_id, date, total_prints, total_revenue_cents
		FROM analytics WHERE venue_id = ? AND date >= ? AND date <= ? ORDER BY date`, venueID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	return days, nil
}

func (s *SQLiteDatabase) GetAnalyticsTotals(ctx context.Context, venueID string) (AnalyticsTotals, error) {
	var totals AnalyticsTotals
	err := s.db.GetContext(ctx, &totals, `SELECT COALESCE(SUM(total_prints), 0) AS total_prints,
		COALESCE(SUM(total_revenue_cents), 0) AS total_revenue_cents
		FROM analytics WHERE venue_id = ?`, venueID)
	return totals, err
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return err
}
