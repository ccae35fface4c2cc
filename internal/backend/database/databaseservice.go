package database

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("record not found")

type DatabaseService interface {
	CreateDatabase() (*sqlx.DB, error)
	DoesDatabaseExist(ctx context.Context) (bool, error)
	Close() error

	GetVenue(ctx context.Context, id string) (*Venue, error)
	UpsertVenue(ctx context.Context, venue *Venue) error

	// CreatePhoto stores original and processed image together; ID and CreatedAt are assigned when empty.
	CreatePhoto(ctx context.Context, photo *Photo) (*Photo, error)
	// GetPhotos lists a venue's photos newest first, without image data.
	GetPhotos(ctx context.Context, venueID string) ([]*Photo, error)
	// GetPhotoByID returns the photo's metadata; image bytes come from GetProcessedImageByID.
	GetPhotoByID(ctx context.Context, id string) (*Photo, error)
	GetProcessedImageByID(ctx context.Context, id string) ([]byte, error)
	DeletePhoto(ctx context.Context, id string) error

	// AddPrints adds to the day's counters, creating the row on first use.
	AddPrints(ctx context.Context, venueID, date string, prints int, revenueCents int64) error
	GetDailyAnalytics(ctx context.Context, venueID, fromDate, toDate string) ([]DailyAnalytics, error)
	GetAnalyticsTotals(ctx context.Context, venueID string) (AnalyticsTotals, error)
}
