package database

type Venue struct {
	ID             string `db:"id"`
	Name           string `db:"name"`
	Logo           string `db:"logo"`
	PrimaryColor   string `db:"primary_color"`
	SecondaryColor string `db:"secondary_color"`
	ContactEmail   string `db:"contact_email"`
}

type Photo struct {
	ID             string `db:"id"`
	VenueID        string `db:"venue_id"`
	Filter         string `db:"filter"`
	Frame          string `db:"frame"`
	Caption        string `db:"caption"`
	OriginalImage  []byte `db:"original_image"`  // PNG image data stored as binary
	ProcessedImage []byte `db:"processed_image"` // PNG image data stored as binary
	CreatedAt      int64  `db:"created_at"`      // unix milliseconds
}

// DailyAnalytics is one venue's print counters for one calendar day (YYYY-MM-DD)
type DailyAnalytics struct {
	VenueID           string `db:"venue_id"`
	Date              string `db:"date"`
	TotalPrints       int64  `db:"total_prints"`
	TotalRevenueCents int64  `db:"total_revenue_cents"`
}

type AnalyticsTotals struct {
	TotalPrints       int64 `db:"total_prints"`
	TotalRevenueCents int64 `db:"total_revenue_cents"`
}
