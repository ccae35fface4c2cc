package core

import (
	"context"
	"fmt"

	"github.com/jo-hoe/gophotobooth/internal/backend/database"
)

// VenueUpdate carries the editable venue fields; empty fields keep their value
type VenueUpdate struct {
	Name           string
	Logo           string
	PrimaryColor   string
	SecondaryColor string
	ContactEmail   string
}

func (service *CoreService) GetVenue(ctx context.Context) (*database.Venue, error) {
	return service.databaseService.GetVenue(ctx, service.config.Venue.ID)
}

func (service *CoreService) UpdateVenue(ctx context.Context, update VenueUpdate) (*database.Venue, error) {
	venue, err := service.GetVenue(ctx)
	if err != nil {
		return nil, err
	}
	apply := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	apply(&venue.Name, update.Name)
	apply(&venue.Logo, update.Logo)
	apply(&venue.PrimaryColor, update.PrimaryColor)
	apply(&venue.SecondaryColor, update.SecondaryColor)
	apply(&venue.ContactEmail, update.ContactEmail)

	if err := service.databaseService.UpsertVenue(ctx, venue); err != nil {
		return nil, fmt.Errorf("failed to update venue: %w", err)
	}
	return venue, nil
}
