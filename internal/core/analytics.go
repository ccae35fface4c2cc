package core

import (
	"context"
	"fmt"
	"time"
)

const analyticsDays = 7

type DayCount struct {
	Date    string `json:"date"`
	ISODate string `json:"isoDate"`
	Count   int64  `json:"count"`
}

type DayAmount struct {
	Date    string  `json:"date"`
	ISODate string  `json:"isoDate"`
	Amount  float64 `json:"amount"`
}

// AnalyticsData summarizes a venue's prints; the daily series cover the
// last seven days in the configured timezone with today last
type AnalyticsData struct {
	TotalPrints  int64       `json:"totalPrints"`
	TotalRevenue float64     `json:"totalRevenue"`
	PrintsByDay  []DayCount  `json:"printsByDay"`
	RevenueByDay []DayAmount `json:"revenueByDay"`
}

func (service *CoreService) GetAnalytics(ctx context.Context) (*AnalyticsData, error) {
	venueID := service.config.Venue.ID
	totals, err := service.databaseService.GetAnalyticsTotals(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load analytics totals: %w", err)
	}

	today := service.now().In(service.location)
	first := today.AddDate(0, 0, -(analyticsDays - 1))
	days, err := service.databaseService.GetDailyAnalytics(ctx, venueID, first.Format(time.DateOnly), today.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to load daily analytics: %w", err)
	}
	byDate := make(map[string]int, len(days))
	for i, d := range days {
		byDate[d.Date] = i
	}

	data := &AnalyticsData{
		TotalPrints:  totals.TotalPrints,
		TotalRevenue: centsToAmount(totals.TotalRevenueCents),
		PrintsByDay:  make([]DayCount, 0, analyticsDays),
		RevenueByDay: make([]DayAmount, 0, analyticsDays),
	}
	for i := 0; i < analyticsDays; i++ {
		day := first.AddDate(0, 0, i)
		iso := day.Format(time.DateOnly)
		label := day.Format("Mon")
		var prints, cents int64
		if idx, ok := byDate[iso]; ok {
			prints = days[idx].TotalPrints
			cents = days[idx].TotalRevenueCents
		}
		data.PrintsByDay = append(data.PrintsByDay, DayCount{Date: label, ISODate: iso, Count: prints})
		data.RevenueByDay = append(data.RevenueByDay, DayAmount{Date: label, ISODate: iso, Amount: centsToAmount(cents)})
	}
	return data, nil
}

func centsToAmount(cents int64) float64 {
	return float64(cents) / 100
}
