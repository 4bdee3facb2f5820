package router

import (
	"context"

	"github.com/griffinshaw/dealbrief-backend/internal/analytics/types"
)

type fakeWriter struct {
	inserted  []types.MarketplaceEventRow
	insertErr error
}

func (f *fakeWriter) InsertMarketplace(_ context.Context, row types.MarketplaceEventRow) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, row)
	return nil
}
