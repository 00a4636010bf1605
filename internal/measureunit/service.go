// Package measureunit reads product measure units.
package measureunit

import (
	"context"
	"errors"

	"github.com/monite/monite-sdk-go/internal/monite"
	"github.com/monite/monite-sdk-go/internal/query"
)

var KeyMeasureUnits = query.Key{"measure_units"}

// ErrMissingID is returned for an empty id; no request is made.
var ErrMissingID = errors.New("measure unit id is not provided")

// API is implemented by *monite.MeasureUnitsService.
type API interface {
	GetByID(ctx context.Context, id string) (*monite.UnitResponse, error)
}

type Service struct {
	api     API
	queries *query.Client
}

func NewService(api API, queries *query.Client) *Service {
	return &Service{api: api, queries: queries}
}

// Get returns the measure unit id.
func (s *Service) Get(ctx context.Context, id string) (*monite.UnitResponse, error) {
	unit, err := query.Fetch(ctx, s.queries, KeyMeasureUnits.With(id), func(ctx context.Context) (*monite.UnitResponse, error) {
		return s.api.GetByID(ctx, id)
	}, query.Enabled(id != ""))
	if errors.Is(err, query.ErrDisabled) {
		return nil, ErrMissingID
	}
	return unit, err
}
