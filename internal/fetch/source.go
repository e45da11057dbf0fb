package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rickgao/quotehub/internal/api"
	"github.com/rickgao/quotehub/internal/model"
)

//go:generate mockgen -source=source.go -destination=mock_source_test.go -package=fetch

// Source returns a quote for a symbol or an error.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (model.Quote, error)
}

// ErrInvalidQuote is wrapped when a source returns a quote that fails validation.
var ErrInvalidQuote = errors.New("invalid quote")

// SourceError records one source's failure for a symbol.
type SourceError struct {
	Source string
	Symbol string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("fetch %s from %s: %v", e.Symbol, e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// PrimarySource adapts an api.Client speaking the primary quote schema.
type PrimarySource struct {
	client *api.Client
}

// NewPrimarySource creates a primary source.
func NewPrimarySource(client *api.Client) *PrimarySource {
	return &PrimarySource{client: client}
}

// Name returns "primary".
func (s *PrimarySource) Name() string { return "primary" }

// Fetch implements Source.
func (s *PrimarySource) Fetch(ctx context.Context, symbol string) (model.Quote, error) {
	resp, err := s.client.GetQuote(ctx, symbol)
	if err != nil {
		return model.Quote{}, err
	}
	return resp.ToModel(symbol)
}

// SecondarySource adapts an api.Client speaking the Global Quote schema.
type SecondarySource struct {
	client *api.Client
}

// NewSecondarySource creates a secondary source.
func NewSecondarySource(client *api.Client) *SecondarySource {
	return &SecondarySource{client: client}
}

// Name returns "secondary".
func (s *SecondarySource) Name() string { return "secondary" }

// Fetch implements Source.
func (s *SecondarySource) Fetch(ctx context.Context, symbol string) (model.Quote, error) {
	resp, err := s.client.GetGlobalQuote(ctx, symbol)
	if err != nil {
		return model.Quote{}, err
	}
	return resp.ToModel(symbol)
}
