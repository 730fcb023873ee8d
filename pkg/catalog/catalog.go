package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/masterhub/marketplace-client/pkg/feed"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// API endpoint paths.
const (
	EndpointServices    = "/v1/services/"
	EndpointSpecialists = "/v1/specialists/"
	EndpointTeams       = "/v1/teams/"
	EndpointOrders      = "/v1/orders/"
)

// Getter performs GET requests against the marketplace API.
// *client.Client satisfies this interface.
type Getter interface {
	Get(ctx context.Context, endpoint string) (*http.Response, error)
}

// Catalog provides typed access to the marketplace list endpoints.
type Catalog struct {
	api    Getter
	logger zerolog.Logger
}

// New creates a catalog over the given API client.
func New(api Getter) *Catalog {
	if api == nil {
		panic("catalog: nil api client")
	}
	return &Catalog{
		api:    api,
		logger: log.With().Str("component", "catalog").Logger(),
	}
}

// envelope is the wire format shared by all paginated list endpoints.
type envelope[T any] struct {
	Data       []T `json:"data"`
	Pagination struct {
		Page        int  `json:"page"`
		HasNextPage bool `json:"hasNextPage"`
		TotalPages  int  `json:"totalPages,omitempty"`
	} `json:"pagination"`
}

// listPage fetches and decodes one page of a list endpoint.
func listPage[T any](ctx context.Context, c *Catalog, endpoint string, params ListParams) (feed.PageData[T], error) {
	var zero feed.PageData[T]

	resp, err := c.api.Get(ctx, endpoint+params.Encode())
	if err != nil {
		return zero, fmt.Errorf("list %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return zero, fmt.Errorf("list %s: unexpected status %d: %s", endpoint, resp.StatusCode, body)
	}

	var env envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return zero, fmt.Errorf("list %s: decode response: %w", endpoint, err)
	}

	page := env.Pagination.Page
	if page == 0 {
		// Some endpoints omit the echo; trust the requested page.
		page = params.Page
		if page == 0 {
			page = 1
		}
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("page", page).
		Int("items", len(env.Data)).
		Bool("has_next", env.Pagination.HasNextPage).
		Msg("Fetched list page")

	return feed.PageData[T]{
		Page:        page,
		HasNextPage: env.Pagination.HasNextPage,
		TotalPages:  env.Pagination.TotalPages,
		Items:       env.Data,
	}, nil
}

// ListServices fetches one page of service listings.
func (c *Catalog) ListServices(ctx context.Context, params ListParams) (feed.PageData[Service], error) {
	return listPage[Service](ctx, c, EndpointServices, params)
}

// ListSpecialists fetches one page of specialist profiles.
func (c *Catalog) ListSpecialists(ctx context.Context, params ListParams) (feed.PageData[Specialist], error) {
	return listPage[Specialist](ctx, c, EndpointSpecialists, params)
}

// ListTeams fetches one page of teams.
func (c *Catalog) ListTeams(ctx context.Context, params ListParams) (feed.PageData[Team], error) {
	return listPage[Team](ctx, c, EndpointTeams, params)
}

// ListOrders fetches one page of the user's orders.
func (c *Catalog) ListOrders(ctx context.Context, params ListParams) (feed.PageData[Order], error) {
	return listPage[Order](ctx, c, EndpointOrders, params)
}
