package catalog

import (
	"context"
	"fmt"

	"github.com/mkarlsen/stagehand/pkg/tools"
)

// artistSummary trims an artist to the fields search results need.
func artistSummary(a Artist) map[string]interface{} {
	return map[string]interface{}{
		"id":                     a.ID,
		"name":                   a.Name,
		"genres":                 a.Genres,
		"location":               a.Location,
		"typical_venue_capacity": fmt.Sprintf("%d-%d", a.CapacityMin, a.CapacityMax),
	}
}

// venueSummary trims a venue to the fields search results need.
func venueSummary(v Venue) map[string]interface{} {
	return map[string]interface{}{
		"id":            v.ID,
		"name":          v.Name,
		"location":      v.Location,
		"capacity":      v.Capacity,
		"genres_booked": v.GenresBooked,
		"venue_type":    v.VenueType,
	}
}

// semanticCandidates is how many nearest neighbors a semantic tool pulls
// before filters and the result limit are applied.
const semanticCandidates = 50

func stringParam(params map[string]interface{}, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func intParam(params map[string]interface{}, key string) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// RegisterTools adds the catalog tool set to a registry. Handlers close
// over the store; result shapes match what the agent prompts describe.
func (s *Store) RegisterTools(reg *tools.Registry) error {
	defs := []tools.Definition{
		{
			Name:        "search_artists",
			Description: "Search for artists by genre, location, or typical venue capacity.",
			Parameters: []tools.Parameter{
				{Name: "genre", Type: "string", Description: "Genre to filter by, e.g. 'rock' or 'folk'"},
				{Name: "location", Type: "string", Description: "City or region, e.g. 'Boston'"},
				{Name: "max_venue_capacity", Type: "integer", Description: "Only artists comfortable at or below this room size"},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				artists, err := s.SearchArtists(ctx, ArtistQuery{
					Genre:            stringParam(params, "genre"),
					Location:         stringParam(params, "location"),
					MaxVenueCapacity: intParam(params, "max_venue_capacity"),
				})
				if err != nil {
					return nil, err
				}
				out := make([]map[string]interface{}, 0, len(artists))
				for _, a := range artists {
					out = append(out, artistSummary(a))
				}
				return out, nil
			},
		},
		{
			Name:        "get_artist_details",
			Description: "Get full details for an artist by ID, including bio and booking contact.",
			Parameters: []tools.Parameter{
				{Name: "artist_id", Type: "string", Description: "Artist ID from a prior search", Required: true},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				id := stringParam(params, "artist_id")
				a, err := s.GetArtist(ctx, id)
				if err != nil {
					return nil, err
				}
				if a == nil {
					return map[string]interface{}{
						"error": fmt.Sprintf("Artist with ID '%s' not found", id),
					}, nil
				}
				return a, nil
			},
		},
		{
			Name:        "search_venues",
			Description: "Search for venues by location, capacity range, or genres booked.",
			Parameters: []tools.Parameter{
				{Name: "location", Type: "string", Description: "City or region, e.g. 'Nashville'"},
				{Name: "min_capacity", Type: "integer", Description: "Minimum room capacity"},
				{Name: "max_capacity", Type: "integer", Description: "Maximum room capacity"},
				{Name: "genre", Type: "string", Description: "Genre the venue books"},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				venues, err := s.SearchVenues(ctx, VenueQuery{
					Location:    stringParam(params, "location"),
					MinCapacity: intParam(params, "min_capacity"),
					MaxCapacity: intParam(params, "max_capacity"),
					Genre:       stringParam(params, "genre"),
				})
				if err != nil {
					return nil, err
				}
				out := make([]map[string]interface{}, 0, len(venues))
				for _, v := range venues {
					out = append(out, venueSummary(v))
				}
				return out, nil
			},
		},
		{
			Name:        "get_venue_details",
			Description: "Get full details for a venue by ID, including booking contact and pay range.",
			Parameters: []tools.Parameter{
				{Name: "venue_id", Type: "string", Description: "Venue ID from a prior search", Required: true},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				id := stringParam(params, "venue_id")
				v, err := s.GetVenue(ctx, id)
				if err != nil {
					return nil, err
				}
				if v == nil {
					return map[string]interface{}{
						"error": fmt.Sprintf("Venue with ID '%s' not found", id),
					}, nil
				}
				return v, nil
			},
		},
		{
			Name:        "semantic_search_artists",
			Description: "Find artists from a natural language description of their vibe, style, or sound. Use this when the user describes the kind of artist they want rather than specific attributes, e.g. 'a chill indie vibe' or 'high-energy rock sound'.",
			Parameters: []tools.Parameter{
				{Name: "description", Type: "string", Description: "Natural language description of the desired artist's vibe, style, or sound", Required: true},
				{Name: "genre", Type: "string", Description: "Optional genre filter to narrow results"},
				{Name: "location", Type: "string", Description: "Optional city or region filter"},
				{Name: "limit", Type: "integer", Description: "Maximum number of results, default 10"},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				limit := intParam(params, "limit")
				if limit <= 0 {
					limit = 10
				}
				matches, err := s.SemanticSearchArtists(ctx, stringParam(params, "description"), semanticCandidates)
				if err != nil {
					return map[string]interface{}{
						"error": "Semantic search is unavailable. Use search_artists with genre or location filters instead.",
					}, nil
				}

				filter := ArtistQuery{
					Genre:    stringParam(params, "genre"),
					Location: stringParam(params, "location"),
				}
				out := make([]map[string]interface{}, 0, limit)
				for _, m := range matches {
					a, err := s.GetArtist(ctx, m.ID)
					if err != nil {
						return nil, err
					}
					if a == nil || !artistMatches(*a, filter) {
						continue
					}
					summary := artistSummary(*a)
					summary["similarity"] = m.Similarity
					out = append(out, summary)
					if len(out) >= limit {
						break
					}
				}
				return out, nil
			},
		},
		{
			Name:        "semantic_search_venues",
			Description: "Find venues from a natural language description of their atmosphere or vibe. Use this when the user describes the kind of venue they want rather than specific attributes, e.g. 'a cozy listening room' or 'legendary rock club'.",
			Parameters: []tools.Parameter{
				{Name: "description", Type: "string", Description: "Natural language description of the desired venue's atmosphere, type, or vibe", Required: true},
				{Name: "location", Type: "string", Description: "Optional city or region filter"},
				{Name: "min_capacity", Type: "integer", Description: "Optional minimum room capacity"},
				{Name: "max_capacity", Type: "integer", Description: "Optional maximum room capacity"},
				{Name: "genre", Type: "string", Description: "Optional genre the venue books"},
				{Name: "limit", Type: "integer", Description: "Maximum number of results, default 10"},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				limit := intParam(params, "limit")
				if limit <= 0 {
					limit = 10
				}
				matches, err := s.SemanticSearchVenues(ctx, stringParam(params, "description"), semanticCandidates)
				if err != nil {
					return map[string]interface{}{
						"error": "Semantic search is unavailable. Use search_venues with location or capacity filters instead.",
					}, nil
				}

				filter := VenueQuery{
					Location:    stringParam(params, "location"),
					MinCapacity: intParam(params, "min_capacity"),
					MaxCapacity: intParam(params, "max_capacity"),
					Genre:       stringParam(params, "genre"),
				}
				out := make([]map[string]interface{}, 0, limit)
				for _, m := range matches {
					v, err := s.GetVenue(ctx, m.ID)
					if err != nil {
						return nil, err
					}
					if v == nil || !venueMatches(*v, filter) {
						continue
					}
					if filter.MinCapacity > 0 && v.Capacity < filter.MinCapacity {
						continue
					}
					if filter.MaxCapacity > 0 && v.Capacity > filter.MaxCapacity {
						continue
					}
					summary := venueSummary(*v)
					summary["similarity"] = m.Similarity
					out = append(out, summary)
					if len(out) >= limit {
						break
					}
				}
				return out, nil
			},
		},
		{
			Name:        "check_availability",
			Description: "Check whether a venue appears open on a given date.",
			Parameters: []tools.Parameter{
				{Name: "venue_id", Type: "string", Description: "Venue ID from a prior search", Required: true},
				{Name: "date", Type: "string", Description: "Date in YYYY-MM-DD form", Required: true},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				return s.CheckAvailability(ctx, stringParam(params, "venue_id"), stringParam(params, "date"))
			},
		},
	}

	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}
