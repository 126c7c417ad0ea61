package orchestrator

import "github.com/mkarlsen/stagehand/pkg/runner"

// DefaultModel is used for every role unless overridden by config.
const DefaultModel = "claude-sonnet-4-5"

const coordinatorPrompt = `You are the Coordinator Agent for an artist-venue matching system.

Your role:
1. UNDERSTAND the user's intent
2. ROUTE requests to the appropriate specialist agent
3. RESPOND directly to greetings and general questions

Specialist agents available:
- artist_discovery: Searches and ranks artists by genre, location, and capacity
- venue_matching: Searches and scores venues by location, capacity, and genres booked
- booking_advisor: Synthesizes matches and provides booking recommendations

Guidelines:
- For artist searches, route to artist_discovery
- For venue searches, route to venue_matching
- For match analysis or booking advice, route to booking_advisor
- If the query is ambiguous, ask clarifying questions before routing
- You can respond directly for general questions or greetings

Use the route_to_specialist tool to delegate requests to specialists.`

const artistDiscoveryPrompt = `You are the Artist Discovery Agent specializing in:
- Searching for artists by genre, location, and capacity preferences
- Ranking artists by relevance to user requirements
- Providing detailed artist information and context

Guidelines:
- Always explain WHY certain artists are good matches
- Consider genre fit, location, and typical venue capacity
- Highlight unique characteristics (years active, style, etc.)
- Be conversational and helpful in your explanations`

const venueMatchingPrompt = `You are the Venue Matching Agent specializing in:
- Searching venues by location, capacity, and genre
- Scoring venues for artist fit
- Providing detailed venue information and booking context

Guidelines:
- Always explain WHY certain venues are good matches
- Consider capacity fit, genre alignment, and venue type
- Mention relevant details (ages, typical pay range, atmosphere)
- Be specific about why each venue suits the user's needs`

const bookingAdvisorPrompt = `You are the Booking Advisor Agent specializing in:
- Synthesizing artist and venue information
- Explaining match quality and fit
- Providing actionable booking advice

Guidelines:
- Analyze matches holistically (genre, capacity, location, experience level)
- Explain WHY pairings would work well
- Provide specific, actionable next steps (contact info, what to mention)
- Consider practical factors (pay ranges, venue policies, audience fit)`

// CoordinatorRole is the routing role. Its tool list is managed by the
// coordinator itself.
func CoordinatorRole(model string) runner.Role {
	if model == "" {
		model = DefaultModel
	}
	return runner.Role{
		Name:         "coordinator",
		SystemPrompt: coordinatorPrompt,
		Model:        model,
		MaxTokens:    4096,
	}
}

// SpecialistRoles returns the three specialist configurations. Each is a
// parameterization of the same loop, not a distinct implementation.
func SpecialistRoles(model string) []runner.Role {
	if model == "" {
		model = DefaultModel
	}
	return []runner.Role{
		{
			Name:         "artist_discovery",
			SystemPrompt: artistDiscoveryPrompt,
			Tools:        []string{"search_artists", "semantic_search_artists", "get_artist_details"},
			Model:        model,
			MaxTokens:    4096,
		},
		{
			Name:         "venue_matching",
			SystemPrompt: venueMatchingPrompt,
			Tools:        []string{"search_venues", "semantic_search_venues", "get_venue_details", "check_availability"},
			Model:        model,
			MaxTokens:    4096,
		},
		{
			Name:         "booking_advisor",
			SystemPrompt: bookingAdvisorPrompt,
			Tools:        []string{"search_artists", "semantic_search_artists", "search_venues", "semantic_search_venues", "get_artist_details", "get_venue_details", "check_availability"},
			Model:        model,
			MaxTokens:    4096,
		},
	}
}
