package catalog

// SeedArtists is the built-in artist inventory for demo deployments.
var SeedArtists = []Artist{
	{
		ID:       "artist_1",
		Name:     "The Midnight Riders",
		Genres:   []string{"Rock", "Indie Rock", "Alternative"},
		Location: "Boston, MA",
		Bio:      "High-energy rock band with a loyal following. Known for explosive live performances and original songwriting.",
		SocialLinks: map[string]string{
			"instagram": "@midnightriders",
			"spotify":   "spotify.com/artist/midnightriders",
		},
		CapacityMin:  200,
		CapacityMax:  500,
		YearsActive:  5,
		BookingEmail: "booking@midnightriders.com",
	},
	{
		ID:       "artist_2",
		Name:     "Sarah Chen",
		Genres:   []string{"Folk", "Singer-Songwriter", "Acoustic"},
		Location: "Nashville, TN",
		Bio:      "Intimate storyteller with haunting vocals. Perfect for listening rooms and acoustic venues.",
		SocialLinks: map[string]string{
			"instagram": "@sarahchenmusic",
			"website":   "sarahchenmusic.com",
		},
		CapacityMin:  50,
		CapacityMax:  200,
		YearsActive:  8,
		BookingEmail: "booking@sarahchenmusic.com",
	},
	{
		ID:       "artist_3",
		Name:     "DJ Neon Pulse",
		Genres:   []string{"Electronic", "House", "Techno"},
		Location: "Boston, MA",
		Bio:      "Genre-bending electronic producer and DJ. Brings the dance floor to life with cutting-edge beats.",
		SocialLinks: map[string]string{
			"soundcloud": "soundcloud.com/neonpulse",
			"instagram":  "@djneonpulse",
		},
		CapacityMin:  300,
		CapacityMax:  1000,
		YearsActive:  6,
		BookingEmail: "bookings@neonpulse.net",
	},
	{
		ID:       "artist_4",
		Name:     "The Bluegrass Collective",
		Genres:   []string{"Bluegrass", "Country", "Americana"},
		Location: "Nashville, TN",
		Bio:      "Traditional bluegrass quartet with modern sensibilities. Perfect for festivals and honky-tonks.",
		SocialLinks: map[string]string{
			"facebook": "facebook.com/bluegrasscollective",
			"website":  "bluegrasscollective.com",
		},
		CapacityMin:  100,
		CapacityMax:  400,
		YearsActive:  12,
		BookingEmail: "book@bluegrasscollective.com",
	},
	{
		ID:       "artist_5",
		Name:     "Velvet Underground Jazz Trio",
		Genres:   []string{"Jazz", "Bebop", "Contemporary Jazz"},
		Location: "Boston, MA",
		Bio:      "Sophisticated jazz trio with a modern edge. Great for upscale venues and jazz clubs.",
		SocialLinks: map[string]string{
			"instagram": "@velvetjazz",
			"spotify":   "spotify.com/artist/velvetjazz",
		},
		CapacityMin:  80,
		CapacityMax:  250,
		YearsActive:  10,
		BookingEmail: "contact@velvetjazz.com",
	},
	{
		ID:       "artist_6",
		Name:     "The Punk Revival",
		Genres:   []string{"Punk", "Punk Rock", "Hardcore"},
		Location: "Boston, MA",
		Bio:      "Fast, loud, and unapologetic. Classic punk energy with a fresh attitude.",
		SocialLinks: map[string]string{
			"instagram": "@punkrevival",
			"bandcamp":  "punkrevival.bandcamp.com",
		},
		CapacityMin:  150,
		CapacityMax:  400,
		YearsActive:  3,
		BookingEmail: "shows@punkrevival.com",
	},
	{
		ID:       "artist_7",
		Name:     "Luna Rodriguez",
		Genres:   []string{"R&B", "Soul", "Neo-Soul"},
		Location: "Nashville, TN",
		Bio:      "Smooth vocals meet contemporary R&B. Creates an intimate, sophisticated atmosphere.",
		SocialLinks: map[string]string{
			"instagram": "@lunarodriguezmusic",
			"spotify":   "spotify.com/artist/lunarodriguez",
			"tiktok":    "@lunarodriguezmusic",
		},
		CapacityMin:  200,
		CapacityMax:  600,
		YearsActive:  4,
		BookingEmail: "mgmt@lunarodriguez.com",
	},
	{
		ID:       "artist_8",
		Name:     "The Heavy Hearts",
		Genres:   []string{"Metal", "Hard Rock", "Heavy Metal"},
		Location: "Boston, MA",
		Bio:      "Crushing riffs and powerful vocals. For venues that can handle high volume and energy.",
		SocialLinks: map[string]string{
			"instagram": "@heavyheartsband",
			"youtube":   "youtube.com/@heavyhearts",
		},
		CapacityMin:  300,
		CapacityMax:  800,
		YearsActive:  7,
		BookingEmail: "booking@heavyhearts.net",
	},
	{
		ID:       "artist_9",
		Name:     "Cosmic Country Band",
		Genres:   []string{"Country", "Outlaw Country", "Americana"},
		Location: "Nashville, TN",
		Bio:      "Traditional country with a cosmic twist. Perfect for honky-tonks and dive bars.",
		SocialLinks: map[string]string{
			"instagram": "@cosmiccountry",
			"website":   "cosmiccountryband.com",
		},
		CapacityMin:  150,
		CapacityMax:  500,
		YearsActive:  6,
		BookingEmail: "book@cosmiccountryband.com",
	},
	{
		ID:       "artist_10",
		Name:     "The Indie Dreamers",
		Genres:   []string{"Indie Pop", "Dream Pop", "Indie Rock"},
		Location: "Boston, MA",
		Bio:      "Dreamy melodies and shimmering guitars. Creates an ethereal live experience.",
		SocialLinks: map[string]string{
			"instagram": "@indiedreamers",
			"spotify":   "spotify.com/artist/indiedreamers",
		},
		CapacityMin:  100,
		CapacityMax:  300,
		YearsActive:  4,
		BookingEmail: "contact@indiedreamers.com",
	},
	{
		ID:       "artist_11",
		Name:     "The Hip-Hop Collective",
		Genres:   []string{"Hip-Hop", "Rap", "Conscious Hip-Hop"},
		Location: "Boston, MA",
		Bio:      "Thought-provoking lyrics with boom-bap beats. High-energy live shows with crowd participation.",
		SocialLinks: map[string]string{
			"instagram":  "@hiphopcollab",
			"soundcloud": "soundcloud.com/hiphopcollab",
		},
		CapacityMin:  250,
		CapacityMax:  700,
		YearsActive:  5,
		BookingEmail: "booking@hiphopcollab.com",
	},
	{
		ID:       "artist_12",
		Name:     "Emily & The Wildcards",
		Genres:   []string{"Folk Rock", "Americana", "Country"},
		Location: "Nashville, TN",
		Bio:      "Heartfelt storytelling with a rock edge. Full band energy with folk sensibilities.",
		SocialLinks: map[string]string{
			"instagram": "@emilywildcards",
			"website":   "emilywildcards.com",
		},
		CapacityMin:  200,
		CapacityMax:  500,
		YearsActive:  8,
		BookingEmail: "management@emilywildcards.com",
	},
}

// SeedVenues is the built-in venue inventory for demo deployments.
var SeedVenues = []Venue{
	{
		ID:             "venue_1",
		Name:           "The Paradise Rock Club",
		Location:       "Boston, MA",
		Capacity:       933,
		GenresBooked:   []string{"Rock", "Indie Rock", "Alternative", "Punk"},
		BookingContact: "booking@paradiserock.com",
		PayRange:       "$800-2000",
		VenueType:      "club",
		Ages:           "18+",
		Description:    "Legendary Boston venue known for launching careers. Great sound system and intimate atmosphere.",
	},
	{
		ID:             "venue_2",
		Name:           "Club Passim",
		Location:       "Boston, MA",
		Capacity:       115,
		GenresBooked:   []string{"Folk", "Singer-Songwriter", "Acoustic", "Americana"},
		BookingContact: "booking@clubpassim.org",
		PayRange:       "$300-800",
		VenueType:      "listening room",
		Ages:           "all ages",
		Description:    "Intimate listening room with impeccable acoustics. Perfect for singer-songwriters and acoustic acts.",
	},
	{
		ID:             "venue_3",
		Name:           "The Bluebird Cafe",
		Location:       "Nashville, TN",
		Capacity:       90,
		GenresBooked:   []string{"Country", "Singer-Songwriter", "Americana", "Folk"},
		BookingContact: "calendar@bluebirdcafe.com",
		PayRange:       "$200-600",
		VenueType:      "listening room",
		Ages:           "all ages",
		Description:    "Iconic Nashville venue where songwriters shine. Known for in-the-round performances.",
	},
	{
		ID:             "venue_4",
		Name:           "Royale Nightclub",
		Location:       "Boston, MA",
		Capacity:       1200,
		GenresBooked:   []string{"Electronic", "House", "Hip-Hop", "Pop"},
		BookingContact: "talent@royaleboston.com",
		PayRange:       "$1500-5000",
		VenueType:      "nightclub",
		Ages:           "21+",
		Description:    "Premier nightclub with state-of-the-art sound and lighting. Perfect for DJ sets and electronic acts.",
	},
	{
		ID:             "venue_5",
		Name:           "The Station Inn",
		Location:       "Nashville, TN",
		Capacity:       200,
		GenresBooked:   []string{"Bluegrass", "Country", "Americana", "Folk"},
		BookingContact: "booking@stationinn.com",
		PayRange:       "$400-1000",
		VenueType:      "honky-tonk",
		Ages:           "21+",
		Description:    "Nashville's premier bluegrass venue. Authentic atmosphere and dedicated bluegrass fans.",
	},
	{
		ID:             "venue_6",
		Name:           "Scullers Jazz Club",
		Location:       "Boston, MA",
		Capacity:       200,
		GenresBooked:   []string{"Jazz", "Contemporary Jazz", "Blues", "Soul"},
		BookingContact: "info@scullersjazz.com",
		PayRange:       "$500-1500",
		VenueType:      "jazz club",
		Ages:           "21+",
		Description:    "Upscale jazz venue with waterfront views. Dinner and drinks with world-class jazz.",
	},
	{
		ID:             "venue_7",
		Name:           "The Sinclair",
		Location:       "Boston, MA",
		Capacity:       525,
		GenresBooked:   []string{"Indie Rock", "Alternative", "Rock", "Pop"},
		BookingContact: "booking@sinclaircambridge.com",
		PayRange:       "$1000-3000",
		VenueType:      "club",
		Ages:           "18+",
		Description:    "Modern venue in Harvard Square. Great production capabilities and excellent sightlines.",
	},
	{
		ID:             "venue_8",
		Name:           "Exit/In",
		Location:       "Nashville, TN",
		Capacity:       500,
		GenresBooked:   []string{"Rock", "Indie Rock", "Alternative", "Punk", "Metal"},
		BookingContact: "booking@exitin.com",
		PayRange:       "$700-2000",
		VenueType:      "club",
		Ages:           "18+",
		Description:    "Historic Nashville venue with a rock and roll heart. Diverse bookings and loyal crowds.",
	},
	{
		ID:             "venue_9",
		Name:           "The Middle East - Downstairs",
		Location:       "Boston, MA",
		Capacity:       194,
		GenresBooked:   []string{"Punk", "Metal", "Hardcore", "Alternative"},
		BookingContact: "booking@mideastoffers.com",
		PayRange:       "$400-1000",
		VenueType:      "club",
		Ages:           "18+",
		Description:    "Legendary underground venue. Perfect for punk, metal, and high-energy alternative acts.",
	},
	{
		ID:             "venue_10",
		Name:           "The Basement",
		Location:       "Nashville, TN",
		Capacity:       600,
		GenresBooked:   []string{"Rock", "Indie Rock", "Alternative", "Electronic", "Hip-Hop"},
		BookingContact: "talent@thebasementnashville.com",
		PayRange:       "$800-2500",
		VenueType:      "club",
		Ages:           "18+",
		Description:    "Nashville's eclectic music venue. Books diverse acts and creates memorable experiences.",
	},
	{
		ID:             "venue_11",
		Name:           "Brighton Music Hall",
		Location:       "Boston, MA",
		Capacity:       380,
		GenresBooked:   []string{"Indie Rock", "Alternative", "Pop", "Electronic"},
		BookingContact: "booking@brightonmusichall.com",
		PayRange:       "$600-1800",
		VenueType:      "club",
		Ages:           "18+",
		Description:    "Mid-sized venue with great energy. Perfect stepping stone for growing indie acts.",
	},
	{
		ID:             "venue_12",
		Name:           "The Ryman Auditorium",
		Location:       "Nashville, TN",
		Capacity:       2362,
		GenresBooked:   []string{"Country", "Americana", "Folk", "Bluegrass", "Rock"},
		BookingContact: "booking@ryman.com",
		PayRange:       "$5000-15000",
		VenueType:      "theater",
		Ages:           "all ages",
		Description:    "The Mother Church of Country Music. Legendary acoustics and historic significance.",
	},
	{
		ID:             "venue_13",
		Name:           "The Beehive",
		Location:       "Boston, MA",
		Capacity:       150,
		GenresBooked:   []string{"Jazz", "Soul", "R&B", "Blues"},
		BookingContact: "events@beehiveboston.com",
		PayRange:       "$400-1000",
		VenueType:      "bar",
		Ages:           "21+",
		Description:    "Bohemian restaurant and bar with live music. Great for jazz, soul, and R&B acts.",
	},
	{
		ID:             "venue_14",
		Name:           "3rd and Lindsley",
		Location:       "Nashville, TN",
		Capacity:       550,
		GenresBooked:   []string{"Blues", "Rock", "Soul", "R&B", "Americana"},
		BookingContact: "booking@3rdandlindsley.com",
		PayRange:       "$800-2000",
		VenueType:      "club",
		Ages:           "18+",
		Description:    "Premier listening room and grill. Known for excellent sound and diverse bookings.",
	},
}

// Seed loads the built-in inventory. Existing rows with the same IDs are
// replaced, so seeding is idempotent.
func (s *Store) Seed() error {
	for _, a := range SeedArtists {
		if err := s.UpsertArtist(a); err != nil {
			return err
		}
	}
	for _, v := range SeedVenues {
		if err := s.UpsertVenue(v); err != nil {
			return err
		}
	}
	s.logger.Info().
		Int("artists", len(SeedArtists)).
		Int("venues", len(SeedVenues)).
		Msg("catalog seeded")
	return nil
}
