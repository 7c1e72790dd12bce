package mediaresolve

import "testing"

func TestMatchesEpisode(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		season  int
		episode int
		want    bool
	}{
		{"exact code", "Show.S02E05.1080p.mkv", 2, 5, true},
		{"other episode", "Show.S02E03.mkv", 2, 5, false},
		{"season pack", "Show.S02.Complete.mkv", 2, 5, true},
		{"range includes", "Show.S02E01-E10.mkv", 2, 5, true},
		{"range without second E", "Show.S02E01-10.1080p", 2, 5, true},
		{"range excludes", "Show.S02E06-E10.mkv", 2, 5, false},
		{"cross notation", "Show 2x05 HDTV", 2, 5, true},
		{"cross notation other", "Show 2x06 HDTV", 2, 5, false},
		{"season phrase", "Show Season 2 1080p WEB", 2, 5, true},
		{"season phrase wrong season", "Show Season 3 1080p WEB", 2, 5, false},
		{"other season pack", "Show.S03.1080p", 2, 5, false},
		{"multi season pack", "Show S01-S04 Complete", 2, 5, true},
		{"long phrase", "Show Season 2 Episode 5", 2, 5, true},
		{"dotted code", "Show.S02.E05.mkv", 2, 5, true},
		{"dotted code other", "Show.S02.E06.mkv", 2, 5, false},
		{"resolution is not an episode", "Show.S02.1920x1080", 2, 5, true},
		{"audio layout before codec", "Show.S02.1080p.DDP5.1x264-GRP", 2, 5, true},
		{"audio layout before hevc", "Show.S02.2160p.AAC2.0x265", 2, 5, true},
		{"no markers", "Show.1080p.WEB", 2, 5, false},
		{"empty", "", 2, 5, false},
		{"leading zeroes", "Show.S2E5.mkv", 2, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesEpisode(tt.title, tt.season, tt.episode); got != tt.want {
				t.Fatalf("MatchesEpisode(%q, %d, %d) = %v, want %v", tt.title, tt.season, tt.episode, got, tt.want)
			}
		})
	}
}
