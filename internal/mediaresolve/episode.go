package mediaresolve

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// S02E05, s2.e5, S02 E05
	seasonEpisodePattern = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])s(\d{1,3})[ ._-]?e(\d{1,4})`)
	// 2x05
	crossEpisodePattern = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(\d{1,2})x(\d{1,3})(?:$|[^a-z0-9])`)
	// Season 2 Episode 5
	longEpisodePattern = regexp.MustCompile(`(?i)season[ ._-]?(\d{1,3})[ ._-]?episode[ ._-]?(\d{1,4})`)
	// S02E01-E10, S02E01-10
	episodeRangePattern = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])s(\d{1,3})[ ._-]?e(\d{1,4})[ ._]?-[ ._]?e?(\d{1,4})`)
	// bare S02 token, inspected manually because RE2 has no lookahead
	seasonTokenPattern = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])s(\d{1,3})`)
	// S01-S03
	seasonRangePattern = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])s(\d{1,3})[ ._]?-[ ._]?s(\d{1,3})`)
	seasonWordPattern  = regexp.MustCompile(`(?i)season[ ._-]?(\d{1,3})`)
)

// MatchesEpisode reports whether a release title can contain the requested episode: either the
// exact episode, or a season pack for that season whose explicit episode range (if any) covers it.
func MatchesEpisode(title string, season, episode int) bool {
	text := foldText(title)
	if strings.TrimSpace(text) == "" {
		return false
	}

	rangeMismatch := false
	for _, m := range episodeRangePattern.FindAllStringSubmatch(text, -1) {
		s, from, to := atoi(m[1]), atoi(m[2]), atoi(m[3])
		if s != season {
			continue
		}
		if from <= episode && episode <= to {
			return true
		}
		rangeMismatch = true
	}

	codes := episodeCodes(text)
	for _, code := range codes {
		if code.Season == season && code.Episode == episode {
			return true
		}
	}
	if rangeMismatch || len(codes) > 0 {
		return false
	}

	return isSeasonPack(text, season)
}

// episodeCodes returns every explicit season/episode pair in text.
func episodeCodes(text string) []EpisodeCode {
	var codes []EpisodeCode
	for _, pattern := range []*regexp.Regexp{seasonEpisodePattern, crossEpisodePattern, longEpisodePattern} {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			// 5.1x264 is an audio layout followed by a codec
			if pattern == crossEpisodePattern && isCodecNumber(m[2]) {
				continue
			}
			codes = append(codes, EpisodeCode{Season: atoi(m[1]), Episode: atoi(m[2])})
		}
	}
	return codes
}

func isSeasonPack(text string, season int) bool {
	for _, loc := range seasonTokenPattern.FindAllStringSubmatchIndex(text, -1) {
		if atoi(text[loc[2]:loc[3]]) != season {
			continue
		}
		rest := text[loc[3]:]
		if rest != "" && isDigit(rest[0]) {
			continue
		}
		if len(rest) > 0 && strings.ContainsRune(" ._-", rune(rest[0])) {
			rest = rest[1:]
		}
		if len(rest) >= 2 && (rest[0] == 'e' || rest[0] == 'E') && isDigit(rest[1]) {
			continue
		}
		return true
	}

	for _, m := range seasonRangePattern.FindAllStringSubmatch(text, -1) {
		if from, to := atoi(m[1]), atoi(m[2]); from <= season && season <= to {
			return true
		}
	}

	for _, m := range seasonWordPattern.FindAllStringSubmatch(text, -1) {
		if atoi(m[1]) == season {
			return true
		}
	}
	return false
}

func isCodecNumber(s string) bool {
	return s == "264" || s == "265"
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
