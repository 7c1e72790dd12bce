package mediaresolve

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

// FileCandidate is one file inside a provider-side torrent.
type FileCandidate struct {
	ID        string
	Path      string
	SizeBytes int64
}

// SelectionHints narrows multi-file selections to a specific episode.
type SelectionHints struct {
	ReleaseTitle  string
	TargetSeason  int
	TargetEpisode int
}

// EpisodeCode captures a parsed SXXEXX code.
type EpisodeCode struct {
	Season  int
	Episode int
}

var (
	videoExtensions = map[string]struct{}{
		".mkv":  {},
		".mp4":  {},
		".m4v":  {},
		".avi":  {},
		".mov":  {},
		".wmv":  {},
		".flv":  {},
		".webm": {},
		".mpg":  {},
		".mpeg": {},
		".ts":   {},
		".m2ts": {},
	}
	extraMarkers = []string{"sample", "trailer", "extra", "behind", "featurette", "bonus"}

	episodeCodePattern   = regexp.MustCompile(`(?i)s(\d{1,2})\s*e(\d{1,3})`)
	episodeAltPattern    = regexp.MustCompile(`(?i)ep(?:isode)?\.?\s*(\d{1,3})`) // "Ep. 01", "Episode 01", "Ep01"
	episodeNumberPattern = regexp.MustCompile(`(?i)[-_\s](\d{1,2})[-_\s\[\.]`)   // " - 01 - ", "_01_", "_01["
)

// IsVideoFile reports whether the path has a playable video extension.
func IsVideoFile(name string) bool {
	_, ok := videoExtensions[strings.ToLower(path.Ext(normalizePath(name)))]
	return ok
}

// IsExtraFile reports whether the file looks like bonus material rather than the main feature.
func IsExtraFile(name string) bool {
	lower := strings.ToLower(normalizePath(name))
	for _, marker := range extraMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func normalizePath(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
}

// SelectVideoFiles returns the IDs of video files larger than minBytes, in input order.
// Used when a provider asks which files of a torrent to fetch.
func SelectVideoFiles(files []FileCandidate, minBytes int64) []string {
	var ids []string
	for _, f := range files {
		if IsVideoFile(f.Path) && f.SizeBytes > minBytes {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

// SelectBestFile picks the file to stream: the requested episode when hints name one,
// otherwise the largest main video file. Returns -1 when nothing playable exists.
func SelectBestFile(files []FileCandidate, hints SelectionHints) (int, string) {
	var videos, main []int
	for idx, f := range files {
		if !IsVideoFile(f.Path) {
			continue
		}
		videos = append(videos, idx)
		if !IsExtraFile(path.Base(normalizePath(f.Path))) {
			main = append(main, idx)
		}
	}
	if len(videos) == 0 {
		return -1, "no playable video files"
	}
	if len(main) == 0 {
		// every video matched an extra marker, e.g. "Extraction.2020.mkv"
		main = videos
	}

	target, hasTarget := EpisodeCode{}, false
	if hints.TargetSeason >= 0 && hints.TargetEpisode > 0 {
		target, hasTarget = EpisodeCode{Season: hints.TargetSeason, Episode: hints.TargetEpisode}, true
	} else if code, ok := ExtractEpisodeCode(hints.ReleaseTitle); ok {
		target, hasTarget = code, true
	}

	if hasTarget {
		for _, idx := range main {
			if CandidateMatchesEpisode(NormalizeReleasePart(files[idx].Path), target) {
				return idx, "episode match"
			}
		}
	}

	best := main[0]
	for _, idx := range main[1:] {
		if files[idx].SizeBytes > files[best].SizeBytes {
			best = idx
		}
	}
	if hasTarget {
		return best, "largest file (no episode match)"
	}
	return best, "largest file"
}

// NormalizeReleasePart reduces a path to its base name without a video extension.
func NormalizeReleasePart(value string) string {
	trimmed := normalizePath(value)
	if trimmed == "" {
		return ""
	}
	base := path.Base(trimmed)
	if base == "." || base == "/" || base == "" {
		base = trimmed
	}
	ext := path.Ext(base)
	if _, ok := videoExtensions[strings.ToLower(ext)]; ok && ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// ExtractEpisodeCode tries to find a season/episode code across multiple strings.
func ExtractEpisodeCode(parts ...string) (EpisodeCode, bool) {
	for _, part := range parts {
		if season, episode, ok := parseEpisodeFromString(part); ok {
			return EpisodeCode{Season: season, Episode: episode}, true
		}
	}
	return EpisodeCode{}, false
}

// CandidateMatchesEpisode checks if the candidate label names the target episode.
func CandidateMatchesEpisode(candidateLabel string, target EpisodeCode) bool {
	for _, code := range episodeCodes(foldText(candidateLabel)) {
		if code == target {
			return true
		}
	}
	season, episode, ok := parseEpisodeFromString(candidateLabel)
	if ok && season == target.Season && episode == target.Episode {
		return true
	}

	// Bare episode numbers only count for season 1: in multi-season packs "- 01" is ambiguous.
	if target.Season == 1 && !ok {
		if episode, ok := parseEpisodeNumber(candidateLabel); ok && episode == target.Episode {
			return true
		}
	}
	return false
}

func parseEpisodeFromString(value string) (int, int, bool) {
	value = foldText(value)
	if strings.TrimSpace(value) == "" {
		return 0, 0, false
	}
	if matches := episodeCodePattern.FindStringSubmatch(value); len(matches) == 3 {
		season, err1 := strconv.Atoi(matches[1])
		episode, err2 := strconv.Atoi(matches[2])
		if err1 == nil && err2 == nil {
			return season, episode, true
		}
	}
	if codes := episodeCodes(value); len(codes) > 0 {
		return codes[0].Season, codes[0].Episode, true
	}
	return 0, 0, false
}

func parseEpisodeNumber(value string) (int, bool) {
	if strings.TrimSpace(value) == "" {
		return 0, false
	}
	if matches := episodeAltPattern.FindStringSubmatch(value); len(matches) == 2 {
		if episode, err := strconv.Atoi(matches[1]); err == nil && episode > 0 {
			return episode, true
		}
	}
	if matches := episodeNumberPattern.FindStringSubmatch(value); len(matches) == 2 {
		if episode, err := strconv.Atoi(matches[1]); err == nil && episode > 0 {
			return episode, true
		}
	}
	return 0, false
}
