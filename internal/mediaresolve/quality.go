package mediaresolve

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

// Quality is a resolution tier. Zero means unknown.
type Quality int

const (
	QualityUnknown Quality = 0
	Quality480     Quality = 480
	Quality720     Quality = 720
	Quality1080    Quality = 1080
	Quality2160    Quality = 2160
)

// qualityKeywords maps whole tokens to tiers. Tokens are compared after folding, so
// "hd" never matches inside "hdr" or "hdts".
var qualityKeywords = map[string]Quality{
	"2160p": Quality2160,
	"4k":    Quality2160,
	"uhd":   Quality2160,
	"1080p": Quality1080,
	"1080i": Quality1080,
	"fhd":   Quality1080,
	"720p":  Quality720,
	"hd":    Quality720,
	"480p":  Quality480,
	"sd":    Quality480,
}

// 1,024 MB groups thousands; 1,5 GB and 1.5 GB are decimals.
var sizePattern = regexp.MustCompile(`(?i)(\d+(?:,\d{3})*)(?:[.,](\d+))?\s*([GM])i?B\b`)

// foldText normalizes compatibility forms (full-width digits, ligatures) and transliterates
// to ASCII so the pattern scans below only ever see plain text.
func foldText(text string) string {
	if text == "" {
		return ""
	}
	return unidecode.Unidecode(norm.NFKC.String(text))
}

func tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ParseQuality extracts the best resolution tier mentioned in a title or filename.
func ParseQuality(text string) Quality {
	best := QualityUnknown
	for _, tok := range tokens(foldText(text)) {
		if q, ok := qualityKeywords[tok]; ok && q > best {
			best = q
		}
	}
	return best
}

// ParseSizeMB returns the first "<number> GB|MB" token in megabytes, or 0.
func ParseSizeMB(text string) float64 {
	m := sizePattern.FindStringSubmatch(foldText(text))
	if len(m) != 4 {
		return 0
	}
	number := strings.ReplaceAll(m[1], ",", "")
	if m[2] != "" {
		number += "." + m[2]
	}
	value, err := strconv.ParseFloat(number, 64)
	if err != nil || value < 0 {
		return 0
	}
	if strings.EqualFold(m[3], "G") {
		return value * 1024
	}
	return value
}

// Label renders a tier the way releases usually spell it.
func (q Quality) Label() string {
	switch q {
	case Quality2160:
		return "4K"
	case Quality1080:
		return "1080p"
	case Quality720:
		return "720p"
	case Quality480:
		return "480p"
	default:
		return ""
	}
}

var camTokens = map[string]struct{}{"cam": {}, "camrip": {}, "ts": {}, "hdts": {}, "telesync": {}, "hdcam": {}}

// IsCamRelease reports whether the title looks like a theatre recording.
func IsCamRelease(text string) bool {
	for _, tok := range tokens(foldText(text)) {
		if _, ok := camTokens[tok]; ok {
			return true
		}
	}
	return false
}

// QualitySymbol returns a short display marker for the tier, with a separate marker for cam releases.
func QualitySymbol(text string) string {
	if IsCamRelease(text) {
		return "📹"
	}
	switch ParseQuality(text) {
	case Quality2160:
		return "🗣💨"
	case Quality1080:
		return "🙉"
	case Quality720:
		return "🙈"
	case Quality480:
		return "🙊"
	default:
		return "🤬"
	}
}

// DetectVideoFeatures lists notable encoding features mentioned in a filename.
func DetectVideoFeatures(filename string) []string {
	lower := strings.ToLower(foldText(filename))
	var features []string
	if strings.Contains(lower, "hdr") {
		features = append(features, "HDR")
	}
	if strings.Contains(lower, "dolby") {
		features = append(features, "Dolby")
	}
	if strings.Contains(lower, "atmos") {
		features = append(features, "Atmos")
	}
	if strings.Contains(lower, "x265") || strings.Contains(lower, "hevc") {
		features = append(features, "HEVC")
	}
	if strings.Contains(lower, "x264") {
		features = append(features, "H.264")
	}
	return features
}
