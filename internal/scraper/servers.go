package scraper

import (
	"regexp"
	"strings"
)

// ServerLink is one candidate download server found on a trigger page.
type ServerLink struct {
	Server string `json:"server"`
	URL    string `json:"url"`
}

// serverPriority ranks known hosting servers, best first.
var serverPriority = []*regexp.Regexp{
	regexp.MustCompile(`(?i)server\s*(one|1)`),
	regexp.MustCompile(`(?i)fsl|fast\s*server`),
	regexp.MustCompile(`(?i)10\s*gbps`),
}

var directMediaSuffixes = []string{".mp4", ".mkv", ".avi", ".webm"}

// serverRank returns the priority of a server name, lower is better.
// Unknown servers rank after every known one.
func serverRank(name string) int {
	for i, re := range serverPriority {
		if re.MatchString(name) {
			return i
		}
	}
	return len(serverPriority)
}

func isDirectMedia(rawURL string) bool {
	u := strings.ToLower(rawURL)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	for _, suffix := range directMediaSuffixes {
		if strings.HasSuffix(u, suffix) {
			return true
		}
	}
	return strings.Contains(rawURL, "googlevideo.com/videoplayback")
}

// PickServerLink chooses the best link: the highest priority server, preferring direct media
// links within the same rank, then page order. Invalid and blocklisted URLs are skipped.
func PickServerLink(links []ServerLink, blocklist *Blocklist) (string, bool) {
	best := -1
	bestRank := 0
	bestDirect := false

	for i, l := range links {
		if _, err := validateSiteURL(l.URL); err != nil || blocklist.Blocked(l.URL) {
			continue
		}

		rank := serverRank(l.Server)
		direct := isDirectMedia(l.URL)

		if best < 0 || rank < bestRank || (rank == bestRank && direct && !bestDirect) {
			best, bestRank, bestDirect = i, rank, direct
		}
	}

	if best < 0 {
		return "", false
	}
	return links[best].URL, true
}
