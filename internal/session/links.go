package session

import "regexp"

// ResourceLink is a video reference embedded in a reply as
// [VIDEO:title](url).
type ResourceLink struct {
	Title   string
	URL     string
	VideoID string // empty when url is not a YouTube link
}

var (
	videoLink = regexp.MustCompile(`\[VIDEO:([^\]]+)\]\(([^)]+)\)`)

	youTubePatterns = []*regexp.Regexp{
		regexp.MustCompile(`youtube\.com/live/([^?&]+)`),
		regexp.MustCompile(`youtube\.com/watch\?v=([^&]+)`),
		regexp.MustCompile(`youtu\.be/([^?&]+)`),
		regexp.MustCompile(`youtube\.com/embed/([^?&]+)`),
	}
)

// ExtractResourceLinks returns the video links in reply, in order.
func ExtractResourceLinks(reply string) []ResourceLink {
	matches := videoLink.FindAllStringSubmatch(reply, -1)
	if len(matches) == 0 {
		return nil
	}
	links := make([]ResourceLink, 0, len(matches))
	for _, m := range matches {
		id, _ := YouTubeID(m[2])
		links = append(links, ResourceLink{Title: m[1], URL: m[2], VideoID: id})
	}
	return links
}

// YouTubeID extracts the video id from the common YouTube URL shapes.
func YouTubeID(url string) (string, bool) {
	for _, p := range youTubePatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1], true
		}
	}
	return "", false
}
