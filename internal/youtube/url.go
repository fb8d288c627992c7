// Package youtube recognizes YouTube watch URLs and normalizes titles for
// use as filenames.
package youtube

import (
	"regexp"
	"strings"
)

// watchPattern matches the URL shapes that carry a single video: regular
// watch links, short links, shorts, and YouTube Music links.
var watchPattern = regexp.MustCompile(
	`(?:https?://)?(?:www\.)?(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/shorts/|music\.youtube\.com/watch\?v=)([\w-]{6,})`,
)

// IsWatchURL reports whether text contains a recognizable YouTube video link.
func IsWatchURL(text string) bool {
	return watchPattern.MatchString(strings.TrimSpace(text))
}

// ExtractVideoID pulls the video identifier out of a watch URL. The empty
// string means no video link was found.
func ExtractVideoID(text string) string {
	matches := watchPattern.FindStringSubmatch(strings.TrimSpace(text))
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// Canonicalize rewrites any recognized watch URL into the canonical
// youtube.com/watch form so that the queue deduplicates across link shapes.
func Canonicalize(text string) (string, bool) {
	id := ExtractVideoID(text)
	if id == "" {
		return "", false
	}
	return "https://www.youtube.com/watch?v=" + id, true
}

// forbidden characters for filenames across common filesystems.
var titleSanitizer = strings.NewReplacer(
	"<", "", ">", "", ":", "", `"`, "", "/", "",
	`\`, "", "|", "", "?", "", "*", "",
)

const maxTitleLength = 200

// SanitizeTitle strips filesystem-hostile characters from a video title and
// caps its length so it is safe to use in a destination path.
func SanitizeTitle(title string) string {
	cleaned := strings.TrimSpace(titleSanitizer.Replace(title))
	if cleaned == "" {
		cleaned = "untitled"
	}
	if len(cleaned) > maxTitleLength {
		cleaned = strings.TrimSpace(cleaned[:maxTitleLength])
	}
	return cleaned
}
