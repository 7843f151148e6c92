package api

import (
	"regexp"

	"github.com/instatrack/instatrack/internal/task"
)

// postCodePattern matches the shortcode segment of Instagram post, TV, and
// reel URLs, e.g. https://www.instagram.com/p/DAbCdEfGhIj/.
var postCodePattern = regexp.MustCompile(`/(p|tv|reel)/([^/]+)`)

// ExtractPostCode returns the shortcode embedded in an Instagram post URL.
// URLs without a recognizable post path yield ErrInvalidPostURL.
func ExtractPostCode(postURL string) (string, error) {
	match := postCodePattern.FindStringSubmatch(postURL)
	if match == nil {
		return "", task.ErrInvalidPostURL
	}
	return match[2], nil
}
