package posts

import "regexp"

var disallowed = regexp.MustCompile(`[\[\]{}<>]`)

// Filter strips every bracket, brace and angle bracket from s.
func Filter(s string) string {
	return disallowed.ReplaceAllString(s, "")
}
