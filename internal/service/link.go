package service

import "regexp"

// Short (vm./vt.) and long (www.) links; the path must be non-empty.
var sourceLinkRe = regexp.MustCompile(`(?i)^(https?://)?\w{2,3}\.tiktok\.com/.+`)

// IsSourceLink reports whether text is a link the resolver can handle.
func IsSourceLink(text string) bool {
	return sourceLinkRe.MatchString(text)
}
