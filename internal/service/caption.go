package service

import "unicode/utf8"

// MediaCaptionLimit is the platform cap for media captions.
const MediaCaptionLimit = 1024

// Caption cuts title to its first MediaCaptionLimit code points.
func Caption(title string) string {
	return truncateRunes(title, MediaCaptionLimit)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
