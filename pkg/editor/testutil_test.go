package editor

import "regexp"

func mustRe(pattern string) *regexp.Regexp {
	return regexp.MustCompile(pattern)
}
