package util

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	reIllegal    = regexp.MustCompile(`[<>:"/\\|?*]`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// SanitizeFilename makes an archive name safe for the local filesystem.
// Mirrors strip the real title into the download URL's query, so names
// arrive with arbitrary punctuation and padding.
func SanitizeFilename(name string) string {
	raw := strings.TrimSpace(name)
	safe := reIllegal.ReplaceAllString(raw, "_")
	safe = strings.TrimSpace(reWhitespace.ReplaceAllString(safe, " "))

	if runes := []rune(safe); len(runes) > 200 {
		safe = string(runes[:200])
	}

	if safe == "" {
		return fmt.Sprintf("album_%d.zip", time.Now().Unix())
	}

	return safe
}
