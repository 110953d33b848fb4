package service

import (
	"strings"
	"time"
)

func GetExpiresAt(expiresIn int) time.Time {
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}

// CaptionWithHashtags appends the post's hashtags to the caption, adding the
// leading # where the author left it off.
func CaptionWithHashtags(caption string, hashtags []string) string {
	if len(hashtags) == 0 {
		return caption
	}

	var sb strings.Builder
	sb.WriteString(caption)
	for _, tag := range hashtags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		if !strings.HasPrefix(tag, "#") {
			sb.WriteString("#")
		}
		sb.WriteString(tag)
	}
	return sb.String()
}
