package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptionWithHashtags(t *testing.T) {
	tests := []struct {
		name     string
		caption  string
		hashtags []string
		want     string
	}{
		{
			name:    "no hashtags",
			caption: "morning brew",
			want:    "morning brew",
		},
		{
			name:     "plain tags get the prefix",
			caption:  "morning brew",
			hashtags: []string{"coffee", "daily"},
			want:     "morning brew #coffee #daily",
		},
		{
			name:     "prefixed tags kept as is",
			caption:  "morning brew",
			hashtags: []string{"#coffee"},
			want:     "morning brew #coffee",
		},
		{
			name:     "blank tags skipped",
			caption:  "morning brew",
			hashtags: []string{"", "  ", "coffee"},
			want:     "morning brew #coffee",
		},
		{
			name:     "empty caption",
			caption:  "",
			hashtags: []string{"coffee"},
			want:     "#coffee",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CaptionWithHashtags(tt.caption, tt.hashtags))
		})
	}
}
