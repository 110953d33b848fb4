package models

import "time"

// AnalyticsRecord is the daily engagement rollup for one (user, platform)
// pair. Impressions, reach, likes, comments and shares accumulate across
// samples within the day; engagement rate and followers hold the latest
// sampled value.
type AnalyticsRecord struct {
	ID               int64           `db:"id" json:"id"`
	UserID           int64           `db:"user_id" json:"user_id"`
	Platform         string          `db:"platform" json:"platform"`
	RecordDate       time.Time       `db:"record_date" json:"record_date"`
	EngagementRate   float64         `db:"engagement_rate" json:"engagement_rate"`
	Impressions      int64           `db:"impressions" json:"impressions"`
	Reach            int64           `db:"reach" json:"reach"`
	Followers        int64           `db:"followers" json:"followers"`
	Likes            int64           `db:"likes" json:"likes"`
	Comments         int64           `db:"comments" json:"comments"`
	Shares           int64           `db:"shares" json:"shares"`
	HourlyEngagement map[int]float64 `db:"hourly_engagement" json:"hourly_engagement"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}
