package transfer

// MetricSampleIngest is the body of a manual analytics ingest request.
type MetricSampleIngest struct {
	Platform       string  `json:"platform"`
	RecordedAt     string  `json:"recorded_at"`
	Impressions    int64   `json:"impressions"`
	Reach          int64   `json:"reach"`
	Likes          int64   `json:"likes"`
	Comments       int64   `json:"comments"`
	Shares         int64   `json:"shares"`
	EngagementRate float64 `json:"engagement_rate"`
	Followers      int64   `json:"followers"`
}
