package transfer

type SettingsUpdate struct {
	PostingTime string `json:"posting_time"`
	Category    string `json:"category"`
}
