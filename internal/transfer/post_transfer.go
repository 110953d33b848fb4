package transfer

// PostCreation carries the multipart form fields of a create-post request.
// Hashtags, SelectedAccounts and Recurrence arrive as JSON strings.
type PostCreation struct {
	Caption          string `json:"caption"`
	Title            string `json:"title"`
	Hashtags         string `json:"hashtags"`
	ScheduledTime    string `json:"scheduled_time"`
	SelectedAccounts string `json:"selected_accounts"`
	Recurrence       string `json:"recurrence"`
}
