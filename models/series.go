package models

type SessionTemplate struct {
	ZoneID          string `json:"zone_id"`
	Title           string `json:"title"`
	Capacity        int    `json:"capacity"`
	CreatedByUserID string `json:"created_by_user_id"`
}

type SeriesRequest struct {
	Template    SessionTemplate `json:"template"`
	TimeSlotIDs []string        `json:"time_slot_ids"`
	TableIDs    []string        `json:"table_ids"`
}

type SeriesResult struct {
	CreatedCount int           `json:"created_count"`
	Sessions     []GameSession `json:"sessions"`
	Warnings     []string      `json:"warnings"`
}
