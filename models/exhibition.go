package models

import (
	"time"
)

type Zone struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	ModerationRequired bool   `json:"moderation_required"`
}

type Table struct {
	ID     string `json:"id"`
	ZoneID string `json:"zone_id"`
	Name   string `json:"name"`
}

type TimeSlot struct {
	ID                 string    `json:"id"`
	ZoneID             string    `json:"zone_id"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	MaxDurationMinutes int       `json:"max_duration_minutes"`
	BufferTimeMinutes  int       `json:"buffer_time_minutes"`
}

func (s TimeSlot) MaxDuration() time.Duration {
	return time.Duration(s.MaxDurationMinutes) * time.Minute
}

func (s TimeSlot) Buffer() time.Duration {
	return time.Duration(s.BufferTimeMinutes) * time.Minute
}
