package models

import "time"

type Office struct {
	OfficeID  int64     `json:"office_id"`
	Name      string    `json:"name"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// DailyCount is the number of tickets one office issued on one day, per status.
type DailyCount struct {
	Date       string `json:"date"`
	OfficeID   int64  `json:"office_id"`
	OfficeName string `json:"office_name"`
	Status     string `json:"status"`
	Count      int    `json:"count"`
}
