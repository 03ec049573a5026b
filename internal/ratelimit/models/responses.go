package models

import "time"

type LimitInfoResponse struct {
	LimitType   LimitType `json:"limit_type"`
	MaxRequests int       `json:"max_requests"`
	WindowSecs  int       `json:"window_seconds"`
	Remaining   int       `json:"remaining"`
	ResetTime   time.Time `json:"reset_time"`
	IsLimited   bool      `json:"is_limited"`
}

// AdminLimitInfoResponse adds the inspected identifier to the quota view.
type AdminLimitInfoResponse struct {
	Identifier string `json:"identifier"`
	LimitInfoResponse
}
