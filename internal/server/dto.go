package server

import "daydash/internal/domain"

type LoginRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email" format:"email"`
	IconURL string `json:"iconUrl,omitempty"`
}

type LoginResponse struct {
	Token string             `json:"token"`
	User  domain.UserProfile `json:"user"`
}

type MeResponse struct {
	UserID string              `json:"userId"`
	User   *domain.UserProfile `json:"user"`
}

type StopRequest struct {
	Status string `json:"status,omitempty" enum:"done,carryover,finished"`
}

type FetchRequest struct {
	Date string `json:"date" pattern:"^\\d{4}-\\d{2}-\\d{2}$"`
}

type RemovedResponse struct {
	Removed bool `json:"removed"`
}
