package server

import "github.com/koragame/kora/internal/sync"

// UpdatesResponse answers the polling query: every event past the client's
// watermark plus the log's current version.
type UpdatesResponse struct {
	Events  []sync.Event `json:"events"`
	Version uint64       `json:"version"`
}

// RoomSummary holds lightweight room metadata for clients.
type RoomSummary struct {
	ID         string `json:"id"`
	Bet        int    `json:"bet"`
	Phase      string `json:"phase"`
	Version    uint64 `json:"version"`
	Winner     string `json:"winner"`
	Victory    string `json:"victory"`
	Multiplier int    `json:"multiplier"`
}

// ErrorResponse is the JSON body of a non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
