// Package models defines the data structures used for API requests, responses and journal records.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// RegisterRequest represents the payload sent by a game host announcing a match.
type RegisterRequest struct {
	HostName     string `json:"hostName"`
	ProxyAddress string `json:"proxyAddress"`
	Map          string `json:"map"`
	ProxyPort    Scalar `json:"proxyPort"`
	MaxPlayers   Scalar `json:"maxPlayers,omitempty"`
}

// Scalar keeps the text of a JSON string or number so numeric fields can be validated
// by the registry instead of failing the whole decode.
type Scalar string

// UnmarshalJSON accepts a JSON string, number or null.
func (s *Scalar) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = Scalar(v)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*s = Scalar(n)

	return nil
}

// MatchRequest references an existing match by id (heartbeat, unregister).
type MatchRequest struct {
	ID string `json:"id"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Address string `json:"address"`
}

// MatchView is the public projection of an active match.
type MatchView struct {
	ID               string `json:"id"`
	HostName         string `json:"hostName"`
	ProxyAddress     string `json:"proxyAddress"`
	Address          string `json:"address"`
	Map              string `json:"map"`
	CountryCode      string `json:"countryCode,omitempty"`
	ProxyPort        int    `json:"proxyPort"`
	MaxPlayers       int    `json:"maxPlayers"`
	PlayersConnected int    `json:"playersConnected"`
	AgeMinutes       int64  `json:"ageMinutes"`
	Recent           bool   `json:"recent"`
}

// ListResponse wraps the match listing.
type ListResponse struct {
	Matches   []MatchView `json:"matches"`
	Count     int         `json:"count"`
	Timestamp int64       `json:"timestamp"`
}

// HealthResponse reports liveness and registry counters.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeMinutes int64  `json:"uptimeMinutes"`
	TotalMatches  int    `json:"totalMatches"`
	ActiveMatches int    `json:"activeMatches"`
}

// StatsResponse reports raw registry counters.
type StatsResponse struct {
	TotalEverStored int     `json:"totalEverStored"`
	ActiveCount     int     `json:"activeCount"`
	UptimeSeconds   float64 `json:"uptimeSeconds"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
	Hint   []string `json:"hint,omitempty"`
}

// Event is a registry lifecycle record stored in the journal.
type Event struct {
	OccurredAt time.Time `json:"occurred_at"`
	Kind       string    `json:"kind"`
	MatchID    string    `json:"match_id"`
	HostName   string    `json:"host_name"`
	MapName    string    `json:"map_name"`
	Address    string    `json:"address"`
	ID         int64     `json:"id"`
}
