package acrcloud

import (
	"encoding/json"
	"fmt"

	"github.com/satriahrh/acrbridge/domain/entities"
)

// Vendor status codes carried in the result payload
const (
	StatusSuccess   = 0
	StatusNoResult  = 1001
	StatusHTTPError = 3000
)

type resultStatus struct {
	Msg     string `json:"msg"`
	Code    int    `json:"code"`
	Version string `json:"version"`
}

type resultMusic struct {
	Title   string `json:"title"`
	ACRID   string `json:"acrid"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
}

type resultPayload struct {
	Status   resultStatus `json:"status"`
	Metadata *struct {
		Music   []resultMusic `json:"music"`
		Humming []resultMusic `json:"humming"`
	} `json:"metadata"`
}

// ParseResult extracts the status and best music match of a payload
func ParseResult(payload string) (entities.RecognitionSummary, error) {
	var res resultPayload
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return entities.RecognitionSummary{}, fmt.Errorf("failed to decode result payload: %w", err)
	}

	summary := entities.RecognitionSummary{
		StatusCode:    res.Status.Code,
		StatusMessage: res.Status.Msg,
	}
	if res.Metadata == nil {
		return summary, nil
	}

	matches := res.Metadata.Music
	if len(matches) == 0 {
		matches = res.Metadata.Humming
	}
	if len(matches) == 0 {
		return summary, nil
	}

	best := matches[0]
	summary.Title = best.Title
	summary.Album = best.Album.Name
	summary.ACRID = best.ACRID
	for _, artist := range best.Artists {
		summary.Artists = append(summary.Artists, artist.Name)
	}
	return summary, nil
}

// statusCode returns the vendor status of a payload, or -1 when it is unreadable
func statusCode(payload string) int {
	var res struct {
		Status resultStatus `json:"status"`
	}
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return -1
	}
	return res.Status.Code
}

// errorPayload encodes a local failure the way the vendor SDK reports it
func errorPayload(code int, msg string) string {
	b, _ := json.Marshal(struct {
		Status resultStatus `json:"status"`
	}{Status: resultStatus{Msg: msg, Code: code, Version: "1.0"}})
	return string(b)
}
