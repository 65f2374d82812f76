package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// RecognitionSource tells which bridge operation produced a result
type RecognitionSource string

const (
	RecognitionSourceListen      RecognitionSource = "listen"
	RecognitionSourceFingerprint RecognitionSource = "fingerprint"
)

// RecognitionSummary is the part of a vendor payload worth indexing
type RecognitionSummary struct {
	StatusCode    int      `json:"status_code" bson:"status_code"`
	StatusMessage string   `json:"status_message" bson:"status_message"`
	Title         string   `json:"title,omitempty" bson:"title,omitempty"`
	Artists       []string `json:"artists,omitempty" bson:"artists,omitempty"`
	Album         string   `json:"album,omitempty" bson:"album,omitempty"`
	ACRID         string   `json:"acrid,omitempty" bson:"acrid,omitempty"`
}

// Recognition is one recognition result delivered to a device
type Recognition struct {
	ID        string             `json:"id" bson:"_id"`
	DeviceID  string             `json:"device_id" bson:"device_id"`
	SessionID string             `json:"session_id" bson:"session_id"`
	Source    RecognitionSource  `json:"source" bson:"source"`
	Payload   string             `json:"payload" bson:"payload"`
	Summary   RecognitionSummary `json:"summary" bson:"summary"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// NewRecognition creates a record for a raw vendor payload
func NewRecognition(deviceID, sessionID string, source RecognitionSource, payload string) *Recognition {
	return &Recognition{
		ID:        uuid.New().String(),
		DeviceID:  deviceID,
		SessionID: sessionID,
		Source:    source,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// Validate checks the fields every stored recognition needs
func (r *Recognition) Validate() error {
	if r.ID == "" {
		return errors.New("recognition ID is required")
	}
	if r.DeviceID == "" {
		return errors.New("device ID is required")
	}
	if r.Source != RecognitionSourceListen && r.Source != RecognitionSourceFingerprint {
		return errors.New("recognition source is invalid")
	}
	return nil
}

// Matched reports whether the vendor found a track
func (r *Recognition) Matched() bool {
	return r.Summary.StatusCode == 0 && r.Summary.Title != ""
}
