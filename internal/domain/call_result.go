package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Sentiment is the overall tone of a finished call.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// CallResult is the structured outcome attached when a call reaches a terminal
// state. It is owned by the VoiceCall it terminates and immutable once written.
// Purpose-specific fields are only populated for the matching purpose.
type CallResult struct {
	Sentiment  Sentiment `json:"sentiment"`
	Notes      string    `json:"notes"`
	NextAction string    `json:"next_action,omitempty"`

	// appointment_scheduling
	AppointmentScheduled bool       `json:"appointment_scheduled,omitempty"`
	AppointmentDate      *time.Time `json:"appointment_date,omitempty"`
	AppointmentType      string     `json:"appointment_type,omitempty"`

	// estimate_follow_up
	EstimateStatus   string     `json:"estimate_status,omitempty"`
	FollowUpRequired bool       `json:"follow_up_required,omitempty"`
	FollowUpDate     *time.Time `json:"follow_up_date,omitempty"`
}

// Value implements driver.Valuer so the result is stored as JSONB.
func (r *CallResult) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *CallResult) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	}
	return fmt.Errorf("unsupported call result column type %T", src)
}
