package domain

import (
	"time"
)

// CallDirection represents the direction of a voice call.
type CallDirection string

const (
	CallDirectionOutbound CallDirection = "outbound"
	CallDirectionInbound  CallDirection = "inbound"
)

// CallPurpose classifies why a call was placed. It drives both the simulated
// outcome and the follow-up email selection in the post-call pipeline.
type CallPurpose string

const (
	CallPurposeAppointmentScheduling CallPurpose = "appointment_scheduling"
	CallPurposeEstimateFollowUp      CallPurpose = "estimate_follow_up"
	CallPurposeFollowUp              CallPurpose = "follow_up"
	CallPurposeGeneral               CallPurpose = "general"
)

// CallStatus is the lifecycle state of a voice call.
type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusRinging   CallStatus = "ringing"
	CallStatusAnswered  CallStatus = "answered"
	CallStatusBusy      CallStatus = "busy"
	CallStatusFailed    CallStatus = "failed"
	CallStatusNoAnswer  CallStatus = "no-answer"
	CallStatusCompleted CallStatus = "completed"
)

// transitions is the allowed-transition table. Terminal states have no entry.
var transitions = map[CallStatus][]CallStatus{
	CallStatusInitiated: {CallStatusRinging, CallStatusFailed, CallStatusCompleted},
	CallStatusRinging:   {CallStatusAnswered, CallStatusBusy, CallStatusNoAnswer, CallStatusFailed},
	CallStatusAnswered:  {CallStatusCompleted, CallStatusFailed},
}

// IsTerminal reports whether no further transition is permitted from s.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusBusy, CallStatusFailed, CallStatusNoAnswer, CallStatusCompleted:
		return true
	}
	return false
}

// IsValid reports whether s is one of the known call statuses.
func (s CallStatus) IsValid() bool {
	switch s {
	case CallStatusInitiated, CallStatusRinging, CallStatusAnswered,
		CallStatusBusy, CallStatusFailed, CallStatusNoAnswer, CallStatusCompleted:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to target is permitted.
// Duplicate and out-of-order provider events resolve to false here, which is
// the guard the webhook path relies on.
func (s CallStatus) CanTransition(target CallStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// VoiceCall is the call record. It is created in the initiated state by the
// orchestration entry point and mutated only through the lifecycle manager.
// Records are retained as call history and never deleted.
type VoiceCall struct {
	ID             string        `json:"id" gorm:"column:id;primaryKey"`
	WorkspaceID    string        `json:"workspace_id" gorm:"column:workspace_id;index"`
	ClientID       string        `json:"client_id" gorm:"column:client_id;index"`
	PhoneNumber    string        `json:"phone_number" gorm:"column:phone_number"`
	Direction      CallDirection `json:"direction" gorm:"column:direction"`
	Status         CallStatus    `json:"status" gorm:"column:status;index"`
	CallPurpose    CallPurpose   `json:"call_purpose" gorm:"column:call_purpose"`
	ProviderCallID string        `json:"provider_call_id,omitempty" gorm:"column:provider_call_id"`
	AgentID        string        `json:"agent_id,omitempty" gorm:"column:agent_id"`
	Duration       int           `json:"duration" gorm:"column:duration"`
	Transcript     string        `json:"transcript,omitempty" gorm:"column:transcript"`
	CallResult     *CallResult   `json:"call_result,omitempty" gorm:"column:call_result;type:jsonb"`
	Notes          string        `json:"notes,omitempty" gorm:"column:notes"`
	Simulated      bool          `json:"simulated" gorm:"column:simulated"`

	// PipelineDispatched guards the post-call pipeline: it is flipped by a
	// conditional update so concurrent terminal events dispatch at most once.
	PipelineDispatched bool `json:"-" gorm:"column:pipeline_dispatched"`

	StartedAt time.Time  `json:"started_at" gorm:"column:started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" gorm:"column:ended_at"`
	CreatedAt time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

func (VoiceCall) TableName() string {
	return "voice_calls"
}
