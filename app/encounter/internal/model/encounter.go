package model

import "time"

// SessionState 捕获会话状态
type SessionState string

const (
	StateOpen    SessionState = "open"
	StateCaught  SessionState = "caught"
	StateFled    SessionState = "fled"
	StateExpired SessionState = "expired"
	StateAborted SessionState = "aborted"
)

// Terminal 是否为终止状态
func (s SessionState) Terminal() bool {
	return s != StateOpen
}

// WildEncounter 一次野生遭遇，仅存在于内存
type WildEncounter struct {
	ID          int64
	OwnerID     string
	Species     *Species
	Shiny       bool
	Level       int
	CaptureRate int
	FleeChance  int
	State       SessionState
	Attempts    int

	OpenedAt     time.Time
	LastActivity time.Time
}

// OutcomeKind 会话结果类型
type OutcomeKind string

const (
	OutcomeOpened   OutcomeKind = "opened"
	OutcomeRetry    OutcomeKind = "retry"
	OutcomeCaught   OutcomeKind = "caught"
	OutcomeFled     OutcomeKind = "fled"
	OutcomeExpired  OutcomeKind = "expired"
	OutcomeAborted  OutcomeKind = "aborted"
	OutcomeRejected OutcomeKind = "rejected"
)

// Reason 拒绝或结束原因
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonAlreadyActive Reason = "already_active"
	ReasonNoAccount     Reason = "no_account"
	ReasonNoDevices     Reason = "no_devices"
	ReasonInvalidDevice Reason = "invalid_device"
	ReasonNoSession     Reason = "no_session"
	ReasonRun           Reason = "run"
	ReasonEscaped       Reason = "escaped"
	ReasonTimeout       Reason = "timeout"
)

// SessionOutcome 返回给展示层的结构化结果
type SessionOutcome struct {
	Kind        OutcomeKind `json:"kind"`
	Reason      Reason      `json:"reason,omitempty"`
	EncounterID int64       `json:"encounter_id,omitempty"`
	SpeciesID   int         `json:"species_id,omitempty"`
	SpeciesName string      `json:"species_name,omitempty"`
	Level       int         `json:"level,omitempty"`
	Shiny       bool        `json:"shiny"`
	Device      DeviceType  `json:"device,omitempty"`
	Attempts    int         `json:"attempts,omitempty"`
	Reward      int64       `json:"reward,omitempty"`
	CreatureID  string      `json:"creature_id,omitempty"`
	Message     string      `json:"message"`
}

// Terminal 结果是否结束了会话
func (o *SessionOutcome) Terminal() bool {
	switch o.Kind {
	case OutcomeCaught, OutcomeFled, OutcomeExpired, OutcomeAborted:
		return true
	}
	return false
}

// OutcomeEvent 终止结果事件，发布到消息队列
type OutcomeEvent struct {
	EncounterID int64       `json:"encounter_id"`
	TrainerID   string      `json:"trainer_id"`
	Kind        OutcomeKind `json:"kind"`
	Reason      Reason      `json:"reason,omitempty"`
	SpeciesID   int         `json:"species_id"`
	Level       int         `json:"level"`
	Shiny       bool        `json:"shiny"`
	Attempts    int         `json:"attempts"`
	Reward      int64       `json:"reward,omitempty"`
	CreatureID  string      `json:"creature_id,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}
