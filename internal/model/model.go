package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels lists every struct that represents a table in the schema.
var DatabaseModels = []interface{}{
	&Session{},
	&TickState{},
	&StageEvent{},
}

// Session is one simulator run, from process start (or reset) until the run
// ends or the process exits.
type Session struct {
	gorm.Model
	StartTime   time.Time      `json:"startTime" gorm:"type:timestamptz"`
	EndTime     sql.NullTime   `json:"endTime" gorm:"type:timestamptz;default:NULL"`
	Tag         string         `json:"tag" gorm:"size:127"`
	ConfigJSON  datatypes.JSON `json:"config" gorm:"type:jsonb;default:'{}'"` // sim.Config the run started with
	TickSeconds float64        `json:"tickSeconds"`
}

func (*Session) TableName() string {
	return "sessions"
}

// TickState is one recorded snapshot of the vessel and environment.
type TickState struct {
	Time      time.Time `json:"time" gorm:"type:timestamptz;index:idx_tickstate_time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_tickstate_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Tick      uint      `json:"tick" gorm:"index:idx_tickstate_tick"`

	Position         geom.Point `json:"position"` // web-mercator projection of the vessel fix
	Heading          float32    `json:"heading"`
	SpeedMps         float32    `json:"speedMps"`
	AngularVelocity  float32    `json:"angularVelocity"`
	Anchored         bool       `json:"anchored" gorm:"default:false"`
	RodeMeters       float32    `json:"rodeMeters"`
	SlackMeters      float32    `json:"slackMeters"`
	DistanceMeters   float32    `json:"distanceMeters"` // horizontal distance from the anchor
	Stage            string     `json:"stage" gorm:"size:32"`
	MotorEngaged     bool       `json:"motorEngaged" gorm:"default:false"`
	MotorThrustN     float32    `json:"motorThrustN"`
	ConstraintActive bool       `json:"constraintActive" gorm:"default:false"`
	WindSpeedKnots   float32    `json:"windSpeedKnots"`
	WindDirectionDeg float32    `json:"windDirectionDeg"`
	DepthMeters      float32    `json:"depthMeters"`
	TideMeters       float32    `json:"tideMeters"`
}

func (*TickState) TableName() string {
	return "tick_states"
}

// StageEvent records a deployment sequencer transition.
type StageEvent struct {
	Time      time.Time `json:"time" gorm:"type:timestamptz;index:idx_stageevent_time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_stageevent_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Tick      uint      `json:"tick"`

	FromStage  string         `json:"fromStage" gorm:"size:32"`
	ToStage    string         `json:"toStage" gorm:"size:32"`
	RodeMeters float32        `json:"rodeMeters"`
	ExtraData  datatypes.JSON `json:"extraData" gorm:"type:jsonb;default:'{}'"`
}

func (*StageEvent) TableName() string {
	return "stage_events"
}
