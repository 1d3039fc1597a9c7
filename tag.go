package station_monitor

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// OPC UA data types a tag can declare.
const (
	DataTypeFloat   = "Float"
	DataTypeDouble  = "Double"
	DataTypeInt16   = "Int16"
	DataTypeUInt16  = "UInt16"
	DataTypeInt32   = "Int32"
	DataTypeUInt32  = "UInt32"
	DataTypeInt64   = "Int64"
	DataTypeUInt64  = "UInt64"
	DataTypeBoolean = "Boolean"
	DataTypeString  = "String"
)

// Access levels for a tag.
const (
	AccessReadOnly  = "ReadOnly"
	AccessWriteOnly = "WriteOnly"
	AccessReadWrite = "ReadWrite"
)

var ErrInvalidNodeID = errors.New("node ID must be in the format 'ns=<number>;i=<number>'")

// TagConfig is one named, typed data point on a station.
type TagConfig struct {
	ID                        int        `json:"id"`
	StationID                 int        `json:"station_id"`
	NodeID                    string     `json:"node_id"` // ns=<n>;i=<n>
	TagName                   string     `json:"tag_name"`
	TagUnits                  string     `json:"tag_units,omitempty"`
	DataType                  string     `json:"data_type"`
	AccessLevel               string     `json:"access_level"`
	MinValue                  *float64   `json:"min_value,omitempty"`
	MaxValue                  *float64   `json:"max_value,omitempty"`
	WarningLevel              *float64   `json:"warning_level,omitempty"`
	CriticalLevel             *float64   `json:"critical_level,omitempty"`
	ThresholdActive           bool       `json:"threshold_active"`
	IsBooleanControl          bool       `json:"is_boolean_control"`
	IsAlarm                   bool       `json:"is_alarm"`
	SamplingInterval          int        `json:"sampling_interval_s"`
	SampleOnWholeNumberChange bool       `json:"sample_on_whole_number_change"`
	LastWholeNumber           *int       `json:"last_whole_number,omitempty"`
	LastValue                 string     `json:"last_value,omitempty"`
	LastUpdated               *time.Time `json:"last_updated,omitempty"`
}

// ValidateNodeID checks the 'ns=<number>;i=<number>' address form.
func ValidateNodeID(nodeID string) error {
	if !strings.HasPrefix(nodeID, "ns=") || !strings.Contains(nodeID, ";i=") {
		return ErrInvalidNodeID
	}
	parts := strings.SplitN(nodeID, ";i=", 2)
	ns := strings.TrimPrefix(parts[0], "ns=")
	if _, err := strconv.Atoi(ns); err != nil {
		return ErrInvalidNodeID
	}
	if _, err := strconv.Atoi(parts[1]); err != nil {
		return ErrInvalidNodeID
	}
	return nil
}

// Validate enforces TagConfig invariants at configuration time.
func (t TagConfig) Validate() error {
	if strings.TrimSpace(t.TagName) == "" {
		return errors.New("tag name is required")
	}
	return ValidateNodeID(t.NodeID)
}

// Reading is an immutable telemetry sample.
type Reading struct {
	ID        int       `json:"id"`
	StationID int       `json:"station_id"`
	TagID     int       `json:"tag_id"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// AlarmEvent is a discrete state-transition log row for boolean alarm tags.
// Every observed value is logged; events are never deduplicated.
type AlarmEvent struct {
	ID        int       `json:"id"`
	TagID     int       `json:"tag_id"`
	StationID int       `json:"station_id"`
	Value     bool      `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Breach severities.
const (
	LevelWarning  = "Warning"
	LevelCritical = "Critical"
)

// Breach records one threshold violation. The log is append-only: a
// continuously-breaching tag produces one row per poll cycle, not a single
// evolving incident. Mutated only by acknowledgement.
type Breach struct {
	ID             int        `json:"id"`
	TagID          int        `json:"tag_id"`
	Value          float64    `json:"value"`
	Level          string     `json:"level"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}
