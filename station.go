package station_monitor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Connection status values persisted on StationConfig.
const (
	StatusConnected    = "Connected"
	StatusDisconnected = "Disconnected"
	StatusFaulty       = "Faulty"
)

// Security policies supported for the OPC UA channel.
const (
	SecurityPolicyNone           = "None"
	SecurityPolicyBasic128Rsa15  = "Basic128Rsa15"
	SecurityPolicyBasic256       = "Basic256"
	SecurityPolicyBasic256Sha256 = "Basic256Sha256"
)

// Security modes for message exchange.
const (
	SecurityModeNone           = "None"
	SecurityModeSign           = "Sign"
	SecurityModeSignAndEncrypt = "SignAndEncrypt"
)

// StationConfig describes one remote OPC UA endpoint and how to reach it.
// Timeouts are stored in milliseconds, matching what operators enter in the UI.
type StationConfig struct {
	ID                 int        `json:"id"`
	StationName        string     `json:"station_name"`
	EndpointURL        string     `json:"endpoint_url"` // opc.tcp://host:port
	Active             bool       `json:"active"`
	SecurityPolicy     string     `json:"security_policy"`
	SecurityMode       string     `json:"security_mode"`
	Username           string     `json:"username,omitempty"`
	Password           string     `json:"-"`
	ConnectionTimeout  int        `json:"connection_timeout_ms"`
	SessionTimeout     int        `json:"session_timeout_ms"`
	SecureTimeout      int        `json:"secure_timeout_ms"`
	RequestTimeout     int        `json:"request_timeout_ms"`
	AcknowledgeTimeout int        `json:"acknowledge_timeout_ms"`
	PollInterval       int        `json:"poll_interval_ms"`
	LastConnected      *time.Time `json:"last_connected,omitempty"`
	ConnectionStatus   string     `json:"connection_status"`
	CreatedAt          time.Time  `json:"created_at"`
}

var (
	ErrInvalidEndpoint = errors.New("endpoint URL must be of the form opc.tcp://host:port")
)

// Validate enforces config-time invariants. The connection layer tolerates
// violations at runtime since historic rows carry inconsistent values.
func (s StationConfig) Validate() error {
	if strings.TrimSpace(s.StationName) == "" {
		return errors.New("station name is required")
	}
	if err := ValidateEndpointURL(s.EndpointURL); err != nil {
		return err
	}
	if s.SessionTimeout <= s.ConnectionTimeout {
		return fmt.Errorf("session timeout (%dms) must be greater than connection timeout (%dms)",
			s.SessionTimeout, s.ConnectionTimeout)
	}
	if s.RequestTimeout > s.SessionTimeout {
		return fmt.Errorf("request timeout (%dms) must not exceed session timeout (%dms)",
			s.RequestTimeout, s.SessionTimeout)
	}
	if s.SecurityPolicy != SecurityPolicyNone && s.SecurityMode == SecurityModeNone {
		return errors.New("a security mode must be selected when a security policy is applied")
	}
	if s.SecurityMode != SecurityModeNone && s.SecurityPolicy == SecurityPolicyNone {
		return errors.New("a security policy must be selected when a security mode is applied")
	}
	return nil
}

// ValidateEndpointURL checks the scheme://host:port protocol-address form.
func ValidateEndpointURL(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ErrInvalidEndpoint
	}
	if u.Scheme != "opc.tcp" || u.Hostname() == "" || u.Port() == "" {
		return ErrInvalidEndpoint
	}
	return nil
}

// ConnectionLog records a station going online or offline.
type ConnectionLog struct {
	ID        int       `json:"id"`
	StationID int       `json:"station_id"`
	Status    string    `json:"status"` // online | offline
	Timestamp time.Time `json:"timestamp"`
}

// StationSummary is the dashboard rollup of station health.
type StationSummary struct {
	TotalActive    int `json:"total_active"`
	TotalConnected int `json:"total_connected"`
}
