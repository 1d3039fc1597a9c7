package opc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	sm "station_monitor"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
)

// Transport is the narrow protocol surface a StationConnection drives. The
// production implementation wraps a gopcua client; tests inject fakes.
type Transport interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	ReadValue(ctx context.Context, nodeID string) (interface{}, error)
	WriteValue(ctx context.Context, nodeID string, value interface{}) error
}

// Dialer builds a Transport for a station config. Injected so the supervisor
// and tests control what actually goes on the wire.
type Dialer func(cfg sm.StationConfig) (Transport, error)

// serverTimeNode is the server status current-time node, used as the
// lightweight health-check read.
const serverTimeNode = "i=2258"

type uaTransport struct {
	endpoint string
	opts     []opcua.Option
	client   *opcua.Client
}

// Dial builds the production gopcua transport from a station config. The
// client is created per connection attempt so a stale session handle is never
// reused.
func Dial(cfg sm.StationConfig) (Transport, error) {
	opts := []opcua.Option{
		opcua.SecurityPolicy(securityPolicyURI(cfg.SecurityPolicy)),
		opcua.SecurityMode(securityMode(cfg.SecurityMode)),
	}
	if cfg.ConnectionTimeout > 0 {
		opts = append(opts, opcua.DialTimeout(time.Duration(cfg.ConnectionTimeout)*time.Millisecond))
	}
	if cfg.SessionTimeout > 0 {
		opts = append(opts, opcua.SessionTimeout(time.Duration(cfg.SessionTimeout)*time.Millisecond))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, opcua.RequestTimeout(time.Duration(cfg.RequestTimeout)*time.Millisecond))
	}
	if cfg.SecureTimeout > 0 {
		opts = append(opts, opcua.Lifetime(time.Duration(cfg.SecureTimeout)*time.Millisecond))
	}
	if cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(cfg.Username, cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return &uaTransport{endpoint: cfg.EndpointURL, opts: opts}, nil
}

func securityPolicyURI(policy string) string {
	switch policy {
	case sm.SecurityPolicyBasic128Rsa15:
		return ua.SecurityPolicyURIBasic128Rsa15
	case sm.SecurityPolicyBasic256:
		return ua.SecurityPolicyURIBasic256
	case sm.SecurityPolicyBasic256Sha256:
		return ua.SecurityPolicyURIBasic256Sha256
	default:
		return ua.SecurityPolicyURINone
	}
}

func securityMode(mode string) ua.MessageSecurityMode {
	switch mode {
	case sm.SecurityModeSign:
		return ua.MessageSecurityModeSign
	case sm.SecurityModeSignAndEncrypt:
		return ua.MessageSecurityModeSignAndEncrypt
	default:
		return ua.MessageSecurityModeNone
	}
}

func (t *uaTransport) Connect(ctx context.Context) error {
	client, err := opcua.NewClient(t.endpoint, t.opts...)
	if err != nil {
		return fmt.Errorf("create client for %s: %w", t.endpoint, err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", t.endpoint, err)
	}
	t.client = client
	return nil
}

func (t *uaTransport) Close(ctx context.Context) error {
	if t.client == nil {
		return nil
	}
	err := t.client.Close(ctx)
	t.client = nil
	return err
}

func (t *uaTransport) ReadValue(ctx context.Context, nodeID string) (interface{}, error) {
	if t.client == nil {
		return nil, ErrNotConnected
	}
	id, err := ua.ParseNodeID(nodeID)
	if err != nil {
		return nil, fmt.Errorf("invalid node ID %q: %w", nodeID, err)
	}
	req := &ua.ReadRequest{
		NodesToRead: []*ua.ReadValueID{
			{NodeID: id, AttributeID: ua.AttributeIDValue},
		},
	}
	resp, err := t.client.Read(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", nodeID, err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("read %s: empty response", nodeID)
	}
	result := resp.Results[0]
	if result.Status != ua.StatusOK {
		return nil, fmt.Errorf("read %s: %w", nodeID, result.Status)
	}
	return result.Value.Value(), nil
}

func (t *uaTransport) WriteValue(ctx context.Context, nodeID string, value interface{}) error {
	if t.client == nil {
		return ErrNotConnected
	}
	id, err := ua.ParseNodeID(nodeID)
	if err != nil {
		return fmt.Errorf("invalid node ID %q: %w", nodeID, err)
	}
	variant, err := ua.NewVariant(value)
	if err != nil {
		return fmt.Errorf("variant for %v: %w", value, err)
	}
	req := &ua.WriteRequest{
		NodesToWrite: []*ua.WriteValue{
			{
				NodeID:      id,
				AttributeID: ua.AttributeIDValue,
				Value: &ua.DataValue{
					EncodingMask: ua.DataValueValue,
					Value:        variant,
				},
			},
		},
	}
	resp, err := t.client.Write(ctx, req)
	if err != nil {
		return fmt.Errorf("write %s: %w", nodeID, err)
	}
	if len(resp.Results) == 0 {
		return fmt.Errorf("write %s: empty response", nodeID)
	}
	if resp.Results[0] != ua.StatusOK {
		return fmt.Errorf("write %s: %w", nodeID, resp.Results[0])
	}
	return nil
}

// FailureReason buckets a connection error for logging and status reporting.
type FailureReason string

const (
	FailureNetwork FailureReason = "network"
	FailureAuth    FailureReason = "auth"
	FailureTimeout FailureReason = "timeout"
	FailureUnknown FailureReason = "unknown"
)

// ClassifyFailure maps a connect/read error to its failure reason.
func ClassifyFailure(err error) FailureReason {
	if err == nil {
		return FailureUnknown
	}
	var code ua.StatusCode
	if errors.As(err, &code) {
		switch code {
		case ua.StatusBadUserAccessDenied, ua.StatusBadIdentityTokenInvalid, ua.StatusBadIdentityTokenRejected:
			return FailureAuth
		case ua.StatusBadTimeout, ua.StatusBadRequestTimeout:
			return FailureTimeout
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return FailureTimeout
		}
		return FailureNetwork
	}
	return FailureUnknown
}

// IsSessionLoss reports whether an error means the session itself is gone and
// the connection must be rebuilt, as opposed to a per-node read problem.
func IsSessionLoss(err error) bool {
	var code ua.StatusCode
	if !errors.As(err, &code) {
		return false
	}
	switch code {
	case ua.StatusBadSessionIDInvalid,
		ua.StatusBadSessionClosed,
		ua.StatusBadSessionNotActivated,
		ua.StatusBadSecureChannelClosed,
		ua.StatusBadSecureChannelIDInvalid,
		ua.StatusBadServerNotConnected,
		ua.StatusBadConnectionClosed:
		return true
	}
	return false
}
