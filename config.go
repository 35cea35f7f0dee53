package roomclient

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"github.com/meshvoice/roomclient/media"
)

// Environment overrides for the timing knobs. Explicit Options fields win;
// the environment fills in only what the caller left zero.
const (
	envVarTransactionTimeout = "ROOMCLIENT_TRANSACTION_TIMEOUT"
	envVarKeepaliveInterval  = "ROOMCLIENT_KEEPALIVE_INTERVAL"
	envVarDialRetryInterval  = "ROOMCLIENT_DIAL_RETRY_INTERVAL"
	envVarDialMaxRetries     = "ROOMCLIENT_DIAL_MAX_RETRIES"
)

const (
	DefaultTransactionTimeout = 30 * time.Second
	DefaultKeepaliveInterval  = 5 * time.Second
	DefaultDialRetryInterval  = 1 * time.Second
	DefaultDialMaxRetries     = 10

	minTransactionTimeout = 50 * time.Millisecond
	maxTransactionTimeout = 5 * time.Minute
)

// Options configures a Client.
type Options struct {
	// Server is the ws:// or wss:// URL of the gateway control channel.
	Server string

	// ICEServers feed the default media transport. Ignored when NewTransport
	// is set.
	ICEServers []webrtc.ICEServer

	// NewTransport constructs the media transport for one session handle.
	// Defaults to media.NewPionTransport with ICEServers. Tests inject fakes
	// here.
	NewTransport func() (media.Transport, error)

	// LocalTracks are bound to the publisher's send-only legs on Join.
	// Capture is the application's concern; the client only negotiates.
	LocalTracks []webrtc.TrackLocal

	// OnPublisher surfaces the negotiated publisher handle after Join.
	OnPublisher func(*Publisher)
	// OnSubscriber surfaces each new subscriber handle; the application
	// drives its Initialize.
	OnSubscriber func(*Subscriber)
	// OnError is the single application error sink for failures arising
	// outside a call's own return path (keepalive, cleanup, routing).
	OnError func(error)

	// LoggerFactory is the pluggable logger, shared with the pion stack.
	// Defaults to logging.NewDefaultLoggerFactory.
	LoggerFactory logging.LoggerFactory

	TransactionTimeout time.Duration
	KeepaliveInterval  time.Duration
	DialRetryInterval  time.Duration
	DialMaxRetries     uint64
}

func (o Options) withDefaults() Options {
	if o.LoggerFactory == nil {
		o.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if o.TransactionTimeout == 0 {
		o.TransactionTimeout = envDurationOrDefault(envVarTransactionTimeout, DefaultTransactionTimeout)
	}
	if o.KeepaliveInterval == 0 {
		o.KeepaliveInterval = envDurationOrDefault(envVarKeepaliveInterval, DefaultKeepaliveInterval)
	}
	if o.DialRetryInterval == 0 {
		o.DialRetryInterval = envDurationOrDefault(envVarDialRetryInterval, DefaultDialRetryInterval)
	}
	if o.DialMaxRetries == 0 {
		o.DialMaxRetries = envUintOrDefault(envVarDialMaxRetries, DefaultDialMaxRetries)
	}
	if o.NewTransport == nil {
		ice := o.ICEServers
		lf := o.LoggerFactory
		o.NewTransport = func() (media.Transport, error) {
			return media.NewPionTransport(ice, lf)
		}
	}
	return o
}

func (o Options) validate() error {
	u, err := url.Parse(o.Server)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("roomclient: server must be a ws:// or wss:// URL, got %q", o.Server)
	}
	if o.TransactionTimeout < minTransactionTimeout || o.TransactionTimeout > maxTransactionTimeout {
		return fmt.Errorf("roomclient: transaction timeout %s outside [%s, %s]",
			o.TransactionTimeout, minTransactionTimeout, maxTransactionTimeout)
	}
	if o.KeepaliveInterval <= 0 {
		return fmt.Errorf("roomclient: keepalive interval must be positive, got %s", o.KeepaliveInterval)
	}
	if o.DialRetryInterval <= 0 {
		return fmt.Errorf("roomclient: dial retry interval must be positive, got %s", o.DialRetryInterval)
	}
	return nil
}

func envDurationOrDefault(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envUintOrDefault(name string, def uint64) uint64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
