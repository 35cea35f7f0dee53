package roomclient

import (
	"strings"
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	opts := Options{Server: "ws://gateway.example/ws"}.withDefaults()
	if opts.TransactionTimeout != DefaultTransactionTimeout {
		t.Fatalf("TransactionTimeout = %s, want %s", opts.TransactionTimeout, DefaultTransactionTimeout)
	}
	if opts.KeepaliveInterval != DefaultKeepaliveInterval {
		t.Fatalf("KeepaliveInterval = %s, want %s", opts.KeepaliveInterval, DefaultKeepaliveInterval)
	}
	if opts.DialRetryInterval != DefaultDialRetryInterval {
		t.Fatalf("DialRetryInterval = %s, want %s", opts.DialRetryInterval, DefaultDialRetryInterval)
	}
	if opts.DialMaxRetries != DefaultDialMaxRetries {
		t.Fatalf("DialMaxRetries = %d, want %d", opts.DialMaxRetries, DefaultDialMaxRetries)
	}
	if opts.LoggerFactory == nil || opts.NewTransport == nil {
		t.Fatal("logger factory and transport constructor must be defaulted")
	}
	if err := opts.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestOptionsExplicitValuesWin(t *testing.T) {
	t.Setenv(envVarTransactionTimeout, "9s")
	opts := Options{
		Server:             "wss://gateway.example/ws",
		TransactionTimeout: 3 * time.Second,
	}.withDefaults()
	if opts.TransactionTimeout != 3*time.Second {
		t.Fatalf("TransactionTimeout = %s, want the explicit 3s", opts.TransactionTimeout)
	}
}

func TestOptionsEnvironmentOverrides(t *testing.T) {
	t.Setenv(envVarTransactionTimeout, "9s")
	t.Setenv(envVarKeepaliveInterval, "2s")
	t.Setenv(envVarDialRetryInterval, "250ms")
	t.Setenv(envVarDialMaxRetries, "3")

	opts := Options{Server: "ws://gateway.example/ws"}.withDefaults()
	if opts.TransactionTimeout != 9*time.Second {
		t.Fatalf("TransactionTimeout = %s, want 9s", opts.TransactionTimeout)
	}
	if opts.KeepaliveInterval != 2*time.Second {
		t.Fatalf("KeepaliveInterval = %s, want 2s", opts.KeepaliveInterval)
	}
	if opts.DialRetryInterval != 250*time.Millisecond {
		t.Fatalf("DialRetryInterval = %s, want 250ms", opts.DialRetryInterval)
	}
	if opts.DialMaxRetries != 3 {
		t.Fatalf("DialMaxRetries = %d, want 3", opts.DialMaxRetries)
	}
}

func TestOptionsBadEnvironmentFallsBack(t *testing.T) {
	t.Setenv(envVarTransactionTimeout, "soon")
	t.Setenv(envVarDialMaxRetries, "-1")

	opts := Options{Server: "ws://gateway.example/ws"}.withDefaults()
	if opts.TransactionTimeout != DefaultTransactionTimeout {
		t.Fatalf("TransactionTimeout = %s, want the default", opts.TransactionTimeout)
	}
	if opts.DialMaxRetries != DefaultDialMaxRetries {
		t.Fatalf("DialMaxRetries = %d, want the default", opts.DialMaxRetries)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr string
	}{
		{
			name:    "http scheme",
			mutate:  func(o *Options) { o.Server = "http://gateway.example/ws" },
			wantErr: "ws:// or wss://",
		},
		{
			name:    "empty server",
			mutate:  func(o *Options) { o.Server = "" },
			wantErr: "ws:// or wss://",
		},
		{
			name:    "timeout too small",
			mutate:  func(o *Options) { o.TransactionTimeout = time.Millisecond },
			wantErr: "transaction timeout",
		},
		{
			name:    "timeout too large",
			mutate:  func(o *Options) { o.TransactionTimeout = time.Hour },
			wantErr: "transaction timeout",
		},
		{
			name:    "negative keepalive",
			mutate:  func(o *Options) { o.KeepaliveInterval = -time.Second },
			wantErr: "keepalive",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := Options{Server: "ws://gateway.example/ws"}.withDefaults()
			tc.mutate(&opts)
			err := opts.validate()
			if err == nil {
				t.Fatal("validate succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("validate error = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestNewClientRejectsBadOptions(t *testing.T) {
	if _, err := NewClient(Options{Server: "http://not-a-ws"}); err == nil {
		t.Fatal("NewClient accepted a non-websocket URL")
	}
}
