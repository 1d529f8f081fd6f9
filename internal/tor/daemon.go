package tor

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/tornago"
)

// Daemon runs a private Tor process through tornago so that webclone can
// route traffic without a system Tor installation.
//
// Bootstrapping takes between several seconds and a few minutes depending on
// the network; Start blocks until the SOCKS port is ready.
type Daemon struct {
	process        *tornago.TorProcess
	socksAddr      string
	startupTimeout time.Duration
}

// DaemonOption configures a Daemon.
type DaemonOption func(*Daemon)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) DaemonOption {
	return func(d *Daemon) {
		d.startupTimeout = timeout
	}
}

// NewDaemon creates a stopped daemon. Call Start to launch it.
func NewDaemon(opts ...DaemonOption) *Daemon {
	d := &Daemon{startupTimeout: 3 * time.Minute}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches Tor on OS-assigned SOCKS and control ports.
// If ctx is cancelled while Tor is starting, the process is stopped again.
func (d *Daemon) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(d.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // startup was abandoned
		return err
	}

	d.process = process
	d.socksAddr = process.SocksAddr()
	return nil
}

// Stop shuts the process down. It is safe on a daemon that never started.
func (d *Daemon) Stop() error {
	if d.process == nil {
		return nil
	}
	err := d.process.Stop()
	d.process = nil
	d.socksAddr = ""
	return err
}

// SocksAddr returns the SOCKS5 address, or "" when not running.
func (d *Daemon) SocksAddr() string {
	return d.socksAddr
}

// Running reports whether the daemon has been started and not stopped.
func (d *Daemon) Running() bool {
	return d.process != nil
}

// Client returns a Client dialing through the daemon's SOCKS port.
func (d *Daemon) Client(timeout time.Duration) (*Client, error) {
	if !d.Running() {
		return nil, ErrDaemonNotRunning
	}
	return NewClient(d.socksAddr, timeout)
}
