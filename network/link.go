package network

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Prober checks whether the station can reach the outside world.
type Prober interface {
	Connected(ctx context.Context) bool
}

// Associator joins the wireless network.
type Associator interface {
	Associate(ctx context.Context, ssid, password string) error
}

// DialProber treats a successful TCP connect to Addr as connected.
type DialProber struct {
	Addr    string
	Timeout time.Duration
}

func (d DialProber) Connected(ctx context.Context) bool {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.Addr)
	if err != nil {
		logger.Debugf("Probe of [%v] failed [%v]", d.Addr, err)
		return false
	}
	_ = conn.Close()
	return true
}

// NmcliAssociator joins networks through NetworkManager.
type NmcliAssociator struct {
	Interface string
}

func (n NmcliAssociator) Associate(ctx context.Context, ssid, password string) error {
	args := []string{"device", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	if n.Interface != "" {
		args = append(args, "ifname", n.Interface)
	}
	out, err := exec.CommandContext(ctx, "nmcli", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("nmcli connect %s: %w: %s", ssid, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Link keeps the station online.
type Link struct {
	prober   Prober
	assoc    Associator
	limiter  *rate.Limiter
	ssid     string
	password string
	attempts int
}

// NewLink paces reconnect attempts to one per every. every <= 0 disables
// pacing.
func NewLink(prober Prober, assoc Associator, ssid, password string, every time.Duration) *Link {
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	return &Link{
		prober:   prober,
		assoc:    assoc,
		limiter:  rate.NewLimiter(limit, 1),
		ssid:     ssid,
		password: password,
	}
}

// Attempts is the number of reconnects tried so far.
func (l *Link) Attempts() int {
	return l.attempts
}

// EnsureConnected returns at once when the probe succeeds. Otherwise it keeps
// associating until the probe passes, with no limit on attempts. Only ctx
// ends it early.
func (l *Link) EnsureConnected(ctx context.Context) error {
	if l.prober.Connected(ctx) {
		return nil
	}
	logger.Warnf("Network down, connecting to [%v]", l.ssid)
	for {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
		l.attempts++
		if err := l.assoc.Associate(ctx, l.ssid, l.password); err != nil {
			logger.Errorf("Connect attempt [%v] failed [%v]", l.attempts, err)
		}
		if l.prober.Connected(ctx) {
			logger.Infof("Connected to [%v] after [%v] attempts", l.ssid, l.attempts)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
