package provision

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gr-butler/homeweather/config"
	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"
)

// State of a provisioning session.
type State int

const (
	Idle State = iota
	Listening
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const (
	DefaultTimeout = 30 * time.Second
	// a session with no MaxDuration closes after this many timeouts at most
	maxDurationFactor = 2
	pollInterval      = 20 * time.Millisecond
	// maxLineLen bounds one received line. Valid commands are far shorter.
	maxLineLen = 256
)

var ErrClosed = errors.New("provisioning session closed")

// CommandsTotal counts handled lines by result.
var CommandsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "provisioning_commands_total",
		Help: "Provisioning lines received, by result",
	},
	[]string{"result"},
)

type Options struct {
	// Timeout is the inactivity limit. Every accepted command restarts it.
	Timeout time.Duration
	// MaxDuration caps the whole session however busy it is. Defaults to
	// twice Timeout.
	MaxDuration time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Session accepts KEY:VALUE lines and writes each accepted value straight to
// the store.
type Session struct {
	ID string

	lock     sync.Mutex
	store    config.Store
	cfg      config.Configuration
	opts     Options
	state    State
	opened   time.Time
	deadline time.Time
	log      *logger.Entry
}

func NewSession(store config.Store, current config.Configuration, opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = maxDurationFactor * opts.Timeout
	}
	if opts.MaxDuration < opts.Timeout {
		opts.MaxDuration = opts.Timeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	id := uuid.NewString()
	return &Session{
		ID:    id,
		store: store,
		cfg:   current,
		opts:  opts,
		log:   logger.WithField("session", id),
	}
}

// Open starts the inactivity clock. Only an idle session can be opened.
func (s *Session) Open() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != Idle {
		return
	}
	s.state = Listening
	s.opened = s.opts.Now()
	s.deadline = s.opened.Add(s.opts.Timeout)
	s.log.Infof("Waiting for configuration updates for [%v]", s.opts.Timeout)
}

func (s *Session) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Configuration returns the configuration as last accepted.
func (s *Session) Configuration() config.Configuration {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.cfg
}

// Expired closes the session once its deadline has passed and reports
// whether it is closed.
func (s *Session) Expired() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.expireLocked()
	return s.state == Closed
}

func (s *Session) expireLocked() {
	if s.state == Listening && !s.opts.Now().Before(s.deadline) {
		s.log.Infof("Configuration window over after [%v]", s.opts.Now().Sub(s.opened).Round(time.Millisecond))
		s.state = Closed
	}
}

// Close ends the session early. Safe to call more than once.
func (s *Session) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != Closed {
		s.log.Info("Provisioning session closed")
	}
	s.state = Closed
}

// Handle processes one received line and returns the reply without its line
// ending. Blank lines get no reply. Once closed, every line gets ErrClosed.
func (s *Session) Handle(line string) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.expireLocked()
	if s.state != Listening {
		return "", ErrClosed
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}

	key, value, found := strings.Cut(line, ":")
	if !found || !config.IsKey(key) {
		s.log.Warnf("Invalid command [%v]", line)
		CommandsTotal.WithLabelValues("error").Inc()
		return "ERROR " + line, nil
	}

	next := s.cfg
	if err := next.Set(key, value); err != nil {
		s.log.Warnf("Rejected [%v] [%v]", key, err)
		CommandsTotal.WithLabelValues("error").Inc()
		return "ERROR " + line, nil
	}
	if err := s.store.Save(next); err != nil {
		s.log.Errorf("Failed to save configuration [%v]", err)
		CommandsTotal.WithLabelValues("error").Inc()
		return "ERROR " + line, nil
	}
	s.cfg = next

	deadline := s.opts.Now().Add(s.opts.Timeout)
	if limit := s.opened.Add(s.opts.MaxDuration); deadline.After(limit) {
		deadline = limit
	}
	s.deadline = deadline

	s.log.Infof("Set [%v]", key)
	CommandsTotal.WithLabelValues("ok").Inc()
	return "OK " + line, nil
}

// Run opens the session on ch and serves it until the session expires or ctx
// is cancelled. ch is closed before Run returns. The final configuration is
// returned either way.
func (s *Session) Run(ctx context.Context, ch io.ReadWriteCloser) config.Configuration {
	s.Open()
	defer func() {
		s.Close()
		if err := ch.Close(); err != nil {
			s.log.Debugf("Channel close [%v]", err)
		}
	}()

	done := make(chan struct{})
	defer close(done)
	lines := make(chan received)
	go func() {
		reader := bufio.NewReaderSize(ch, maxLineLen)
		for {
			line, tooLong, err := readLine(reader)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					s.log.Debugf("Channel read stopped [%v]", err)
				}
				close(lines)
				return
			}
			select {
			case lines <- received{line: line, tooLong: tooLong}:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Provisioning torn down")
			return s.Configuration()
		case in, ok := <-lines:
			if !ok {
				// peer went away, wait out the window in case it reconnects
				lines = nil
				continue
			}
			s.log.Debugf("Received [%v]", redact(in.line))
			var reply string
			var err error
			if in.tooLong {
				reply, err = s.refuse(in.line)
			} else {
				reply, err = s.Handle(in.line)
			}
			if err != nil {
				return s.Configuration()
			}
			if reply == "" {
				continue
			}
			if _, err := io.WriteString(ch, reply+"\n"); err != nil {
				s.log.Warnf("Failed to reply [%v]", err)
			}
		case <-ticker.C:
			if s.Expired() {
				return s.Configuration()
			}
		}
	}
}

type received struct {
	line    string
	tooLong bool
}

// readLine returns the next line without its ending. Anything past maxLineLen
// is read and discarded, and the second result reports it.
func readLine(r *bufio.Reader) (string, bool, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, more, err := r.ReadLine()
		if err != nil {
			return "", false, err
		}
		if room := maxLineLen - len(buf); len(chunk) > room {
			chunk = chunk[:room]
			tooLong = true
		}
		buf = append(buf, chunk...)
		if !more {
			return string(buf), tooLong, nil
		}
	}
}

// refuse answers a line that was cut short by maxLineLen. It is never
// applied, whatever it starts with.
func (s *Session) refuse(line string) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.expireLocked()
	if s.state != Listening {
		return "", ErrClosed
	}
	s.log.Warnf("Line longer than [%v] bytes [%v]", maxLineLen, redact(line))
	CommandsTotal.WithLabelValues("error").Inc()
	return "ERROR " + strings.TrimSpace(line), nil
}

// redact hides secret values in log output.
func redact(line string) string {
	key, _, found := strings.Cut(strings.TrimSpace(line), ":")
	if found && (key == config.KeyPassword || key == config.KeyWriteKey) {
		return key + ":****"
	}
	return line
}
