package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// DefaultNTPServer is the pool queried when no server is configured.
const DefaultNTPServer = "pool.ntp.org"

// NTP queries an NTP server for the local clock offset.
type NTP struct {
	server  string
	timeout time.Duration
}

// NewNTP creates an NTP source for server ("" = DefaultNTPServer).
func NewNTP(server string, timeout time.Duration) *NTP {
	if server == "" {
		server = DefaultNTPServer
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NTP{server: server, timeout: timeout}
}

// Offset performs one query and validates the response.
func (n *NTP) Offset(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	timeout := n.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}

	resp, err := ntp.QueryWithOptions(n.server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, fmt.Errorf("ntp query %s: %w", n.server, err)
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("ntp response from %s: %w", n.server, err)
	}
	return resp.ClockOffset, nil
}

// System trusts the host clock once it shows a plausible time, for hosts
// that are synchronized by the operating system.
type System struct {
	now func() time.Time
}

// NewSystem creates a System source.
func NewSystem() *System {
	return &System{now: time.Now}
}

// Offset returns zero once the host clock is plausible.
func (s *System) Offset(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if t := s.now(); t.Before(plausibleAfter) {
		return 0, fmt.Errorf("%w: host clock reads %s", ErrImplausible, t.Format(Layout))
	}
	return 0, nil
}
