// Package announce optionally advertises the running daemon over
// mDNS/DNS-SD, so a logging client on the same network can find it
// without the operator typing in a hostname and port.
//
// Grounded directly on _examples/doismellburning-samoyed/src/dns_sd.go,
// adapted from KISS-over-TCP announcement to cwdaemon's UDP control
// port; this is the teacher's only use of github.com/brutella/dnssd,
// and it is otherwise unwired in the teacher tree.
package announce

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// ServiceType is the DNS-SD service type clients browse for.
const ServiceType = "_cwdaemon._udp"

// Start registers and begins responding to mDNS/DNS-SD queries for the
// daemon's control port. It returns a stop function the caller should
// invoke on shutdown. Failures are logged, not fatal: DNS-SD is a
// discovery convenience, not a requirement for the protocol to work
// (spec.md's UDP request/reply model never depends on it).
func Start(ctx context.Context, logger *log.Logger, name string, port int) (stop func(), err error) {
	if name == "" {
		name = defaultServiceName()
	}

	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("DNS-SD: creating service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("DNS-SD: creating responder: %w", err)
	}

	if _, err := responder.Add(service); err != nil {
		return nil, fmt.Errorf("DNS-SD: adding service: %w", err)
	}

	respondCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := responder.Respond(respondCtx); err != nil && respondCtx.Err() == nil {
			if logger != nil {
				logger.Errorf("DNS-SD responder stopped: %v", err)
			}
		}
	}()

	if logger != nil {
		logger.Infof("DNS-SD: announcing %s on UDP port %d as %q", ServiceType, port, name)
	}

	return cancel, nil
}

func defaultServiceName() string {
	return "cwdaemon"
}
