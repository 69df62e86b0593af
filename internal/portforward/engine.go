// Package portforward relays TCP traffic between the host and ports
// detected listening inside a devcontainer. Each forwarded port gets
// its own host-side listener plus a supervised relay goroutine, the
// same host-listener / bidirectional-copy shape used for SSH-agent
// socket forwarding elsewhere in this codebase, generalized from one
// fixed socket to an arbitrary (container, port) registry.
package portforward

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/devc/devc/internal/proxy"
)

// AutoForwardAction controls what happens automatically when a new port
// is detected listening inside the container.
type AutoForwardAction string

const (
	ActionNotify          AutoForwardAction = "notify"
	ActionSilent          AutoForwardAction = "silent"
	ActionOpenBrowser     AutoForwardAction = "openBrowser"
	ActionOpenBrowserOnce AutoForwardAction = "openBrowserOnce"
	ActionIgnore          AutoForwardAction = "ignore"
)

// maxRelayFailures and relayFailureWindow bound restart-on-crash
// supervision: a relay that fails this many times inside the window is
// given up on rather than restarted forever.
const (
	maxRelayFailures   = 3
	relayFailureWindow = 30 * time.Second
)

// DetectedPort is a single listening port observed inside a container.
type DetectedPort struct {
	ContainerID string
	Port        int
	Protocol    string // "tcp" or "udp"
	Process     string
}

type relayKey struct {
	containerID string
	port        int
}

// relay supervises one host-listener-to-container-port forwarder.
type relay struct {
	key      relayKey
	listener net.Listener
	cancel   context.CancelFunc
	failures []time.Time
}

// Engine owns the set of active relays and the per-container auto-forward
// bookkeeping (which ports have already been forwarded or had their
// browser tab opened once).
type Engine struct {
	mu     sync.Mutex
	relays map[relayKey]*relay

	autoForwardConfigs map[string][]AutoForwardAction // containerID -> per-port default, indexed by port externally
	autoForwardedPorts map[relayKey]struct{}
	autoOpenedPorts    map[relayKey]struct{}

	dial func(ctx context.Context, containerID string, port int) (net.Conn, error)
}

// New returns an Engine that dials into containers using dial — typically
// a function that execs a relay client inside the container and attaches
// to its stdio, or connects to an exposed port via the provider.
func New(dial func(ctx context.Context, containerID string, port int) (net.Conn, error)) *Engine {
	return &Engine{
		relays:             make(map[relayKey]*relay),
		autoForwardedPorts: make(map[relayKey]struct{}),
		autoOpenedPorts:    make(map[relayKey]struct{}),
		dial:               dial,
	}
}

// Forward starts relaying connections to host listener addr toward
// containerID:port. If a relay for this (container, port) already
// exists, Forward returns its existing listen address unchanged.
func (e *Engine) Forward(ctx context.Context, containerID string, port int) (string, error) {
	key := relayKey{containerID, port}

	e.mu.Lock()
	if r, ok := e.relays[key]; ok {
		addr := r.listener.Addr().String()
		e.mu.Unlock()
		return addr, nil
	}
	e.mu.Unlock()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen for port %d: %w", port, err)
	}

	rctx, cancel := context.WithCancel(ctx)
	r := &relay{key: key, listener: listener, cancel: cancel}

	e.mu.Lock()
	e.relays[key] = r
	e.mu.Unlock()

	go e.acceptLoop(rctx, r)

	return listener.Addr().String(), nil
}

func (e *Engine) acceptLoop(ctx context.Context, r *relay) {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if !e.recordFailure(r) {
				e.stop(r.key)
				return
			}
			continue
		}
		go e.handleConnection(ctx, r, conn)
	}
}

func (e *Engine) handleConnection(ctx context.Context, r *relay, client net.Conn) {
	defer client.Close()

	upstream, err := e.dial(ctx, r.key.containerID, r.key.port)
	if err != nil {
		e.recordFailure(r)
		return
	}
	defer upstream.Close()

	proxy.BidirectionalCopy(client, upstream)
}

// recordFailure appends a failure timestamp and reports whether the
// relay should keep running (true) or has exceeded its restart budget
// (false), per the 3-failures-in-30-seconds supervision policy.
func (e *Engine) recordFailure(r *relay) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-relayFailureWindow)
	kept := r.failures[:0]
	for _, f := range r.failures {
		if f.After(cutoff) {
			kept = append(kept, f)
		}
	}
	r.failures = append(kept, now)
	return len(r.failures) < maxRelayFailures
}

// Stop tears down the relay for containerID:port, if one is running.
func (e *Engine) Stop(containerID string, port int) {
	e.stop(relayKey{containerID, port})
}

func (e *Engine) stop(key relayKey) {
	e.mu.Lock()
	r, ok := e.relays[key]
	if ok {
		delete(e.relays, key)
	}
	e.mu.Unlock()

	if ok {
		r.cancel()
		r.listener.Close()
	}
}

// StopAll tears down every relay belonging to a container, e.g. on `down`.
func (e *Engine) StopAll(containerID string) {
	e.mu.Lock()
	var keys []relayKey
	for k := range e.relays {
		if k.containerID == containerID {
			keys = append(keys, k)
		}
	}
	e.mu.Unlock()

	for _, k := range keys {
		e.stop(k)
	}
}

// HandleAutoForward applies the configured AutoForwardAction for a newly
// detected port. It returns whether a browser should be opened for this
// event, honoring OpenBrowserOnce's per-(container,port) dedup.
func (e *Engine) HandleAutoForward(containerID string, port int, action AutoForwardAction) (openBrowser bool, notify bool) {
	key := relayKey{containerID, port}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch action {
	case ActionIgnore:
		return false, false
	case ActionSilent:
		e.autoForwardedPorts[key] = struct{}{}
		return false, false
	case ActionOpenBrowser:
		e.autoForwardedPorts[key] = struct{}{}
		return true, true
	case ActionOpenBrowserOnce:
		e.autoForwardedPorts[key] = struct{}{}
		if _, already := e.autoOpenedPorts[key]; already {
			return false, true
		}
		e.autoOpenedPorts[key] = struct{}{}
		return true, true
	case ActionNotify, "":
		e.autoForwardedPorts[key] = struct{}{}
		return false, true
	default:
		return false, true
	}
}

// IsAutoForwarded reports whether a port has already been processed for
// auto-forward bookkeeping purposes.
func (e *Engine) IsAutoForwarded(containerID string, port int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.autoForwardedPorts[relayKey{containerID, port}]
	return ok
}
