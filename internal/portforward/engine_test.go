package portforward

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestEngine() *Engine {
	return New(func(ctx context.Context, containerID string, port int) (net.Conn, error) {
		return nil, context.Canceled
	})
}

func TestHandleAutoForward_OpenBrowserOnce(t *testing.T) {
	e := newTestEngine()

	open, notify := e.HandleAutoForward("c1", 3000, ActionOpenBrowserOnce)
	assert.True(t, open)
	assert.True(t, notify)

	open, notify = e.HandleAutoForward("c1", 3000, ActionOpenBrowserOnce)
	assert.False(t, open, "browser should only open once per (container, port)")
	assert.True(t, notify)
}

func TestHandleAutoForward_Ignore(t *testing.T) {
	e := newTestEngine()
	open, notify := e.HandleAutoForward("c1", 9000, ActionIgnore)
	assert.False(t, open)
	assert.False(t, notify)
	assert.False(t, e.IsAutoForwarded("c1", 9000))
}

func TestHandleAutoForward_Silent(t *testing.T) {
	e := newTestEngine()
	open, notify := e.HandleAutoForward("c1", 9001, ActionSilent)
	assert.False(t, open)
	assert.False(t, notify)
	assert.True(t, e.IsAutoForwarded("c1", 9001))
}

func TestForward_ReusesExistingRelay(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	addr1, err := e.Forward(ctx, "c1", 8080)
	assert.NoError(t, err)

	addr2, err := e.Forward(ctx, "c1", 8080)
	assert.NoError(t, err)
	assert.Equal(t, addr1, addr2)

	e.StopAll("c1")
}
