// Package media provides the daemon-side stand-ins for the opaque media
// session and permission collaborators. A real deployment links a front end
// that supplies its own implementations; the loopback provider keeps the
// call machine fully functional without one.
package media

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrAlreadyJoined is returned by Connect when a session is already live.
var ErrAlreadyJoined = errors.New("media session already joined")

// LoopbackProvider confirms joins immediately and tracks mute/camera state.
type LoopbackProvider struct {
	log *zap.Logger

	mu       sync.Mutex
	joined   bool
	muted    bool
	cameraOn bool
}

// NewLoopbackProvider creates a loopback media session provider.
func NewLoopbackProvider(log *zap.Logger) *LoopbackProvider {
	return &LoopbackProvider{log: log}
}

// Connect joins the media room. The loopback session is live as soon as
// Connect returns.
func (p *LoopbackProvider) Connect(ctx context.Context, token, room, serverURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.joined {
		return ErrAlreadyJoined
	}
	p.joined = true
	p.muted = false
	p.cameraOn = false
	p.log.Info("media session joined (loopback)",
		zap.String("room", room),
		zap.String("server", serverURL))
	return nil
}

// Disconnect releases the session. Idempotent.
func (p *LoopbackProvider) Disconnect() {
	p.mu.Lock()
	wasJoined := p.joined
	p.joined = false
	p.mu.Unlock()
	if wasJoined {
		p.log.Info("media session released (loopback)")
	}
}

// ToggleMute flips the microphone and returns the new muted state.
func (p *LoopbackProvider) ToggleMute() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = !p.muted
	return p.muted
}

// ToggleCamera enables or disables the camera track.
func (p *LoopbackProvider) ToggleCamera(enabled bool) {
	p.mu.Lock()
	p.cameraOn = enabled
	p.mu.Unlock()
}

// Joined reports whether a session is currently live.
func (p *LoopbackProvider) Joined() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.joined
}
