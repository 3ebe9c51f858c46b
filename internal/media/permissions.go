package media

import "context"

// StaticGate answers permission requests from daemon configuration. A
// headless daemon has no prompt to show; the operator grants devices in
// config.toml and the gate reports that decision.
type StaticGate struct {
	Microphone bool
	Camera     bool
}

func (g StaticGate) RequestMicrophone(_ context.Context) bool { return g.Microphone }
func (g StaticGate) RequestCamera(_ context.Context) bool     { return g.Camera }
