// Package soundfx plays short feedback cues through the system sound theme.
// Playback is fire-and-forget; a missing player or sound degrades to silence.
package soundfx

import (
	"log/slog"
	"os/exec"
	"sync"
)

// Cue names a feedback sound.
type Cue string

const (
	CueStart    Cue = "start"
	CueStop     Cue = "stop"
	CueComplete Cue = "complete"
	CueError    Cue = "error"
)

// freedesktop sound theme event ids.
var themeEvents = map[Cue]string{
	CueStart:    "audio-volume-change",
	CueStop:     "message-sent-instant",
	CueComplete: "complete",
	CueError:    "dialog-error",
}

// Player plays cues. The zero value is unusable; use NewPlayer.
type Player struct {
	enabled bool

	once    sync.Once
	backend []string
}

// NewPlayer creates a cue player. When enabled is false every Play is a
// no-op.
func NewPlayer(enabled bool) *Player {
	return &Player{enabled: enabled}
}

func (p *Player) detect() {
	if _, err := exec.LookPath("canberra-gtk-play"); err == nil {
		p.backend = []string{"canberra-gtk-play", "-i"}
		return
	}
	if _, err := exec.LookPath("paplay"); err == nil {
		// paplay has no theme lookup; use the shipped freedesktop files.
		p.backend = []string{"paplay", "/usr/share/sounds/freedesktop/stereo/"}
		return
	}
	slog.Debug("no sound player found, cues disabled")
}

// Play triggers a cue without blocking. Errors are logged, not returned;
// feedback sounds are never worth failing an operation over.
func (p *Player) Play(cue Cue) {
	if p == nil || !p.enabled {
		return
	}
	p.once.Do(p.detect)
	if p.backend == nil {
		return
	}

	event, ok := themeEvents[cue]
	if !ok {
		return
	}

	var cmd *exec.Cmd
	switch p.backend[0] {
	case "canberra-gtk-play":
		cmd = exec.Command(p.backend[0], p.backend[1], event)
	case "paplay":
		cmd = exec.Command(p.backend[0], p.backend[1]+event+".oga")
	default:
		return
	}

	go func() {
		if err := cmd.Run(); err != nil {
			slog.Debug("sound cue failed", "cue", cue, "err", err)
		}
	}()
}
