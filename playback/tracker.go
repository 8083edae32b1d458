package playback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	ErrPlayerUnavailable = errors.New("media player failed to load")
	ErrPlayerClosed      = errors.New("media player closed")
	ErrSessionNotActive  = errors.New("watch session not active")
)

// PlayerState is what the media player reports through its state callback.
type PlayerState int

const (
	PlayerPlaying PlayerState = iota + 1
	PlayerPaused
	PlayerEnded
)

func (s PlayerState) String() string {
	switch s {
	case PlayerPlaying:
		return "playing"
	case PlayerPaused:
		return "paused"
	case PlayerEnded:
		return "ended"
	}
	return fmt.Sprintf("PlayerState(%d)", int(s))
}

// Player is the slice of the external media player the tracker needs.
type Player interface {
	// Ready blocks until the player finished loading.
	Ready(ctx context.Context) error
	CurrentTime() float64
	Duration() float64
	StateChanges() <-chan PlayerState
}

// Completer reports a natural completion to the ledger.
type Completer interface {
	CompleteWatch(ctx context.Context, videoID string, watchTimeSeconds int) (*Completion, error)
}

// Completion is the ledger's answer to a completed watch.
type Completion struct {
	Success        bool       `json:"success"`
	PointsCredited int64      `json:"pointsCredited,omitempty"`
	NewBalance     int64      `json:"newBalance,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	NextEligibleAt *time.Time `json:"nextEligibleAt,omitempty"`
}

// Listener receives UI-facing session events. MilestoneFired and ComboReset
// run with the tracker locked and must not call back into it.
type Listener interface {
	MilestoneFired(FiredMilestone)
	ComboReset()
	SessionEnded(State, *Completion, error)
}

// FiredMilestone describes one in-session award.
type FiredMilestone struct {
	Index         int
	Milestone     Milestone
	Combo         int
	Awarded       int64
	SessionPoints int64
}

// State of a watch session.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateEnded
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateEnded || s == StateAbandoned }

// Video is the metadata a session needs.
type Video struct {
	ID              string
	PointBudget     int64
	DurationSeconds float64
}

// Config tunes the tracker.
type Config struct {
	PollInterval time.Duration
	ComboTimeout time.Duration
	MaxCombo     int
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 250 * time.Millisecond,
		ComboTimeout: 5 * time.Second,
		MaxCombo:     5,
	}
}

// Session is a snapshot of the ephemeral watch state.
type Session struct {
	State         State
	CurrentTime   float64
	Duration      float64
	Milestones    []Milestone
	Combo         int
	ComboDeadline time.Time
	SessionPoints int64
	PointBudget   int64
}

type noopListener struct{}

func (noopListener) MilestoneFired(FiredMilestone)          {}
func (noopListener) ComboReset()                            {}
func (noopListener) SessionEnded(State, *Completion, error) {}

// Tracker owns one watch session.
type Tracker struct {
	mu sync.Mutex

	video     Video
	player    Player
	completer Completer
	clock     clockwork.Clock
	listener  Listener
	cfg       Config

	state         State
	duration      float64
	currentTime   float64
	milestones    []Milestone
	combo         int
	lastFire      time.Time
	comboDeadline time.Time
	sessionPoints int64
	decay         clockwork.Timer

	completion    *Completion
	completionErr error
}

// NewTracker wires a tracker. A nil clock means the real clock.
func NewTracker(video Video, player Player, completer Completer, clock clockwork.Clock, cfg Config) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ComboTimeout <= 0 {
		cfg.ComboTimeout = def.ComboTimeout
	}
	if cfg.MaxCombo <= 0 {
		cfg.MaxCombo = def.MaxCombo
	}
	return &Tracker{
		video:     video,
		player:    player,
		completer: completer,
		clock:     clock,
		listener:  noopListener{},
		cfg:       cfg,
		combo:     1,
	}
}

// SetListener installs l for session events.
func (t *Tracker) SetListener(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if l == nil {
		l = noopListener{}
	}
	t.listener = l
}

// Start generates the milestone schedule. It must be called once, after the
// player is ready, before any tick.
func (t *Tracker) Start(rng Rand) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateIdle || t.milestones != nil {
		return fmt.Errorf("start: session already %s", t.state)
	}

	t.duration = t.video.DurationSeconds
	if d := t.player.Duration(); d > 0 {
		t.duration = d
	}
	t.milestones = GenerateMilestones(t.duration, t.video.PointBudget, rng)
	if t.milestones == nil {
		t.milestones = []Milestone{}
	}
	return nil
}

// endTolerance is how far short of the duration a player may report ended.
const endTolerance = 1.0

// HandleState applies a player state change. Ended only counts while a
// session is playing or paused and the position is at the end of the video.
func (t *Tracker) HandleState(ctx context.Context, ps PlayerState) {
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return
	}
	switch ps {
	case PlayerPlaying:
		t.state = StatePlaying
		t.mu.Unlock()
	case PlayerPaused:
		if t.state == StatePlaying {
			t.state = StatePaused
		}
		t.mu.Unlock()
	case PlayerEnded:
		if t.state != StatePlaying && t.state != StatePaused {
			state := t.state
			t.mu.Unlock()
			log.Printf("[PLAYBACK] ignoring ended signal in state %s for video %s", state, t.video.ID)
			return
		}
		pos := t.player.CurrentTime()
		if t.duration > 0 && pos < t.duration-endTolerance {
			t.mu.Unlock()
			log.Printf("[PLAYBACK] ignoring ended signal at %.1fs of %.1fs for video %s", pos, t.duration, t.video.ID)
			return
		}
		t.currentTime = pos
		t.fireDueLocked()
		t.mu.Unlock()
		t.end(ctx)
	default:
		t.mu.Unlock()
		log.Printf("[PLAYBACK] ignoring unknown player state %v for video %s", ps, t.video.ID)
	}
}

// Tick samples the play position. It fires due milestones and ends the
// session once the position reaches the duration.
func (t *Tracker) Tick(ctx context.Context) {
	t.mu.Lock()
	if t.state != StatePlaying {
		t.mu.Unlock()
		return
	}
	t.expireComboLocked(t.clock.Now())
	t.currentTime = t.player.CurrentTime()
	t.fireDueLocked()
	done := t.duration > 0 && t.currentTime >= t.duration
	t.mu.Unlock()

	if done {
		t.end(ctx)
	}
}

// fireDueLocked claims every reached milestone in schedule order.
func (t *Tracker) fireDueLocked() {
	for i := range t.milestones {
		m := &t.milestones[i]
		if m.Claimed || t.currentTime < m.OffsetSeconds {
			continue
		}
		m.Claimed = true
		now := t.clock.Now()

		if !t.lastFire.IsZero() && now.Sub(t.lastFire) <= t.cfg.ComboTimeout {
			t.combo = min(t.combo+1, t.cfg.MaxCombo)
		} else {
			t.combo = 1
		}
		t.lastFire = now
		t.comboDeadline = now.Add(t.cfg.ComboTimeout)
		t.armDecayLocked()

		award := m.BasePoints * m.Multiplier * int64(t.combo)
		if room := t.video.PointBudget - t.sessionPoints; award > room {
			award = room
		}
		t.sessionPoints += award

		t.listener.MilestoneFired(FiredMilestone{
			Index:         i,
			Milestone:     *m,
			Combo:         t.combo,
			Awarded:       award,
			SessionPoints: t.sessionPoints,
		})
	}
}

func (t *Tracker) armDecayLocked() {
	if t.decay == nil {
		t.decay = t.clock.NewTimer(t.cfg.ComboTimeout)
		return
	}
	t.decay.Stop()
	t.decay.Reset(t.cfg.ComboTimeout)
}

// expireComboLocked drops the combo once its deadline passed without a fire.
func (t *Tracker) expireComboLocked(now time.Time) {
	if t.combo == 1 || t.comboDeadline.IsZero() || !now.After(t.comboDeadline) {
		return
	}
	t.combo = 1
	t.listener.ComboReset()
}

// DecayCombo is the decay timer callback.
func (t *Tracker) DecayCombo() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() || t.combo == 1 {
		return
	}
	t.combo = 1
	t.listener.ComboReset()
}

// Abandon ends the session without crediting. Session points are discarded.
func (t *Tracker) Abandon() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.state = StateAbandoned
	t.sessionPoints = 0
	t.stopDecayLocked()
	t.listener.SessionEnded(StateAbandoned, nil, nil)
}

func (t *Tracker) stopDecayLocked() {
	if t.decay != nil {
		t.decay.Stop()
	}
}

// end moves to Ended and makes the single ledger call of the session.
func (t *Tracker) end(ctx context.Context) {
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return
	}
	t.state = StateEnded
	t.stopDecayLocked()
	watched := int(t.currentTime)
	if d := int(t.duration); watched > d {
		watched = d
	}
	t.mu.Unlock()

	var (
		res *Completion
		err error
	)
	if t.completer != nil {
		res, err = t.completer.CompleteWatch(ctx, t.video.ID, watched)
		if err != nil {
			log.Printf("[PLAYBACK] ⚠️ completion for video %s not confirmed: %v", t.video.ID, err)
		}
	}

	t.mu.Lock()
	t.completion, t.completionErr = res, err
	listener := t.listener
	t.mu.Unlock()
	listener.SessionEnded(StateEnded, res, err)
}

// Snapshot copies the current session state.
func (t *Tracker) Snapshot() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	ms := make([]Milestone, len(t.milestones))
	copy(ms, t.milestones)
	return Session{
		State:         t.state,
		CurrentTime:   t.currentTime,
		Duration:      t.duration,
		Milestones:    ms,
		Combo:         t.combo,
		ComboDeadline: t.comboDeadline,
		SessionPoints: t.sessionPoints,
		PointBudget:   t.video.PointBudget,
	}
}

// Result returns the ledger outcome once the session Ended.
func (t *Tracker) Result() (*Completion, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateEnded {
		return nil, ErrSessionNotActive
	}
	return t.completion, t.completionErr
}

// Run drives the session until it ends, is abandoned, or ctx is cancelled.
// A player load failure leaves the tracker Idle so the caller may retry.
func (t *Tracker) Run(ctx context.Context, rng Rand) error {
	if err := t.player.Ready(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrPlayerUnavailable, err)
	}
	if err := t.Start(rng); err != nil {
		return err
	}

	ticker := t.clock.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	states := t.player.StateChanges()

	for {
		var decayC <-chan time.Time
		t.mu.Lock()
		if t.decay != nil {
			decayC = t.decay.Chan()
		}
		t.mu.Unlock()

		select {
		case <-ctx.Done():
			t.Abandon()
			return ctx.Err()
		case ps, ok := <-states:
			if !ok {
				t.Abandon()
				return ErrPlayerClosed
			}
			t.HandleState(ctx, ps)
		case <-ticker.Chan():
			t.Tick(ctx)
		case <-decayC:
			t.DecayCombo()
		}

		if st := t.Snapshot().State; st.Terminal() {
			if st == StateEnded {
				_, err := t.Result()
				return err
			}
			return nil
		}
	}
}
