package celestial

import "sync"

// ViewState is the top-level render state.
type ViewState string

const (
	StateSplash      ViewState = "splash"
	StateAuthPending ViewState = "auth_pending"
	StateSignedOut   ViewState = "signed_out"
	StateSignedIn    ViewState = "signed_in"
)

// DetailPhase is the sub-state while signed in.
type DetailPhase string

const (
	PhaseLoading    DetailPhase = "loading"
	PhaseCalendar   DetailPhase = "showing_calendar"
	PhaseDateDetail DetailPhase = "showing_date_detail"
)

// AuthStatus is the collaborator boundary for auth: the core receives only
// this status and never reads credential material.
type AuthStatus string

const (
	AuthPending   AuthStatus = "pending"
	AuthSignedIn  AuthStatus = "signed_in"
	AuthSignedOut AuthStatus = "signed_out"
)

// ViewStateController translates session status, load status, and date
// selection into one of a fixed set of render states. It holds no data of
// its own beyond the current state.
type ViewStateController struct {
	mu    sync.Mutex
	state ViewState
	phase DetailPhase
}

func NewViewStateController() *ViewStateController {
	return &ViewStateController{state: StateSplash}
}

// State returns the current render state and, when signed in, the detail
// phase.
func (c *ViewStateController) State() (ViewState, DetailPhase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.phase
}

// SplashElapsed exits the splash state after its fixed display interval.
// If the session check has not resolved yet, the machine waits in
// AuthPending.
func (c *ViewStateController) SplashElapsed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSplash {
		c.state = StateAuthPending
	}
}

// ResolveAuth applies a session check result. It exits splash directly
// when the check resolves first. SignedOut -> SignedIn only happens
// through a signed-in status, i.e. a successful authentication callback.
func (c *ViewStateController) ResolveAuth(status AuthStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch status {
	case AuthPending:
		if c.state == StateSplash {
			c.state = StateAuthPending
		}
	case AuthSignedOut:
		c.state = StateSignedOut
		c.phase = ""
	case AuthSignedIn:
		c.state = StateSignedIn
		c.phase = PhaseLoading
	}
}

// LoadCompleted moves from the initial load to the calendar surface.
func (c *ViewStateController) LoadCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSignedIn && c.phase == PhaseLoading {
		c.phase = PhaseCalendar
	}
}

// ImageReady fires when a selection's image-of-day snapshot becomes ready,
// moving the calendar to the date detail surface.
func (c *ViewStateController) ImageReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSignedIn && c.phase == PhaseCalendar {
		c.phase = PhaseDateDetail
	}
}

// NavigateBack returns from the date detail to the calendar. This only
// happens on explicit user navigation, never automatically.
func (c *ViewStateController) NavigateBack() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSignedIn && c.phase == PhaseDateDetail {
		c.phase = PhaseCalendar
	}
}

// SignOut returns the machine to SignedOut from any signed-in state.
func (c *ViewStateController) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSignedIn {
		c.state = StateSignedOut
		c.phase = ""
	}
}
