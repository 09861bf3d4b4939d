package signin

import "sync"

const (
	labelHidePassword = "Hide password"
	labelShowPassword = "Show password"
)

// SharedVisibility is a visibility flag shared by sibling password inputs.
type SharedVisibility struct {
	mu      sync.RWMutex
	visible bool
}

// Visible reports the shared flag.
func (s *SharedVisibility) Visible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible
}

// SetVisible updates the shared flag.
func (s *SharedVisibility) SetVisible(visible bool) {
	s.mu.Lock()
	s.visible = visible
	s.mu.Unlock()
}

// PasswordVisibility is the show/hide state of one password input. When
// attached to a SharedVisibility a toggle on one input reveals its siblings.
type PasswordVisibility struct {
	mu      sync.Mutex
	visible bool
	shared  *SharedVisibility
}

// NewPasswordVisibility returns a hidden input state, optionally bound to shared.
func NewPasswordVisibility(shared *SharedVisibility) *PasswordVisibility {
	return &PasswordVisibility{shared: shared}
}

// Toggle flips the local flag and propagates it to the shared flag.
func (p *PasswordVisibility) Toggle() bool {
	p.mu.Lock()
	p.visible = !p.visible
	visible := p.visible
	p.mu.Unlock()

	if p.shared != nil {
		p.shared.SetVisible(visible)
	}
	return visible
}

// Visible reports whether the password is shown. A true shared flag wins.
func (p *PasswordVisibility) Visible() bool {
	if p.shared != nil && p.shared.Visible() {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// InputType is the HTML input type to render.
func (p *PasswordVisibility) InputType() string {
	if p.Visible() {
		return "text"
	}
	return "password"
}

// ToggleLabel is the accessible label of the toggle button.
func (p *PasswordVisibility) ToggleLabel() string {
	if p.Visible() {
		return labelHidePassword
	}
	return labelShowPassword
}
