// Package hook models function interception.
//
// An Installer patches one target so that calls reach a replacement built
// around the target's pre-hook behaviour. How the patch is applied is the
// installer's business: Slot does it for Go function values, a native
// detour library would do it for machine code. Hooks are not removed during
// normal operation.
package hook

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var ErrAlreadyInstalled = errors.New("hook: already installed")

type Installer[F any] interface {
	// Install passes the current behaviour to wrap and routes later calls to
	// the function wrap returns.
	Install(wrap func(original F) F) error
}

// Hook is the handle of an installed interception.
type Hook[F any] struct {
	name     string
	original F
}

func (h *Hook[F]) Name() string { return h.name }

// Original calls through to the behaviour that was in place before the hook.
func (h *Hook[F]) Original() F { return h.original }

// Install hooks target with the replacement produced by wrap.
func Install[F any](name string, target Installer[F], wrap func(original F) F) (*Hook[F], error) {
	h := &Hook[F]{name: name}
	err := target.Install(func(original F) F {
		h.original = original
		return wrap(original)
	})
	if err != nil {
		return nil, fmt.Errorf("install hook %s: %w", name, err)
	}
	return h, nil
}

// Slot is an interceptable function value. Calls go through Load.
type Slot[F any] struct {
	mu        sync.Mutex
	base      F
	current   atomic.Pointer[F]
	installed bool
}

func NewSlot[F any](fn F) *Slot[F] {
	s := &Slot[F]{base: fn}
	s.current.Store(&fn)
	return s
}

// Load returns the function calls should currently go to.
func (s *Slot[F]) Load() F {
	return *s.current.Load()
}

func (s *Slot[F]) Install(wrap func(original F) F) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.installed {
		return ErrAlreadyInstalled
	}
	replacement := wrap(s.base)
	s.current.Store(&replacement)
	s.installed = true
	return nil
}

// Uninstall restores the original function.
func (s *Slot[F]) Uninstall() {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := s.base
	s.current.Store(&base)
	s.installed = false
}
