package notify

import (
	"context"

	pkgzerolog "github.com/duynhne/pkg/logger/zerolog"

	"github.com/duynhne/sawa-admin/internal/core/domain"
)

// Browser is the native notification capability.
type Browser interface {
	// Supported reports whether notifications can be shown at all.
	Supported() bool
	// Permission returns the current permission without prompting.
	Permission() domain.Permission
	// RequestPermission shows the native permission prompt.
	RequestPermission(ctx context.Context) (domain.Permission, error)
}

// Confirmer asks the user whether they want notifications before the native
// prompt is shown.
type Confirmer interface {
	Confirm(ctx context.Context) (bool, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context) (bool, error) { return f(ctx) }

// PermissionStep is a state of PermissionFlow.
type PermissionStep string

const (
	StepAwaitingUserConfirmation  PermissionStep = "awaiting_user_confirmation"
	StepAwaitingBrowserPermission PermissionStep = "awaiting_browser_permission"
	StepResolved                  PermissionStep = "resolved"
)

// PermissionFlow asks for confirmation first and only then for the native
// permission:
//
//	AwaitingUserConfirmation → AwaitingBrowserPermission → Resolved(permission)
//
// Missing support or an already decided permission resolve immediately.
type PermissionFlow struct {
	browser   Browser
	confirmer Confirmer
	step      PermissionStep
	result    domain.Permission
}

// NewPermissionFlow starts a flow from the current browser state.
func NewPermissionFlow(browser Browser, confirmer Confirmer) *PermissionFlow {
	f := &PermissionFlow{browser: browser, confirmer: confirmer}

	switch {
	case browser == nil || !browser.Supported():
		f.resolve(domain.PermissionDenied)
	case browser.Permission() != domain.PermissionDefault:
		f.resolve(browser.Permission())
	default:
		f.step = StepAwaitingUserConfirmation
	}
	return f
}

// Step returns the current state.
func (f *PermissionFlow) Step() PermissionStep { return f.step }

// Result returns the permission once the flow is resolved.
func (f *PermissionFlow) Result() (domain.Permission, bool) {
	return f.result, f.step == StepResolved
}

// Advance performs one transition and returns the new state.
func (f *PermissionFlow) Advance(ctx context.Context) PermissionStep {
	logger := pkgzerolog.FromContext(ctx)

	switch f.step {
	case StepAwaitingUserConfirmation:
		if f.confirmer == nil {
			f.resolve(domain.PermissionDenied)
			break
		}
		ok, err := f.confirmer.Confirm(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Notification confirmation failed")
		}
		if err != nil || !ok {
			f.resolve(domain.PermissionDenied)
			break
		}
		f.step = StepAwaitingBrowserPermission

	case StepAwaitingBrowserPermission:
		perm, err := f.browser.RequestPermission(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Native permission prompt failed")
			perm = domain.PermissionDenied
		}
		f.resolve(perm)
	}
	return f.step
}

// Run advances until resolved and returns the permission.
func (f *PermissionFlow) Run(ctx context.Context) domain.Permission {
	for f.step != StepResolved {
		f.Advance(ctx)
	}
	return f.result
}

func (f *PermissionFlow) resolve(p domain.Permission) {
	if p == "" {
		p = domain.PermissionDefault
	}
	f.step = StepResolved
	f.result = p
}
