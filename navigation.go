package signin

import (
	"context"
	"net/url"
	"strings"
)

// NavigatorFuncs adapts a pair of functions to the Navigator interface.
type NavigatorFuncs struct {
	NavigateFunc     func(ctx context.Context, to string, state *LocationState) error
	HardNavigateFunc func(ctx context.Context, to string) error
}

// Navigate implements Navigator.
func (n NavigatorFuncs) Navigate(ctx context.Context, to string, state *LocationState) error {
	if n.NavigateFunc == nil {
		return nil
	}
	return n.NavigateFunc(ctx, to, state)
}

// HardNavigate implements Navigator.
func (n NavigatorFuncs) HardNavigate(ctx context.Context, to string) error {
	if n.HardNavigateFunc == nil {
		return nil
	}
	return n.HardNavigateFunc(ctx, to)
}

// HandleNavigation computes the target for opts and dispatches it to
// navigator.
func HandleNavigation(ctx context.Context, router *Router, opts NavigationOptions, navigator Navigator) (NavigationTarget, error) {
	if router == nil || navigator == nil {
		return NavigationTarget{}, ErrMissingDependency
	}

	target, err := router.Target(ctx, opts)
	if err != nil {
		return NavigationTarget{}, err
	}
	return target, Dispatch(ctx, target, navigator)
}

// Dispatch performs the side effect described by target.
func Dispatch(ctx context.Context, target NavigationTarget, navigator Navigator) error {
	if target.HardNavigate {
		return navigator.HardNavigate(ctx, target.To)
	}
	return navigator.Navigate(ctx, target.To, target.State)
}

// ContentServerTarget is a hard navigation to path on the content server.
func ContentServerTarget(contentServerURL, path string, params url.Values) NavigationTarget {
	base := strings.TrimRight(contentServerURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	to := base + path
	if encoded := params.Encode(); encoded != "" {
		to += "?" + encoded
	}
	return NavigationTarget{To: to, HardNavigate: true}
}

// DifferentAccountTarget sends the user back to the email first screen with
// email prefilled.
func DifferentAccountTarget(email string) NavigationTarget {
	to := "/"
	if email != "" {
		to += "?prefillEmail=" + url.QueryEscape(email)
	}
	return NavigationTarget{To: to, HardNavigate: true}
}

// BounceOrigin is where the user came from when an email bounced.
type BounceOrigin string

const (
	BounceOriginSignin BounceOrigin = "signin"
	BounceOriginSignup BounceOrigin = "signup"
)

// BounceTarget handles a hard bounce of email. Sign up attempts restart the
// flow, sign in attempts land on the bounced screen.
func BounceTarget(origin BounceOrigin, email, query string) NavigationTarget {
	params, err := url.ParseQuery(strings.TrimPrefix(strings.TrimSpace(query), "?"))
	if err != nil {
		params = url.Values{}
	}
	params.Del("email")
	params.Del("emailStatusChecked")
	if email != "" {
		params.Set("bouncedEmail", email)
	}

	path := PathSigninBounced
	if origin == BounceOriginSignup {
		path = "/"
	}
	return NavigationTarget{
		To:    withQuery(path, params.Encode()),
		State: &LocationState{Email: email},
	}
}
