// Package v1 holds the console session and device registration logic.
//
// Error Handling:
// Sentinel errors below are wrapped with context using fmt.Errorf("%w") and
// mapped to HTTP answers by the web layer:
//
//	switch {
//	case errors.Is(err, logicv1.ErrNotAuthenticated):
//	    c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
//	case errors.Is(err, logicv1.ErrInvalidDeviceToken):
//	    c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
//	default:
//	    c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
//	}
//
// SessionProvider.Login never returns an error; its failures are folded into
// domain.LoginResult.
package v1

import "errors"

var (
	// ErrNotAuthenticated indicates the operation needs an authenticated session.
	// HTTP Status: 401 Unauthorized
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidCredentials indicates the backend rejected the login.
	// HTTP Status: 401 Unauthorized
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMissingAccessToken indicates a successful login answer without a token.
	// HTTP Status: 502 Bad Gateway
	ErrMissingAccessToken = errors.New("login response carried no access token")

	// ErrProfileUnavailable indicates /auth/me failed for a stored token.
	// HTTP Status: 401 Unauthorized
	ErrProfileUnavailable = errors.New("profile unavailable")

	// ErrInvalidDeviceToken indicates an empty or oversized registration token.
	// HTTP Status: 400 Bad Request
	ErrInvalidDeviceToken = errors.New("invalid device token")
)
