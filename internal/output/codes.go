// Package output writes command results as JSON envelopes or plain text
// and maps errors to exit codes.
package output

import "github.com/basecamp/netkit/internal/neterr"

// Exit codes.
const (
	ExitOK        = 0 // Success
	ExitUsage     = 1 // Invalid arguments, flags or request
	ExitNotFound  = 2 // Resource or fixture not found
	ExitAuth      = 3 // Missing or rejected credentials
	ExitForbidden = 4 // Access denied
	ExitNetwork   = 6 // Connection/DNS/TLS/timeout error
	ExitAPI       = 7 // Server returned an error, or anything else
)

// Error codes for the JSON envelope.
const (
	CodeUsage     = "usage"
	CodeNotFound  = "not_found"
	CodeAuth      = "auth_required"
	CodeForbidden = "forbidden"
	CodeNetwork   = "network"
	CodeAPI       = "api_error"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeAuth:
		return ExitAuth
	case CodeForbidden:
		return ExitForbidden
	case CodeNetwork:
		return ExitNetwork
	default:
		return ExitAPI
	}
}

// CodeForKind groups a domain error kind into an envelope code.
func CodeForKind(k neterr.Kind) string {
	switch k {
	case neterr.InvalidRequest, neterr.URLCreationFailed, neterr.BadRequest:
		return CodeUsage
	case neterr.NotFound:
		return CodeNotFound
	case neterr.UnAuthorized, neterr.RequestRequiresAccessToken:
		return CodeAuth
	case neterr.Forbidden:
		return CodeForbidden
	case neterr.NoInternet, neterr.NoDataConnection, neterr.RequestTimeOut,
		neterr.DomainError, neterr.RequestFailed:
		return CodeNetwork
	default:
		return CodeAPI
	}
}
