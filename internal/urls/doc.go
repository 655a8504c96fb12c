// Package urls provides centralized constants for all documentation URLs used
// throughout the application.
//
// All documentation URLs are defined here as exported constants so they can
// be updated in a single location.
//
// Usage:
//
//	import "github.com/muurk/hassupdate/internal/urls"
//
//	fmt.Printf("Create a token: %s\n", urls.AccessTokens)
package urls
