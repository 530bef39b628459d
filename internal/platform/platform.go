// Package platform defines the supported social platforms and the gateway
// tool names each one exposes. Platforms parametrize the generic OAuth
// initiator/callback pair: the only per-platform differences the core flow
// cares about are the tool names and whether PKCE is required.
package platform

import (
	"fmt"
	"sort"
	"strings"
)

// Platform describes one supported social platform.
type Platform struct {
	// Name is the lowercase identifier used in routes and storage keys.
	Name string

	// DisplayName is the human-readable platform name for logs and UI.
	DisplayName string

	// RequiresPKCE marks platforms whose token exchange must carry a
	// PKCE code verifier. For these, a callback without a stored
	// verifier is rejected before any exchange is attempted.
	RequiresPKCE bool

	// AuthURLTool, ExchangeTool, and PostTool are the gateway tool names
	// backing each operation.
	AuthURLTool  string
	ExchangeTool string
	PostTool     string

	// Scopes requested during authorization.
	Scopes []string
}

// ErrUnsupported is returned by Lookup for unknown platform names.
type ErrUnsupported struct {
	Name string
}

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("unsupported platform: %s", e.Name)
}

var registry = map[string]Platform{
	"twitter": {
		Name:         "twitter",
		DisplayName:  "Twitter",
		RequiresPKCE: true,
		AuthURLTool:  "twitter_get_auth_url",
		ExchangeTool: "twitter_exchange_code",
		PostTool:     "twitter_create_post",
		Scopes:       []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
	},
	"linkedin": {
		Name:         "linkedin",
		DisplayName:  "LinkedIn",
		RequiresPKCE: true,
		AuthURLTool:  "linkedin_get_auth_url",
		ExchangeTool: "linkedin_exchange_code",
		PostTool:     "linkedin_create_post",
		Scopes:       []string{"openid", "profile", "w_member_social"},
	},
	"facebook": {
		Name:         "facebook",
		DisplayName:  "Facebook",
		RequiresPKCE: false,
		AuthURLTool:  "facebook_get_auth_url",
		ExchangeTool: "facebook_exchange_code",
		PostTool:     "facebook_create_post",
		Scopes:       []string{"pages_manage_posts", "pages_read_engagement"},
	},
	"instagram": {
		Name:         "instagram",
		DisplayName:  "Instagram",
		RequiresPKCE: false,
		AuthURLTool:  "instagram_get_auth_url",
		ExchangeTool: "instagram_exchange_code",
		PostTool:     "instagram_create_post",
		Scopes:       []string{"instagram_basic", "instagram_content_publish"},
	},
}

// Lookup resolves a platform by name (case-insensitive).
func Lookup(name string) (Platform, error) {
	p, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Platform{}, &ErrUnsupported{Name: name}
	}
	return p, nil
}

// Names returns the supported platform names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
