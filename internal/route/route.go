// Package route classifies inbound requests into a handling strategy.
package route

import (
	"net/http"
	"strings"
)

// Kind is the handling strategy selected for a request.
type Kind int

const (
	// Proxy relays the request to an upstream Target.
	Proxy Kind = iota
	// Preflight answers a CORS preflight request.
	Preflight
	// SendEmail runs the email provider chain.
	SendEmail
	// MapPage serves the static map dashboard.
	MapPage
	// InfoPage serves the static infographic.
	InfoPage
)

func (k Kind) String() string {
	switch k {
	case Proxy:
		return "proxy"
	case Preflight:
		return "preflight"
	case SendEmail:
		return "send_email"
	case MapPage:
		return "map_page"
	case InfoPage:
		return "info_page"
	default:
		return "unknown"
	}
}

// Target identifies an upstream host.
type Target int

const (
	// Anthropic is the primary AI provider and the default target.
	Anthropic Target = iota
	// OpenAI is the secondary AI provider.
	OpenAI
	// Firebase is the realtime database backend.
	Firebase
)

func (t Target) String() string {
	switch t {
	case Anthropic:
		return "anthropic"
	case OpenAI:
		return "openai"
	case Firebase:
		return "firebase"
	default:
		return "unknown"
	}
}

// Decision is the classifier output. Target and Path are meaningful only when Kind is Proxy.
type Decision struct {
	Kind   Kind
	Target Target
	Path   string
}

// prefixes maps a path prefix to its upstream, in match order.
var prefixes = []struct {
	prefix string
	target Target
}{
	{"/openai", OpenAI},
	{"/anthropic", Anthropic},
	{"/firebase", Firebase},
}

// Classify selects exactly one strategy for method and path. The first
// matching rule wins; unknown paths go to Anthropic unchanged rather than
// being rejected.
func Classify(method, path string) Decision {
	if method == http.MethodOptions {
		return Decision{Kind: Preflight}
	}
	if path == "/send-email" && method == http.MethodPost {
		return Decision{Kind: SendEmail}
	}
	switch path {
	case "/map", "/map/":
		return Decision{Kind: MapPage}
	case "/info", "/info/":
		return Decision{Kind: InfoPage}
	}

	for _, p := range prefixes {
		// Match on the trailing slash so "/openaiX" and bare "/openai" fall through.
		if strings.HasPrefix(path, p.prefix+"/") {
			return Decision{Kind: Proxy, Target: p.target, Path: strings.TrimPrefix(path, p.prefix)}
		}
	}

	return Decision{Kind: Proxy, Target: Anthropic, Path: path}
}
