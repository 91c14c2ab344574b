package authdoc

import "strings"

// Platform is the runtime a flow targets. The set of values is open: anything a
// document author writes is kept verbatim and compared by value.
type Platform string

const (
	PlatformBrowser Platform = "browser"
	PlatformMobile  Platform = "mobile"
)

// IsKnown reports whether p is one of the platforms this module ships constants for.
func (p Platform) IsKnown() bool {
	switch p {
	case PlatformBrowser, PlatformMobile:
		return true
	}
	return false
}

// Connection is the mechanism used to reach a wallet. Like Platform it is an open
// enumeration.
type Connection string

const (
	ConnectionExtension     Connection = "extension"
	ConnectionWalletConnect Connection = "wc"
	ConnectionMobileWallet  Connection = "mwp"
)

// IsKnown reports whether c is one of the built-in connection kinds.
func (c Connection) IsKnown() bool {
	switch c {
	case ConnectionExtension, ConnectionWalletConnect, ConnectionMobileWallet:
		return true
	}
	return false
}

// InjectedURI is the extension uri meaning "whatever provider the host injects".
const InjectedURI = "injected"

// ProviderID returns the concrete provider identifier an extension flow names, or
// "" when the flow defers to the injected provider.
func (f FlowSpec) ProviderID() string {
	if f.Connection != ConnectionExtension {
		return ""
	}
	uri := strings.TrimSpace(f.URI)
	if uri == "" || uri == InjectedURI {
		return ""
	}
	return uri
}
