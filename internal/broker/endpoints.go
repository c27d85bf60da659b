package broker

import (
	"net/url"
	"strings"
)

const DefaultBaseURL = "https://sp.auth.adobe.com"

// Endpoints are the broker URLs used by an exchange.
type Endpoints struct {
	Base string
}

func NewEndpoints(base string) Endpoints {
	if base == "" {
		base = DefaultBaseURL
	}
	return Endpoints{Base: strings.TrimRight(base, "/")}
}

func (e Endpoints) Devices() string        { return e.Base + "/indiv/devices" }
func (e Endpoints) ClientRegister() string { return e.Base + "/o/client/register" }
func (e Endpoints) ClientToken() string    { return e.Base + "/o/client/token" }

func (e Endpoints) RegCode(requestorID string) string {
	return e.Base + "/reggie/v1/" + url.PathEscape(requestorID) + "/regcode"
}

// Service returns an adobe-services endpoint such as "session" or "authorize".
func (e Endpoints) Service(name string) string {
	return e.Base + "/adobe-services/" + name
}
