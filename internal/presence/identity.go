package presence

import (
	"net/http"
	"sync"
)

// Attributes is connection-scoped state shared between the handshake and
// the protocol-frame layer. The identity can be attached only once.
type Attributes struct {
	mu       sync.RWMutex
	identity string
}

func (a *Attributes) Identity() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.identity
}

// SetIdentity attaches identity unless one is already set or identity is
// empty. The value is stored as given. It reports whether it was stored.
func (a *Attributes) SetIdentity(identity string) bool {
	if identity == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.identity != "" {
		return false
	}
	a.identity = identity
	return true
}

// IdentityExtractor pulls the claimed identity from the handshake query and
// from the native header of the CONNECT frame.
type IdentityExtractor struct {
	Param  string
	Header string
}

func NewIdentityExtractor(param, header string) IdentityExtractor {
	if param == "" {
		param = "username"
	}
	if header == "" {
		header = "username"
	}
	return IdentityExtractor{Param: param, Header: header}
}

// FromHandshake stores the query parameter identity, if any, in attrs.
func (e IdentityExtractor) FromHandshake(r *http.Request, attrs *Attributes) string {
	if attrs.SetIdentity(r.URL.Query().Get(e.Param)) {
		return attrs.Identity()
	}
	return ""
}

// Headers is the lookup side of a frame's header block.
type Headers interface {
	Get(key string) string
}

// Resolve returns the connection identity. A handshake identity wins; the
// CONNECT header is attached only when none was set before.
func (e IdentityExtractor) Resolve(attrs *Attributes, headers Headers) (string, error) {
	if id := attrs.Identity(); id != "" {
		return id, nil
	}
	attrs.SetIdentity(headers.Get(e.Header))
	if id := attrs.Identity(); id != "" {
		return id, nil
	}
	return "", ErrMissingIdentity
}
