package tenant

import (
	"net"
	"net/http"
	"strings"
)

// DefaultHeader carries the shop domain when no token binds one.
const DefaultHeader = "X-Shop-Domain"

// Resolver finds the shop of an unauthenticated request: the shop header
// first, then the leftmost label under RootDomain, then DefaultTenant.
type Resolver struct {
	HeaderName    string
	RootDomain    string
	DefaultTenant string
}

// NewResolver normalises its inputs; an empty header name means DefaultHeader.
func NewResolver(headerName, rootDomain, defaultTenant string) *Resolver {
	if headerName == "" {
		headerName = DefaultHeader
	}
	return &Resolver{
		HeaderName:    headerName,
		RootDomain:    strings.ToLower(strings.TrimSpace(rootDomain)),
		DefaultTenant: strings.TrimSpace(defaultTenant),
	}
}

// Middleware binds the resolved shop. A shop already bound upstream, e.g.
// by a verified token, wins.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if _, bound := FromContext(req.Context()); !bound {
			shop := r.Resolve(req)
			if shop == "" {
				shop = r.DefaultTenant
			}
			if shop != "" {
				req = req.WithContext(WithTenant(req.Context(), shop))
			}
		}
		next.ServeHTTP(w, req)
	})
}

// Resolve returns the shop named by req, or "" when it names none.
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if shop := strings.ToLower(strings.TrimSpace(req.Header.Get(r.HeaderName))); shop != "" {
		return shop
	}
	return r.subdomain(hostname(req.Host))
}

func (r *Resolver) subdomain(host string) string {
	if host == "" || host == r.RootDomain {
		return ""
	}
	if r.RootDomain != "" {
		var ok bool
		if host, ok = strings.CutSuffix(host, "."+r.RootDomain); !ok {
			return ""
		}
	}
	label, _, _ := strings.Cut(host, ".")
	return label
}

// hostname lowercases host and drops any port or IPv6 brackets.
func hostname(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.Trim(host, "[]")
}
