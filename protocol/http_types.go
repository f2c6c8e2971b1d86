package protocol

import (
	"strings"
	"time"

	"github.com/nimbid/Mini-HTTP-Server/errors"
)

// HttpMethod represents HTTP request methods
type HttpMethod int

const (
	MethodUnknown HttpMethod = iota
	MethodGet
	MethodHead
	MethodPost
)

func (m HttpMethod) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodHead:
		return "HEAD"
	case MethodPost:
		return "POST"
	default:
		return "UNKNOWN"
	}
}

// ParseMethod maps a request-line token onto a method; matching is case-sensitive
func ParseMethod(s string) HttpMethod {
	switch s {
	case "GET":
		return MethodGet
	case "HEAD":
		return MethodHead
	case "POST":
		return MethodPost
	default:
		return MethodUnknown
	}
}

// HttpVersion represents the protocol version of a request
type HttpVersion int

const (
	VersionUnknown HttpVersion = iota
	Version10
	Version11
)

func (v HttpVersion) String() string {
	switch v {
	case Version10:
		return "HTTP/1.0"
	case Version11:
		return "HTTP/1.1"
	default:
		return "UNKNOWN"
	}
}

// ParseVersion maps a request-line token onto a version
func ParseVersion(s string) HttpVersion {
	switch s {
	case "HTTP/1.0":
		return Version10
	case "HTTP/1.1":
		return Version11
	default:
		return VersionUnknown
	}
}

// Names of the headers a request retains, lower-cased
const (
	HeaderHost          = "host"
	HeaderConnection    = "connection"
	HeaderContentLength = "content-length"
)

// HttpRequest represents one parsed HTTP request.
// RawMethod and RawVersion keep the tokens as received so that unknown
// values can be reported after they fail validation.
type HttpRequest struct {
	Method     HttpMethod
	RawMethod  string
	Target     string
	Version    HttpVersion
	RawVersion string
	Headers    map[string]string
	Body       string
	HasBody    bool
	Malformed  bool // request line did not carry exactly three tokens
}

// Header returns the value of a retained header, name is case-insensitive
func (r *HttpRequest) Header(name string) (string, bool) {
	v, ok := r.Headers[strings.ToLower(name)]
	return v, ok
}

// Validate rejects request lines without exactly three tokens, methods
// other than GET, HEAD, POST and versions other than HTTP/1.0 and HTTP/1.1.
// It runs before any file-system access.
func (r *HttpRequest) Validate() error {
	if r.Malformed {
		return errors.NewProtocolError(errors.ProtocolErrorMalformedRequestLine,
			strings.Join([]string{r.RawMethod, r.Target, r.RawVersion}, " "))
	}
	if r.Method == MethodUnknown {
		return errors.NewProtocolError(errors.ProtocolErrorUnsupportedMethod, r.RawMethod)
	}
	if r.Version == VersionUnknown {
		return errors.NewProtocolError(errors.ProtocolErrorUnsupportedVersion, r.RawVersion)
	}
	return nil
}

// ConnectionPreferences is the keep-alive state derived from Connection headers
type ConnectionPreferences struct {
	KeepAlive   bool
	IdleTimeout time.Duration
}

// Update applies the Connection header of req. "keep-alive" arms the idle
// timeout, "close" clears it, anything else leaves the state unchanged.
func (p ConnectionPreferences) Update(req *HttpRequest, idle time.Duration) ConnectionPreferences {
	value, ok := req.Header(HeaderConnection)
	if !ok {
		return p
	}
	switch {
	case strings.EqualFold(value, "keep-alive"):
		return ConnectionPreferences{KeepAlive: true, IdleTimeout: idle}
	case strings.EqualFold(value, "close"):
		return ConnectionPreferences{}
	default:
		return p
	}
}

// HttpResponse represents a response ready to be serialized.
// Only 200 and 500 are ever produced.
type HttpResponse struct {
	Version       string
	StatusCode    int
	StatusMessage string
	ContentType   string
	KeepAlive     bool
	ContentLength int
	Body          []byte // nil for HEAD
}
