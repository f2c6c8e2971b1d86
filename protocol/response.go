package protocol

import "strconv"

const (
	StatusOK                  = 200
	StatusInternalServerError = 500

	ContentTypeHTML = "text/html"

	// DefaultVersion answers requests whose own version is unusable
	DefaultVersion = "HTTP/1.1"
)

// ErrorBody is the page sent with every 500 response
const ErrorBody = "<html><body><pre><h1>500 Internal Server Error</h1></pre></html>"

var errorBody = []byte(ErrorBody)

// NewOkResponse builds a 200 response. For HEAD pass a nil body and the
// size the body would have had.
func NewOkResponse(version string, contentType string, contentLength int, body []byte, keepAlive bool) *HttpResponse {
	return &HttpResponse{
		Version:       version,
		StatusCode:    StatusOK,
		StatusMessage: "OK",
		ContentType:   contentType,
		KeepAlive:     keepAlive,
		ContentLength: contentLength,
		Body:          body,
	}
}

// NewErrorResponse builds the 500 response used for every failure
func NewErrorResponse(version string, keepAlive bool) *HttpResponse {
	return &HttpResponse{
		Version:       version,
		StatusCode:    StatusInternalServerError,
		StatusMessage: "Internal Server Error",
		ContentType:   ContentTypeHTML,
		KeepAlive:     keepAlive,
		ContentLength: len(errorBody),
		Body:          errorBody,
	}
}

// ResponseVersion echoes the request version when it is supported
func ResponseVersion(req *HttpRequest) string {
	if req != nil && req.Version != VersionUnknown {
		return req.Version.String()
	}
	return DefaultVersion
}

// ConnectionDirective renders the Connection header value
func ConnectionDirective(keepAlive bool) string {
	if keepAlive {
		return "Keep-alive"
	}
	return "Close"
}

// AppendHeader formats the status line and headers, including the blank
// line, onto buf. Header order is Content-Type, Connection, Content-Length.
func (r *HttpResponse) AppendHeader(buf []byte) []byte {
	buf = append(buf, r.Version...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(r.StatusCode), 10)
	buf = append(buf, ' ')
	buf = append(buf, r.StatusMessage...)
	buf = append(buf, crlf...)

	buf = append(buf, "Content-Type: "...)
	buf = append(buf, r.ContentType...)
	buf = append(buf, crlf...)

	buf = append(buf, "Connection: "...)
	buf = append(buf, ConnectionDirective(r.KeepAlive)...)
	buf = append(buf, crlf...)

	buf = append(buf, "Content-Length: "...)
	buf = strconv.AppendInt(buf, int64(r.ContentLength), 10)
	buf = append(buf, crlf...)

	return append(buf, crlf...)
}

// PostPage renders the body answering a POST: the posted line as a
// heading followed by the target file's bytes.
func PostPage(postData string, file []byte) []byte {
	const prefix, suffix = "<html><body><pre><h1>", "</h1></pre>"
	page := make([]byte, 0, len(prefix)+len(postData)+len(suffix)+len(file))
	page = append(page, prefix...)
	page = append(page, postData...)
	page = append(page, suffix...)
	return append(page, file...)
}
