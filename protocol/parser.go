package protocol

import (
	"bytes"
	"strconv"
	"strings"
)

var (
	crlf        = []byte("\r\n")
	headerEndCR = []byte("\r\n\r\n")
	headerEndLF = []byte("\n\n")
)

// ParseRequests splits one receive buffer into the requests it carries.
// Requests end at the blank line after their headers; a trailing block
// without one is still parsed, with whatever fields it has. A POST body
// is the single line after the headers, or Content-Length bytes when the
// header is present.
func ParseRequests(buf []byte) []*HttpRequest {
	var requests []*HttpRequest

	data := buf
	for {
		data = skipBlankLines(data)
		if len(data) == 0 {
			break
		}

		var head []byte
		head, data = cutHead(data)

		req := parseHead(head)
		if req.Method == MethodPost && !req.HasBody {
			data = readBody(req, data)
		}
		requests = append(requests, req)
	}

	return requests
}

// skipBlankLines drops empty lines left between pipelined requests
func skipBlankLines(data []byte) []byte {
	for {
		switch {
		case bytes.HasPrefix(data, crlf):
			data = data[2:]
		case len(data) > 0 && data[0] == '\n':
			data = data[1:]
		default:
			return data
		}
	}
}

// cutHead returns the request line plus headers and whatever follows the blank line
func cutHead(data []byte) (head, rest []byte) {
	end, sepLen := -1, 0
	if i := bytes.Index(data, headerEndCR); i >= 0 {
		end, sepLen = i, len(headerEndCR)
	}
	if i := bytes.Index(data, headerEndLF); i >= 0 && (end < 0 || i < end) {
		end, sepLen = i, len(headerEndLF)
	}
	if end < 0 {
		return data, nil
	}
	return data[:end], data[end+sepLen:]
}

// splitLines splits on LF and drops a trailing CR from each line
func splitLines(head []byte) []string {
	raw := bytes.Split(head, []byte("\n"))
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		lines = append(lines, string(bytes.TrimSuffix(line, []byte("\r"))))
	}
	return lines
}

func parseHead(head []byte) *HttpRequest {
	req := &HttpRequest{Headers: make(map[string]string, 3)}

	lines := splitLines(head)

	// Request line: METHOD TARGET VERSION
	fields := strings.Fields(lines[0])
	req.Malformed = len(fields) != 3
	if len(fields) > 0 {
		req.RawMethod = fields[0]
	}
	if len(fields) > 1 {
		req.Target = fields[1]
	}
	if len(fields) > 2 {
		req.RawVersion = fields[2]
	}
	req.Method = ParseMethod(req.RawMethod)
	req.Version = ParseVersion(req.RawVersion)

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}

		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			// a POST sent without the blank line carries its body here
			if req.Method == MethodPost && !req.HasBody {
				req.Body = strings.TrimSpace(line)
				req.HasBody = true
			}
			continue
		}

		name := strings.ToLower(strings.TrimSpace(line[:colon]))
		switch name {
		case HeaderHost, HeaderConnection, HeaderContentLength:
			if _, seen := req.Headers[name]; !seen {
				req.Headers[name] = strings.TrimSpace(line[colon+1:])
			}
		}
	}

	return req
}

// readBody takes the POST body off the front of data and returns the rest
func readBody(req *HttpRequest, data []byte) []byte {
	if len(data) == 0 {
		return data
	}

	if v, ok := req.Header(HeaderContentLength); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			if n > len(data) {
				n = len(data)
			}
			req.Body = string(data[:n])
			req.HasBody = true
			return data[n:]
		}
	}

	line, rest := data, []byte(nil)
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line, rest = data[:i], data[i+1:]
	}
	body := string(bytes.TrimSuffix(line, []byte("\r")))

	// a bodiless POST followed by a pipelined request
	if isRequestLine(body) {
		return data
	}

	req.Body = body
	req.HasBody = true
	return rest
}

// isRequestLine reports whether line is a complete, supported request line
func isRequestLine(line string) bool {
	fields := strings.Fields(line)
	return len(fields) == 3 &&
		ParseMethod(fields[0]) != MethodUnknown &&
		ParseVersion(fields[2]) != VersionUnknown
}
