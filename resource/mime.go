package resource

import "strings"

// mimeTypes is the fixed extension table; anything else has no type
var mimeTypes = map[string]string{
	"html": "text/html",
	"txt":  "text/plain",
	"jpg":  "image/jpg",
	"png":  "image/png",
	"gif":  "image/gif",
	"css":  "text/css",
}

// ContentType derives a MIME type from the extension of the last path
// segment. Unmapped or missing extensions yield "".
func ContentType(path string) string {
	name := path
	if p := strings.LastIndexByte(name, '/'); p >= 0 {
		name = name[p+1:]
	}
	p := strings.LastIndexByte(name, '.')
	if p < 0 {
		return ""
	}
	return mimeTypes[strings.ToLower(name[p+1:])]
}
