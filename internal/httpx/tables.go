package httpx

// mimeBySuffix maps a file extension to its Content-Type value, the Go
// analogue of the original's SUFFIX_TYPE table.
var mimeBySuffix = map[string]string{
	".html":  "text/html",
	".xml":   "text/xml",
	".xhtml": "application/xhtml+xml",
	".txt":   "text/plain",
	".rtf":   "application/rtf",
	".pdf":   "application/pdf",
	".word":  "application/nsword",
	".png":   "image/png",
	".gif":   "image/gif",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".au":    "audio/basic",
	".mpeg":  "video/mpeg",
	".mpg":   "video/mpeg",
	".avi":   "video/x-msvideo",
	".gz":    "application/x-gzip",
	".tar":   "application/x-tar",
	".css":   "text/css",
	".js":    "text/javascript",
}

const defaultMime = "text/plain"

// statusReason maps a status code to its reason phrase, the Go analogue
// of the teacher's server/protocol/builder.go statusTable ([505][]byte)
// restored for completeness of Builder's status lines, even though this
// server's own handlers only ever emit 200/400/403/404. Reason lookup
// falls back to 400 for any code not listed here.
var statusReason = map[int]string{
	100: "Continue",
	101: "Switching Protocols",

	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",

	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",

	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	413: "Payload Too Large",

	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

// errorPagePath maps a status code to the static error page served in
// place of the originally requested resource, the Go analogue of the
// original's CODE_PATH table.
var errorPagePath = map[int]string{
	400: "/400.html",
	403: "/403.html",
	404: "/404.html",
}

// defaultHTMLTags is the set of extension-less paths that get ".html"
// appended automatically, the Go analogue of the original's DEFAULT_HTML.
var defaultHTMLTags = map[string]bool{
	"/register": true,
	"/login":    true,
	"/welcome":  true,
	"/video":    true,
	"/picture":  true,
}

// errorContent is the inline HTML body emitted when a response's file
// payload cannot be opened or mapped, the Go analogue of the original's
// ErrorContent, renamed off its source project's name.
func errorContent(code int, reason string) string {
	return "<html><title>Error</title>" +
		"<body bgcolor=\"ffffff\">" + itoa(code) + " : " + reason +
		"<hr><em>goserver</em></body></html>"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
