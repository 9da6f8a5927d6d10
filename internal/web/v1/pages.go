package v1

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

const shellTemplate = "console_shell"

var shell = template.Must(template.New(shellTemplate).Parse(`<!doctype html>
<html lang="ar" dir="rtl">
<head>
<meta charset="utf-8">
<title>Syria Go Admin</title>
<link rel="manifest" href="/manifest.json">
</head>
<body>
<div id="app" data-route="{{.Route}}" data-state="{{.State}}"{{if .User}} data-user-id="{{.User.ID}}" data-user-name="{{.User.Name}}"{{end}}{{if .VAPIDKey}} data-vapid-key="{{.VAPIDKey}}"{{end}}></div>
</body>
</html>
`))

// Page renders the console shell for a route that passed both guards.
func (h *Handler) Page(c *gin.Context) {
	snap := sessionOf(c).Snapshot()
	c.HTML(http.StatusOK, shellTemplate, gin.H{
		"Route":    c.Request.URL.Path,
		"State":    snap.State,
		"User":     snap.User,
		"VAPIDKey": vapidKeyFor(snap.User != nil, h.opts.VAPIDKey),
	})
}

// vapidKeyFor hides the push key from anonymous pages.
func vapidKeyFor(signedIn bool, key string) string {
	if !signedIn {
		return ""
	}
	return key
}
