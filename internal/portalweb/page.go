// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package portalweb

import (
	"html/template"
	"net/http"
)

type portalPage struct {
	SSID    string
	Title   string
	Success bool
}

var pageTemplate = template.Must(template.New("portal").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, sans-serif; background: #f4f6f8; margin: 0; }
.card { max-width: 420px; margin: 10vh auto; background: #fff; border-radius: 8px;
        box-shadow: 0 2px 8px rgba(0,0,0,.12); padding: 2rem; }
h1 { font-size: 1.4rem; margin-top: 0; }
label { display: block; margin: .8rem 0 .2rem; font-size: .9rem; color: #444; }
input[type=text], input[type=email] { width: 100%; padding: .5rem; border: 1px solid #ccc;
        border-radius: 4px; box-sizing: border-box; }
button { margin-top: 1.2rem; width: 100%; padding: .6rem; border: 0; border-radius: 4px;
        background: #2962ff; color: #fff; font-size: 1rem; cursor: pointer; }
.ok { color: #2e7d32; }
</style>
</head>
<body>
<div class="card">
{{if .Success}}
<h1 class="ok">You're connected</h1>
<p>Thanks for signing in to {{.SSID}}. You now have network access.</p>
{{else}}
<h1>{{.Title}}</h1>
<p>Sign in to use this network.</p>
<form method="POST" action="/submit">
<label for="name">Name</label>
<input type="text" id="name" name="name" required>
<label for="email">Email</label>
<input type="email" id="email" name="email" required>
<button type="submit">Connect</button>
</form>
{{end}}
</div>
</body>
</html>
`))

func (s *Server) renderPage(w http.ResponseWriter, code int, page portalPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := pageTemplate.Execute(w, page); err != nil {
		s.logger.Error("Failed to render portal page", "error", err)
	}
}
