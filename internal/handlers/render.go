package handlers

import (
	"html/template"
	"net/http"

	"github.com/zhortlabs/zhort/internal/masking"
)

// frameTmpl serves the destination inside a full-viewport iframe so the
// short link stays in the address bar.
var frameTmpl = template.Must(template.New("frame").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>html,body{margin:0;height:100%}iframe{border:0;width:100%;height:100%}</style>
</head>
<body>
<iframe src="{{.TargetURL}}"></iframe>
</body>
</html>
`))

// splashTmpl shows the configured interstitial, then navigates. SplashHTML
// is owner-supplied and rendered as-is.
var splashTmpl = template.Must(template.New("splash").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
{{if not .FrameAfterSplash}}<meta http-equiv="refresh" content="{{.DelaySeconds}};url={{.TargetURL}}">{{end}}
<style>html,body{margin:0;height:100%}iframe{border:0;width:100%;height:100%}</style>
</head>
<body>
<div id="splash">{{.Body}}</div>
{{if .FrameAfterSplash}}
<script>
setTimeout(function() {
  document.getElementById("splash").remove();
  var f = document.createElement("iframe");
  f.src = {{.TargetURL}};
  document.body.appendChild(f);
}, {{.DelayMs}});
</script>
{{end}}
</body>
</html>
`))

type splashData struct {
	TargetURL        string
	Body             template.HTML
	DelaySeconds     int
	DelayMs          int64
	FrameAfterSplash bool
}

func renderFrame(w http.ResponseWriter, in masking.Instruction) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	frameTmpl.Execute(w, in)
}

func renderSplash(w http.ResponseWriter, in masking.Instruction) {
	delayMs := in.SplashDuration.Milliseconds()
	seconds := int(in.SplashDuration.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	splashTmpl.Execute(w, splashData{
		TargetURL:        in.TargetURL,
		Body:             template.HTML(in.SplashHTML),
		DelaySeconds:     seconds,
		DelayMs:          delayMs,
		FrameAfterSplash: in.FrameAfterSplash,
	})
}
