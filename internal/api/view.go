package api

import "html/template"

const stackTemplateName = "stack.html"

// stackTemplate mirrors a memory-mode session: the base photo in a clipping
// container with every overlay absolutely positioned on top.
var stackTemplate = template.Must(template.New(stackTemplateName).Parse(`<div class="merger" style="position: relative; overflow: hidden; width: {{.Width}}px; height: {{.Height}}px">
<img src="/api/session/base" width="{{.Width}}" height="{{.Height}}">
{{- range $i, $n := .Overlays}}
<img src="/api/session/layers/{{$i}}" width="{{$n.Width}}" height="{{$n.Height}}" style="position: absolute; left: {{$n.Left}}px; top: {{$n.Top}}px">
{{- end}}
</div>
`))
