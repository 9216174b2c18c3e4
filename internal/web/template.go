package web

import (
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/mitemp-sensor/internal/sensor"
	"github.com/sweeney/mitemp-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"reading": func(e sensor.Snapshot) string {
		if !e.Known {
			return "unknown"
		}
		return strconv.FormatFloat(e.Value, 'f', -1, 64) + " " + e.Unit
	},
	"samples": func(vs []float64) string {
		if len(vs) == 0 {
			return "-"
		}
		parts := make([]string, len(vs))
		for i, v := range vs {
			parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		return strings.Join(parts, ", ")
	},
	"spread": func(vs []float64) string {
		w := status.WindowStats(vs)
		if w == nil {
			return "-"
		}
		return fmt.Sprintf("%.2f .. %.2f (σ %.2f)", w.Min, w.Max, w.StdDev)
	},
	"ms": func(ms int64) string {
		return (time.Duration(ms) * time.Millisecond).String()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Config.Name}}</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.known { color: green; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>{{.Config.Name}} <small>{{.Config.Address}}</small></h1>

<h2>Sensors</h2>
<table>
<tr><th>Sensor</th><th>Value</th><th>Window</th><th>Samples</th><th>Spread</th><th>Last</th></tr>
{{range .Entities}}<tr>
<td>{{.Name}}</td>
<td class="{{if .Known}}known{{else}}unknown{{end}}">{{reading .}}</td>
<td>{{.FilterState}} {{len .Samples}}/{{.WindowSize}}</td>
<td>{{samples .Samples}}</td>
<td>{{spread .Samples}}</td>
<td>{{if .LastOutcome}}{{.LastOutcome}}{{else}}-{{end}}</td>
</tr>{{else}}<tr><td colspan="6">no sensors configured</td></tr>{{end}}
</table>

<h2>Outcomes</h2>
<table>
<tr><th>Sensor</th><th>Valid</th><th>No data</th><th>Fault</th></tr>
{{range .Entities}}<tr><td>{{.Name}}</td><td>{{.Counts.Valid}}</td><td>{{.Counts.NoData}}</td><td>{{.Counts.Fault}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>Last advertisement</th><td>{{if .LastSeen.IsZero}}never{{else}}{{.LastSeen.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Cycles</th><td>{{.Cycles}}</td></tr>
<tr><th>Median window</th><td>{{.Config.Median}}</td></tr>
<tr><th>Update interval</th><td>{{ms .Config.UpdateIntervalMs}}</td></tr>
<tr><th>Read timeout</th><td>{{ms .Config.TimeoutMs}}</td></tr>
<tr><th>Cache</th><td>{{ms .Config.CacheValueMs}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{ms .Config.HeartbeatMs}}{{end}}</td></tr>
<tr><th>Adapter</th><td>{{.Config.Adapter}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/sensors">sensors</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() and Ready() methods but the template needs fields.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Ready  bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Ready:    snap.Ready(),
	}
	indexTmpl.Execute(w, data)
}
