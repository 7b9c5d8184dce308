package health

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"
)

// RenderDashboardHTML returns the status page served at GET /.
func RenderDashboardHTML(health CollectResult) string {
	b, _ := json.Marshal(health)
	// embedded in a <script type="application/json"> block
	payload := strings.ReplaceAll(string(b), "</", `<\/`)

	headline := "All Systems Operational"
	if health.Status != "ok" {
		headline = "System Issues Detected"
	}

	names := make([]string, 0, len(health.Dependencies))
	for name := range health.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	var deps strings.Builder
	for _, name := range names {
		d := health.Dependencies[name]
		class := "err"
		if d.Status == "connected" || d.Status == "reachable" {
			class = "ok"
		}
		ping := "?"
		if p, ok := d.PingMs.(*int64); ok && p != nil {
			ping = fmt.Sprint(*p)
		}
		fmt.Fprintf(&deps, `<div class="row"><span>%s</span><span class="pill %s">%s · %s ms</span></div>`,
			html.EscapeString(name), class, html.EscapeString(d.Status), ping)
	}

	market := `<div class="row"><span>Database</span><span>unavailable</span></div>`
	if m := health.Marketplace; m != nil {
		market = fmt.Sprintf(`<div class="row"><span>Active products</span><span>%d</span></div>
<div class="row"><span>Open negotiations</span><span>%d</span></div>
<div class="row"><span>Pending orders</span><span>%d</span></div>
<div class="row"><span>Active crop listings</span><span>%d</span></div>`,
			m.ActiveProducts, m.OpenNegotiations, m.PendingOrders, m.ActiveCropListings)
	}

	lastReq := "-"
	if m, ok := health.Traffic.LastRequest.(map[string]interface{}); ok {
		lastReq = html.EscapeString(fmt.Sprintf("%v %v from %v", m["method"], m["path"], m["ip"]))
	}

	return `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>FarmDirect · API Status</title>
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <style>
    :root { --leaf: #2f7d32; --soil: #3e2723; --bg: #f6f8f3; --muted: #6b7280; }
    body { background: var(--bg); color: var(--soil); font-family: system-ui, sans-serif; margin: 0; padding: 40px 20px; }
    .container { max-width: 960px; margin: 0 auto; }
    h1 { font-size: 40px; margin: 0 0 8px; color: var(--leaf); }
    .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(260px, 1fr)); gap: 20px; margin-top: 24px; }
    .card { background: #fff; border-radius: 16px; padding: 24px; box-shadow: 0 8px 30px rgba(0,0,0,0.05); }
    .label { text-transform: uppercase; font-size: 11px; font-weight: 800; letter-spacing: 2px; color: var(--muted); margin-bottom: 16px; }
    .row { display: flex; justify-content: space-between; padding: 6px 0; border-bottom: 1px solid #f1f1f1; font-size: 14px; }
    .pill { padding: 2px 10px; border-radius: 8px; font-size: 12px; font-weight: 700; }
    .ok { background: #e8f5e9; color: var(--leaf); }
    .err { background: #fdecea; color: #c62828; }
    footer { margin-top: 24px; font-family: monospace; color: var(--muted); display: flex; justify-content: space-between; }
  </style>
</head>
<body>
  <div class="container">
    <h1 id="headline">` + headline + `</h1>
    <div style="color:var(--muted)">Marketplace API health. Raw data at <a href="/health/json">/health/json</a>, errors at <a href="/health/errors">/health/errors</a>, metrics at <a href="/metrics">/metrics</a>.</div>
    <div class="grid">
      <div class="card">
        <div class="label">Traffic</div>
        <div class="row"><span>Total requests</span><span>` + fmt.Sprint(health.Traffic.TotalRequests) + `</span></div>
        <div class="row"><span>Successful</span><span>` + fmt.Sprint(health.Traffic.SuccessCount) + `</span></div>
        <div class="row"><span>Failed</span><span>` + fmt.Sprint(health.Traffic.FailedCount) + `</span></div>
        <div class="row"><span>Success rate</span><span>` + health.Traffic.SuccessRate + `%</span></div>
        <div class="row"><span>Avg latency</span><span>` + fmt.Sprint(health.Traffic.AvgResponseTime) + `ms</span></div>
      </div>
      <div class="card">
        <div class="label">Marketplace</div>
        ` + market + `
      </div>
      <div class="card">
        <div class="label">Dependencies</div>
        ` + deps.String() + `
        <div class="row"><span>Uptime</span><span>` + fmt.Sprint(health.Runtime.UptimeSeconds) + `s</span></div>
        <div class="row"><span>Goroutines</span><span>` + fmt.Sprint(health.Runtime.Goroutines) + `</span></div>
        <div class="row"><span>Heap used</span><span>` + fmt.Sprint(health.Runtime.Memory.HeapUsed) + ` MB</span></div>
      </div>
    </div>
    <footer><span>LAST INBOUND</span><span>` + lastReq + `</span><span>` + html.EscapeString(health.Runtime.GoVersion) + `</span></footer>
  </div>
  <script id="health-data" type="application/json">` + payload + `</script>
  <script>
    setInterval(async () => {
      try {
        const d = await (await fetch('/health/json')).json();
        document.getElementById('headline').innerText = d.status === 'ok' ? 'All Systems Operational' : 'System Issues Detected';
      } catch (e) {}
    }, 10000);
  </script>
</body>
</html>`
}
