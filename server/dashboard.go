package server

import (
	"html/template"
	"net/http"
	"time"

	"github.com/hazyhaar/simwatch/score"
	"github.com/hazyhaar/simwatch/store"
)

var dashboardFuncs = template.FuncMap{
	"addOne": func(i int) int { return i + 1 },
	"band":   score.Band,
	"deref":  func(f *float64) float64 { return *f },
}

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(dashboardFuncs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>simwatch</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 64rem; color: #1a1a1a; }
table { border-collapse: collapse; width: 100%; margin-bottom: 2rem; }
th, td { text-align: left; padding: .4rem .8rem; border-bottom: 1px solid #ddd; }
th { background: #f5f5f5; }
.band-lenient-high { color: #b00020; font-weight: bold; }
.band-lenient { color: #d06000; }
.band-moderate { color: #555; }
.band-strict, .band-strict-high { color: #1a7a1a; }
.muted { color: #888; font-size: .85rem; }
</style>
</head>
<body>
<h1>SIM registration leniency</h1>
<p class="muted">{{.Generated.Format "2006-01-02 15:04:05 MST"}} &middot; {{.Stats.Entities}} entities &middot; {{.Stats.Snapshots}} snapshots</p>

<h2>Leaderboard</h2>
<table>
<tr><th>#</th><th>Entity</th><th>Score</th><th>Band</th><th>Evidence</th><th>Last seen</th></tr>
{{range $i, $e := .Top}}
<tr>
<td>{{addOne $i}}</td>
<td>{{$e.EntityName}}</td>
<td>{{printf "%.2f" $e.Score}}</td>
<td class="band-{{band $e.Score}}">{{band $e.Score}}</td>
<td>{{$e.EvidenceCount}}</td>
<td class="muted">{{$e.CreatedAt.Format "2006-01-02"}}</td>
</tr>
{{end}}
</table>

<h2>Recent changes</h2>
<table>
<tr><th>Entity</th><th>Type</th><th>Old</th><th>New</th><th>Detected</th></tr>
{{range .Changes}}
<tr>
<td>{{.EntityName}}</td>
<td>{{.Type}}</td>
<td>{{if .OldScore}}{{printf "%.2f" (deref .OldScore)}}{{else}}&mdash;{{end}}</td>
<td>{{printf "%.2f" .NewScore}}</td>
<td class="muted">{{.DetectedAt.Format "2006-01-02 15:04"}}</td>
</tr>
{{end}}
</table>
</body>
</html>`))

type dashboardData struct {
	Generated time.Time
	Stats     *store.DBStats
	Top       []*store.StoredSnapshot
	Changes   []*store.StoredChange
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	top, err := s.st.TopEntities(ctx, 25)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	changes, err := s.st.RecentChanges(ctx, time.Now().Add(-30*24*time.Hour), 25)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	stats, err := s.st.Stats(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, dashboardData{
		Generated: time.Now(),
		Stats:     stats,
		Top:       top,
		Changes:   changes,
	}); err != nil {
		s.logger.Warn("dashboard: render failed", "error", err)
	}
}
