package cli

import (
	"text/template"
	"time"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

const statusTemplate = `
Pending:   {{ .PendingCount }}
Failed:    {{ .FailedCount }}{{ if .RejectedCount }} ({{ .RejectedCount }} rejected by server){{ end }}
Abandoned: {{ .AbandonedCount }}
Drafts:    {{ .DraftCount }}
Online:    {{ if .IsOnline }}yes{{ else }}no{{ end }}
Storage:   {{ if .Degraded }}almost full{{ else }}ok{{ end }}
`

const mutationsTemplate = `
=== Queued Changes ===

{{- if eq (len .) 0 }}
No queued changes.
{{ else }}
Found {{ len . }} change(s):

{{- range . }}
- {{ .ID }}
   Entity:   {{ .TargetEntity }} ({{ .Kind }})
   Status:   {{ .Status }}{{ if .Refused }} (rejected by server){{ end }}
   Attempts: {{ .AttemptCount }}
   {{- if .LastError }}
   Error:    {{ .LastError }}
   {{- end }}
   Created:  {{ .Created }}

{{- end }}
Use 'offlinekit retry <id>' or 'offlinekit discard <id>'.
{{- end }}
`

const draftsTemplate = `
=== Unsent Drafts ===

{{- if eq (len .) 0 }}
No drafts.
{{ else }}
Found {{ len . }} draft(s):

{{- range . }}
- {{ .Key }}
   Source:  {{ .Source }}
   Saved:   {{ .Saved }}
   Preview: {{ .Preview }}

{{- end }}
Use 'offlinekit retry --drafts' to submit them.
{{- end }}
`

var (
	statusTmpl    = template.Must(template.New("status").Parse(statusTemplate))
	mutationsTmpl = template.Must(template.New("mutations").Parse(mutationsTemplate))
	draftsTmpl    = template.Must(template.New("drafts").Parse(draftsTemplate))
)

type mutationView struct {
	models.QueuedMutation
	Created string
	Refused bool // Refused сервер отверг изменение
}

type draftView struct {
	Key     string
	Source  models.DraftSource
	Saved   string
	Preview string
}

func mutationViews(all []models.QueuedMutation) []mutationView {
	views := make([]mutationView, 0, len(all))
	for i := range all {
		views = append(views, mutationView{
			QueuedMutation: all[i],
			Created:        formatMillis(all[i].CreatedAt),
			Refused:        all[i].Status == models.StatusFailed && all[i].Rejected(),
		})
	}
	return views
}

func draftViews(all []models.Draft) []draftView {
	views := make([]draftView, 0, len(all))
	for _, d := range all {
		views = append(views, draftView{
			Key:     d.Key,
			Source:  d.Source,
			Saved:   formatMillis(d.Timestamp),
			Preview: preview(string(d.Data), 60),
		})
	}
	return views
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "unknown"
	}
	return time.UnixMilli(ms).Format(time.RFC3339)
}

func preview(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
