package notify

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/okian/kpisync/internal/domain/model"
)

// Subject of every pending-change notice.
const Subject = "KPI Tables: Manual action required"

// Message is a rendered notice.
type Message struct {
	Subject string
	HTML    string
	Text    string
	Changes []model.PendingChange
}

var body = template.Must(template.New("pending").Parse(`<html>
<body style="font-family: Arial, sans-serif;">
<p>Manual action required for Team Leader KPI Dashboard.</p>
<table style="border-collapse: collapse;" border="1" cellpadding="6">
<tr><th>Sheet</th><th>Team</th><th>Action</th><th>Rows</th></tr>
{{- range .}}
<tr><td>{{.Sheet}}</td><td>{{.Team}}</td><td>{{.Action}}</td><td>{{.RowCount}}</td></tr>
{{- end}}
</table>
{{- range .}}
<div style="margin: 20px 0; padding: 10px; border-left: 3px solid #0078d4;">
<p><b>Sheet:</b> {{.Sheet}}<br><b>Team:</b> {{.Team}}</p>
{{- if eq .Action "add"}}
<p>{{.RowCount}} row(s) need to be <b>added</b> to the team tables.</p>
<ol>
<li>Open the Team Leader file in Excel</li>
<li>Go to sheet: {{.Sheet}}</li>
<li>For each table, right-click in the table and select "Insert Table Rows"</li>
<li>Add {{.RowCount}} new row(s)</li>
</ol>
<p>Once rows are added, the next sync will populate the data automatically.</p>
{{- else}}
<p>{{.RowCount}} row(s) need to be <b>deleted</b> from the team tables.</p>
<ol>
<li>Open the Team Leader file in Excel</li>
<li>Go to sheet: {{.Sheet}}</li>
<li>For each table, right-click on the empty rows and select "Delete Table Rows"</li>
<li>Delete {{.RowCount}} blank row(s)</li>
</ol>
{{- end}}
</div>
{{- end}}
<hr>
<p style="color: #666; font-size: 12px;">This is an automated message from the KPI sync service.</p>
</body>
</html>
`))

// sorted returns a copy ordered by sheet, then action.
func sorted(changes []model.PendingChange) []model.PendingChange {
	out := append([]model.PendingChange(nil), changes...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sheet != out[j].Sheet {
			return out[i].Sheet < out[j].Sheet
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// Render builds one consolidated message for all changes.
func Render(changes []model.PendingChange) (Message, error) {
	ordered := sorted(changes)
	var buf bytes.Buffer
	if err := body.Execute(&buf, ordered); err != nil {
		return Message{}, fmt.Errorf("render notification: %w", err)
	}

	lines := []string{"*" + Subject + "*"}
	for _, c := range ordered {
		verb := "add"
		if c.Action == model.ActionDelete {
			verb = "delete"
		}
		lines = append(lines, fmt.Sprintf("• %s (%s): %s %d row(s)", c.Sheet, c.Team, verb, c.RowCount))
	}
	return Message{Subject: Subject, HTML: buf.String(), Text: strings.Join(lines, "\n"), Changes: ordered}, nil
}

// Fingerprint identifies a change set independent of order.
func Fingerprint(changes []model.PendingChange) string {
	h := sha256.New()
	for _, c := range sorted(changes) {
		fmt.Fprintf(h, "%s|%s|%s|%d\n", c.Sheet, c.Team, c.Action, c.RowCount)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
