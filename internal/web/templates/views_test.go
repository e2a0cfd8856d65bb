package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/clodoo/internal/core"
)

func TestErrorAlert_Escapes(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert("<b>bad</b>", "Try again", "RUN003").Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "<b>bad</b>") {
		t.Errorf("message not escaped: %s", out)
	}
	for _, want := range []string{"&lt;b&gt;bad&lt;/b&gt;", "Try again", "RUN003"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRunPage(t *testing.T) {
	rec := core.RunRecord{
		Severity: core.SeverityMedium,
		Result: &core.ImportResult{
			RunID:    "r1",
			FileName: "res.partner.csv",
			Entity:   "res.partner",
			Status:   core.StatusSuccess,
			Rows:     2,
			Created:  1,
			Failed:   1,
			FailedRows: []core.FailedRow{
				{Line: 3, Key: "B1", Field: "country_id", Code: "ROW002", Reason: "no match"},
			},
			Duration: 1500 * time.Millisecond,
		},
	}
	var buf bytes.Buffer
	if err := RunPage(rec).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"res.partner.csv", "/api/runs/r1/failed-rows", "B1", "ROW002", "sev-medium"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestDashboard_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Dashboard([]string{"res.partner"}, nil).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "No runs yet.") || !strings.Contains(out, `value="res.partner"`) {
		t.Errorf("unexpected dashboard: %s", out)
	}
}
