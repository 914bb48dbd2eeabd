package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounters(t *testing.T) {
	m := New()
	m.UploadAttempt(false)
	m.UploadAttempt(false)
	m.UploadAttempt(true)
	m.EditorCommand("bold", "ok")
	m.Request("GET", "/api/v1/news", 200, 15*time.Millisecond)
	m.ArticleFallback()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, line := range []string{
		`portal_image_upload_attempts_total{result="error"} 2`,
		`portal_image_upload_attempts_total{result="success"} 1`,
		`portal_editor_commands_total{command="bold",result="ok"} 1`,
		`portal_article_sample_fallback_total 1`,
		`portal_http_request_duration_seconds_count{method="GET",route="/api/v1/news",status="200"} 1`,
	} {
		if !strings.Contains(body, line) {
			t.Errorf("exposition is missing %q", line)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.UploadAttempt(true)
	m.EditorCommand("bold", "ok")
	m.Request("GET", "/", 200, time.Millisecond)
	m.ArticleFallback()
}
