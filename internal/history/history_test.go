package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AzizK97/VarGuard/internal/models"
)

func alertLine(sig string, severity int, src, dst, ts string) string {
	return fmt.Sprintf(`{"event_type":"alert","timestamp":%q,"src_ip":%q,"dest_ip":%q,"src_port":1000,"dest_port":80,"proto":"TCP","alert":{"signature":%q,"category":"c","severity":%d}}`,
		ts, src, dst, sig, severity)
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eve.json")
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func signatures(alerts []models.Alert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.Signature
	}
	return out
}

func TestRingWraps(t *testing.T) {
	r := newRing(3)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		r.add(models.Alert{Signature: s})
	}
	if r.len() != 3 {
		t.Fatalf("len = %d, want 3", r.len())
	}
	got := strings.Join(signatures(r.newestFirst()), ",")
	if got != "e,d,c" {
		t.Errorf("newestFirst = %s, want e,d,c", got)
	}
}

func TestReadAllNewestFirst(t *testing.T) {
	const ts = "2024-01-01T00:00:00Z"
	path := writeLog(t,
		alertLine("a1", 1, "10.0.0.1", "10.0.0.2", ts),
		`{"event_type":"flow","src_ip":"10.0.0.1"}`,
		alertLine("a2", 2, "10.0.0.1", "10.0.0.2", ts),
		alertLine("a3", 3, "10.0.0.1", "10.0.0.2", ts),
	)
	r := NewReader(path, nil, 100)

	alerts, err := r.Read(3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := strings.Join(signatures(alerts), ","); got != "a3,a2,a1" {
		t.Errorf("Read(3) = %s, want a3,a2,a1", got)
	}

	alerts, err = r.Read(2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := strings.Join(signatures(alerts), ","); got != "a3,a2" {
		t.Errorf("Read(2) = %s, want a3,a2", got)
	}
}

func TestReadZeroLimit(t *testing.T) {
	path := writeLog(t, alertLine("a1", 1, "10.0.0.1", "10.0.0.2", "2024-01-01T00:00:00Z"))
	alerts, err := NewReader(path, nil, 100).Read(0)
	if err != nil || len(alerts) != 0 {
		t.Fatalf("Read(0) = %v, %v; want empty, nil", alerts, err)
	}
}

func TestReadMissingFile(t *testing.T) {
	r := NewReader(filepath.Join(t.TempDir(), "absent.json"), nil, 100)
	alerts, err := r.Read(10)
	if err != nil {
		t.Fatalf("Read on missing file: %v", err)
	}
	if alerts == nil || len(alerts) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", alerts)
	}
}

func TestReadSkipsMalformedLines(t *testing.T) {
	const ts = "2024-01-01T00:00:00Z"
	path := writeLog(t,
		alertLine("a1", 1, "10.0.0.1", "10.0.0.2", ts),
		`{"event_type":"alert", broken`,
		"",
		alertLine("a2", 2, "10.0.0.1", "10.0.0.2", ts),
	)
	alerts, err := NewReader(path, nil, 100).Read(10)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := strings.Join(signatures(alerts), ","); got != "a2,a1" {
		t.Errorf("got %s, want a2,a1", got)
	}
}

func TestReadUnterminatedFinalLine(t *testing.T) {
	const ts = "2024-01-01T00:00:00Z"
	path := filepath.Join(t.TempDir(), "eve.json")
	content := alertLine("a1", 1, "10.0.0.1", "10.0.0.2", ts) + "\n" +
		alertLine("a2", 1, "10.0.0.1", "10.0.0.2", ts)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	alerts, err := NewReader(path, nil, 100).Read(10)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("complete unterminated line should be decoded, got %d alerts", len(alerts))
	}

	half := alertLine("a3", 1, "10.0.0.1", "10.0.0.2", ts)
	if err := os.WriteFile(path, []byte(content+"\n"+half[:20]), 0o644); err != nil {
		t.Fatal(err)
	}
	alerts, err = NewReader(path, nil, 100).Read(10)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("partial final line should be dropped, got %d alerts", len(alerts))
	}
}

func TestIDsMatchAcrossReads(t *testing.T) {
	path := writeLog(t,
		alertLine("a1", 1, "10.0.0.1", "10.0.0.2", "2024-01-01T00:00:00Z"),
		alertLine("a1", 1, "10.0.0.1", "10.0.0.2", "2024-01-01T00:00:00Z"),
	)
	r := NewReader(path, nil, 100)
	first, _ := r.Read(10)
	second, _ := r.Read(10)
	if first[0].ID != second[0].ID || first[1].ID != second[1].ID {
		t.Fatal("ids changed between reads")
	}
	if first[0].ID == first[1].ID {
		t.Fatal("identical lines should still get distinct ids")
	}
}

func TestQueries(t *testing.T) {
	path := writeLog(t,
		alertLine("old", 3, "10.0.0.1", "10.0.0.9", "2024-01-01T00:00:00Z"),
		alertLine("mid", 2, "10.0.0.5", "10.0.0.1", "2024-01-02T00:00:00Z"),
		alertLine("new", 1, "10.0.0.7", "10.0.0.8", "2024-01-03T00:00:00Z"),
		`{"event_type":"alert","timestamp":"garbage","alert":{"signature":"nots","severity":1}}`,
	)
	r := NewReader(path, nil, 100)

	bySev, err := r.BySeverity(models.SeverityCritical)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(signatures(bySev), ","); got != "nots,new" {
		t.Errorf("BySeverity = %s", got)
	}

	byIP, _ := r.ByIP("10.0.0.1")
	if got := strings.Join(signatures(byIP), ","); got != "mid,old" {
		t.Errorf("ByIP = %s", got)
	}

	between, _ := r.Between(
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	)
	if got := strings.Join(signatures(between), ","); got != "new,mid" {
		t.Errorf("Between = %s", got)
	}

	a, ok, err := r.Find(byIP[0].ID)
	if err != nil || !ok || a.Signature != "mid" {
		t.Errorf("Find = %v %v %v", a.Signature, ok, err)
	}
	if _, ok, _ := r.Find(12345); ok {
		t.Error("Find of unknown id should miss")
	}
}

func TestPage(t *testing.T) {
	var lines []string
	for i := 0; i < 5; i++ {
		lines = append(lines, alertLine(fmt.Sprintf("s%d", i), 3, "10.0.0.1", "10.0.0.2", "2024-01-01T00:00:00Z"))
	}
	r := NewReader(writeLog(t, lines...), nil, 100)

	p, err := r.Page(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalElements != 5 || p.TotalPages != 3 {
		t.Errorf("totals = %d/%d, want 5/3", p.TotalElements, p.TotalPages)
	}
	if got := strings.Join(signatures(p.Content), ","); got != "s2,s1" {
		t.Errorf("page 1 = %s, want s2,s1", got)
	}

	p, _ = r.Page(9, 2)
	if p.Content == nil || len(p.Content) != 0 {
		t.Errorf("out of range page should be empty, got %v", p.Content)
	}
}
