package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"planningsprite/internal/plan"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "planningsprite.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConstraintsCommand(t *testing.T) {
	cfg := writeConfig(t, "timezone: UTC\n")
	out, err := run(t, "constraints", "--config", cfg, "--date", "2024-01-06", "--days", "3", "--text=false")
	if err != nil {
		t.Fatal(err)
	}
	var got []plan.DateConstraint
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(got) != 3 {
		t.Fatalf("dates = %d", len(got))
	}
	// Saturday and Sunday are forbidden by default, Monday is open 09-18.
	if !got[0].Forbidden || !got[1].Forbidden {
		t.Errorf("weekend = %+v %+v", got[0], got[1])
	}
	if got[2].Date != "2024-01-08" || len(got[2].Allowed) != 1 || got[2].Allowed[0] != "09:00-18:00" || got[2].MaxHours != 6 {
		t.Errorf("monday = %+v", got[2])
	}
}

func TestConstraintsCommandText(t *testing.T) {
	cfg := writeConfig(t, "timezone: UTC\navailability:\n  hours:\n    monday: [\"08:00-10:00\", \"13:00-15:00\"]\n  caps:\n    monday: 3\n")
	out, err := run(t, "constraints", "--config", cfg, "--date", "2024-01-08", "--days", "1", "--text")
	if err != nil {
		t.Fatal(err)
	}
	if want := "2024-01-08 (Monday): [08:00-10:00, 13:00-15:00]"; strings.TrimSpace(out) != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}

func TestConstraintsCommandBadDate(t *testing.T) {
	cfg := writeConfig(t, "timezone: UTC\n")
	if _, err := run(t, "constraints", "--config", cfg, "--date", "Jan 8", "--days", "1", "--text=false"); err == nil {
		t.Error("expected error for malformed --date")
	}
}

func TestExportCommand(t *testing.T) {
	cfg := writeConfig(t, "timezone: UTC\nhorizon_days: 14\n")
	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	ics := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:a\r\nDTSTART:" + start.Format("20060102T150405Z") +
		"\r\nDTEND:" + start.Add(time.Hour).Format("20060102T150405Z") +
		"\r\nSUMMARY:Seminar\r\nRRULE:FREQ=DAILY;COUNT=3\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	in := filepath.Join(t.TempDir(), "in.ics")
	if err := os.WriteFile(in, []byte(ics), 0o600); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(t.TempDir(), "out.ics")

	if _, err := run(t, "export", "--config", cfg, "--from", in, "--out", outPath); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	body := string(data)
	if n := strings.Count(body, "BEGIN:VEVENT"); n != 3 {
		t.Errorf("events = %d\n%s", n, body)
	}
	if !strings.Contains(body, "SUMMARY:Seminar") || !strings.Contains(body, "DTSTART:"+start.Format("20060102T150405Z")) {
		t.Errorf("export body:\n%s", body)
	}
}

func TestLoadConfigRejectsBadCron(t *testing.T) {
	cfg := writeConfig(t, "timezone: UTC\nrefresh: \"not a cron\"\n")
	if _, err := run(t, "constraints", "--config", cfg, "--date", "2024-01-08", "--days", "1", "--text=false"); err == nil {
		t.Error("expected validation error")
	}
}
