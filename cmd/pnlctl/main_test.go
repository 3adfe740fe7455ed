package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/optpnl/pnl-engine/internal/report"
)

const header = "Symbol/ScripId,Ser/Exp/Group,Strike Price,Option Type,B/S,Quantity,Price\n"

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestReport_JSONAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	day1 := writeFile(t, dir, "TRADES01072024.csv", header+"NIFTY,25JUL2024,24000,CE,B,100,10\n")
	day2 := writeFile(t, dir, "TRADES02072024.csv", header+"NIFTY,25JUL2024,24000,CE,S,60,12\n")
	day3 := writeFile(t, dir, "TRADES03072024.csv", header+"NIFTY,25JUL2024,24000,CE,S,40,11\n")

	stdout, _, err := run(t, "report", day1, day2, day3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rep struct {
		Rows []struct {
			Status string `json:"status"`
		} `json:"rows"`
		GrandTotal struct {
			RealizedPnL string `json:"realized_pnl"`
		} `json:"grand_total"`
	}
	if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if len(rep.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rep.Rows))
	}
	for _, r := range rep.Rows {
		if r.Status != "CLOSED" {
			t.Errorf("expected CLOSED, got %s", r.Status)
		}
	}
	if rep.GrandTotal.RealizedPnL != "160" {
		t.Errorf("expected grand total 160, got %s", rep.GrandTotal.RealizedPnL)
	}
}

func TestReport_RejectionsOnStderr(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "TRADES01072024.csv", header+
		"NIFTY,25JUL2024,24000,CE,B,10,5\n"+
		"NIFTY,25JUL2024,24000,CE,S,-1,5\n")

	_, stderr, err := run(t, "report", p)
	if err != nil {
		t.Fatalf("rejections alone should not fail: %v", err)
	}
	if !strings.Contains(stderr, "row 3") {
		t.Errorf("expected row 3 rejection on stderr, got %q", stderr)
	}

	_, _, err = run(t, "report", "--fail-on-reject", p)
	if !errors.Is(err, errRejected) {
		t.Errorf("expected errRejected, got %v", err)
	}
}

func TestReport_XLSXOut(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "TRADES01072024.csv", header+
		"NIFTY,25JUL2024,24000,CE,B,10,5\n"+
		"NIFTY,25JUL2024,24000,CE,S,10,7\n")
	out := filepath.Join(dir, "summary.xlsx")

	if _, _, err := run(t, "report", p, "--out", out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Script-Wise Summary")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	// header, one detail, one subtotal, grand total
	if len(rows) != 4 {
		t.Errorf("expected 4 rows, got %d", len(rows))
	}
}

func TestReport_Errors(t *testing.T) {
	dir := t.TempDir()
	missing := writeFile(t, dir, "TRADES01072024.csv", "Symbol/ScripId\nNIFTY\n")

	if _, _, err := run(t, "report", missing); err == nil {
		t.Error("expected missing columns error")
	}
	if _, _, err := run(t, "report", filepath.Join(dir, "nope.csv")); err == nil {
		t.Error("expected error for absent file")
	}
	if _, _, err := run(t, "report", "--format", "yaml", missing); err == nil {
		t.Error("expected unknown format error")
	}
	if _, _, err := run(t, "report"); err == nil {
		t.Error("expected error without files")
	}
}

type closeFailer struct {
	bytes.Buffer
	err error
}

func (c *closeFailer) Close() error { return c.err }

func TestWriteClose_ReturnsCloseError(t *testing.T) {
	diskFull := errors.New("no space left on device")
	w := &closeFailer{err: diskFull}

	if err := writeClose(w, report.Build(nil), "xlsx"); !errors.Is(err, diskFull) {
		t.Errorf("expected close error, got %v", err)
	}
	if w.Len() == 0 {
		t.Error("workbook should have been written before close")
	}

	ok := &closeFailer{}
	if err := writeClose(ok, report.Build(nil), "json"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
