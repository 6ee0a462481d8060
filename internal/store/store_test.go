package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/irtext"
	"github.com/roach88/qopt/internal/optimizer"
)

const sumPlan = `
X_1:bat[:int] := sql.bind("sys", "t", "a");
X_2:lng := aggr.sum(X_1);
language.pass(X_2);
`

// createTestStore creates a store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"units", "pass_runs", "plans"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name string
		want string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.pragma(tt.name)
			if err != nil {
				t.Fatalf("pragma(%q) failed: %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("pragma(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestBeginUnit_Sequence(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	b := irtext.MustParse(sumPlan)

	u1, err := s.BeginUnit(ctx, b)
	if err != nil {
		t.Fatalf("BeginUnit() failed: %v", err)
	}
	u2, err := s.BeginUnit(ctx, b)
	if err != nil {
		t.Fatalf("BeginUnit() failed: %v", err)
	}

	if u1.Seq != 1 || u2.Seq != 2 {
		t.Errorf("seqs = %d, %d, want 1, 2", u1.Seq, u2.Seq)
	}
	if u1.ID == u2.ID {
		t.Error("units share an id")
	}
	if u1.Fingerprint != ir.Fingerprint(b) || u1.Fingerprint != u2.Fingerprint {
		t.Error("equal blocks should share a fingerprint")
	}
}

func TestRecordPass_ThroughDriver(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	b := irtext.MustParse(sumPlan)

	u, err := s.BeginUnit(ctx, b)
	if err != nil {
		t.Fatalf("BeginUnit() failed: %v", err)
	}

	reg := optimizer.NewRegistry()
	reg.MustRegister(optimizer.PassCoercion, optimizer.PassFunc{PassName: "coercion", Fn: func(*optimizer.Context, *ir.Block, *ir.Instruction) (int, error) {
		return 2, nil
	}})
	reg.MustRegister(optimizer.PassDeadcode, optimizer.PassFunc{PassName: "deadcode", Fn: func(*optimizer.Context, *ir.Block, *ir.Instruction) (int, error) {
		return 0, nil
	}})
	d := optimizer.NewDriver(reg, nil, optimizer.WithRecorder(u))
	if _, err := d.RunPipelineNamed(nil, b, []string{"coercion", "deadcode", "coercion"}); err != nil {
		t.Fatalf("RunPipelineNamed() failed: %v", err)
	}

	totals, err := s.PassTotals(ctx)
	if err != nil {
		t.Fatalf("PassTotals() failed: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("got %d totals, want 2", len(totals))
	}
	if totals[0].Pass != "coercion" || totals[0].Calls != 2 || totals[0].Actions != 4 {
		t.Errorf("totals[0] = %+v", totals[0])
	}
	if totals[1].Pass != "deadcode" || totals[1].Calls != 1 || totals[1].Actions != 0 {
		t.Errorf("totals[1] = %+v", totals[1])
	}

	units, err := s.Units(ctx)
	if err != nil {
		t.Fatalf("Units() failed: %v", err)
	}
	if len(units) != 1 || units[0].Passes != 3 || units[0].ID != u.ID {
		t.Errorf("units = %+v", units)
	}
}

func TestPassTotals_Empty(t *testing.T) {
	s := createTestStore(t)

	totals, err := s.PassTotals(context.Background())
	if err != nil {
		t.Fatalf("PassTotals() failed: %v", err)
	}
	if totals == nil || len(totals) != 0 {
		t.Errorf("PassTotals() = %#v, want empty slice", totals)
	}
}

func TestSavePlan_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	b := irtext.MustParse(sumPlan)

	u, err := s.BeginUnit(ctx, b)
	if err != nil {
		t.Fatalf("BeginUnit() failed: %v", err)
	}
	if err := s.SavePlan(ctx, u.ID, "input", b); err != nil {
		t.Fatalf("SavePlan() failed: %v", err)
	}

	b.Annotate(ir.Annotation{Pass: "deadcode"})
	if err := s.SavePlan(ctx, u.ID, "input", b); err != nil {
		t.Fatalf("SavePlan() overwrite failed: %v", err)
	}

	got, err := s.LoadPlan(ctx, u.ID, "input")
	if err != nil {
		t.Fatalf("LoadPlan() failed: %v", err)
	}
	if got != b.String() {
		t.Errorf("LoadPlan() = %q, want %q", got, b.String())
	}
	if !strings.Contains(got, "aggr.sum") {
		t.Errorf("listing lost its instructions: %q", got)
	}
}

func TestLoadPlan_Missing(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LoadPlan(context.Background(), "nope", "input")
	if err == nil {
		t.Fatal("LoadPlan() should fail for a missing plan")
	}
}

func TestSavePlan_UnknownUnit(t *testing.T) {
	s := createTestStore(t)

	err := s.SavePlan(context.Background(), "nope", "input", irtext.MustParse(sumPlan))
	if err == nil {
		t.Fatal("SavePlan() should fail on the unit foreign key")
	}
}
