package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/sportsarena/membership-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, found %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestEmbeddedMigrationsAreValidAndOrdered(t *testing.T) {
	versions, err := migrate.Embedded().Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(versions) != 4 {
		t.Fatalf("expected 4 migrations, got %d", len(versions))
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Fatalf("versions not ascending: %v", versions)
		}
	}
	if versions[0] != 20260105090000 {
		t.Fatalf("unexpected first version %d", versions[0])
	}
}

func TestDiskSourceMatchesEmbedded(t *testing.T) {
	disk, err := migrate.ValidateDir("migrations")
	if err != nil {
		t.Fatalf("validate dir: %v", err)
	}
	embedded, _ := migrate.Embedded().Validate()
	if len(disk) != len(embedded) {
		t.Fatalf("disk has %d migrations, embedded %d", len(disk), len(embedded))
	}
}

func TestInvoiceCounterMigrationSeedsBothDomains(t *testing.T) {
	content := readMigration(t, "create_invoice_counters")
	for _, sub := range []string{
		"billing_domain varchar(32) PRIMARY KEY",
		"('facility', 0), ('academy', 0)",
		"DROP TABLE IF EXISTS invoice_counters",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPaymentsMigrationGuardsInvoiceUniqueness(t *testing.T) {
	content := readMigration(t, "create_subscriptions_payments")
	for _, sub := range []string{
		"CONSTRAINT uq_payments_domain_invoice UNIQUE (billing_domain, invoice_number)",
		"CONSTRAINT uq_payments_domain_sequence UNIQUE (billing_domain, invoice_sequence)",
		"DEFERRABLE INITIALLY DEFERRED",
		"CHECK (amount > 0)",
		"DROP TABLE IF EXISTS payments",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateStampsVersionAndSlug(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("x", 3600))
	path, err := migrate.Create(dir, "Add Member Notes!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260304040607_add_member_notes.sql" {
		t.Fatalf("unexpected filename %s", path)
	}
	if _, err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("validate created migration: %v", err)
	}
	if _, err := migrate.Create(dir, "add member notes", now); err == nil {
		t.Fatal("expected duplicate create to fail")
	}
}

func TestCreateRejectsEmptySlug(t *testing.T) {
	if _, err := migrate.Create(t.TempDir(), " !! ", time.Now()); err == nil {
		t.Fatal("expected error for unusable name")
	}
}

func TestValidateRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"001_bad.sql":                   "-- +goose Up\n-- +goose Down\n",
		"20260101000000_no_down.sql":    "-- +goose Up\nSELECT 1;\n",
		"20260101000000_down_first.sql": "-- +goose Down\n-- +goose Up\n",
		"20260101000000_open_block.sql": "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n",
		"20260101000000_stray_end.sql":  "-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n",
	}
	for name, body := range cases {
		src := migrate.Source{FS: fstest.MapFS{name: {Data: []byte(body)}}, Dir: "."}
		if _, err := src.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestValidateRejectsDuplicateVersions(t *testing.T) {
	body := []byte("-- +goose Up\n-- +goose Down\n")
	src := migrate.Source{FS: fstest.MapFS{
		"20260101000000_a.sql": {Data: body},
		"20260101000000_b.sql": {Data: body},
	}}
	if _, err := src.Validate(); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := migrate.ParseVersion("20260105090200"); err != nil || v != 20260105090200 {
		t.Fatalf("got %d, %v", v, err)
	}
	for _, bad := range []string{"", "123", "2026010509020x"} {
		if _, err := migrate.ParseVersion(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestSlug(t *testing.T) {
	if got := migrate.Slug("  Payments: Add Index "); got != "payments_add_index" {
		t.Fatalf("got %q", got)
	}
}
