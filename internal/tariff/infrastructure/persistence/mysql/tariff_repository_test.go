package mysql

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/cargotariff/internal/tariff/domain"
	"github.com/wyfcoding/cargotariff/pkg/config"
	"github.com/wyfcoding/cargotariff/pkg/db"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Init(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "tariffs.db"),
	}, db.Options{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := AutoMigrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func day(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func mustCargoType(t *testing.T, repo *TariffRepository, name string) *domain.CargoType {
	t.Helper()
	ct, err := domain.NewCargoType(name)
	if err != nil {
		t.Fatalf("NewCargoType: %v", err)
	}
	if err := repo.CreateCargoType(context.Background(), ct); err != nil {
		t.Fatalf("CreateCargoType(%q): %v", name, err)
	}
	return ct
}

func mustTariff(t *testing.T, repo *TariffRepository, typeID uuid.UUID, date string, rate string) *domain.Tariff {
	t.Helper()
	tariff, err := domain.NewTariff(typeID, day(date), decimal.RequireFromString(rate))
	if err != nil {
		t.Fatalf("NewTariff: %v", err)
	}
	if err := repo.CreateTariff(context.Background(), tariff); err != nil {
		t.Fatalf("CreateTariff: %v", err)
	}
	return tariff
}

func TestCargoTypeLifecycle(t *testing.T) {
	repo := NewTariffRepository(openTestDB(t))
	ctx := context.Background()

	missing, err := repo.FindCargoTypeByName(ctx, "Electronics")
	if err != nil || missing != nil {
		t.Fatalf("absent cargo type: got %v, %v", missing, err)
	}

	created := mustCargoType(t, repo, "Electronics")

	found, err := repo.FindCargoTypeByName(ctx, "Electronics")
	if err != nil {
		t.Fatalf("FindCargoTypeByName: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Fatalf("found: %+v", found)
	}

	dup, _ := domain.NewCargoType("Electronics")
	if err := repo.CreateCargoType(ctx, dup); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate name: want ErrConflict, got %v", err)
	}

	// 名称区分大小写
	mustCargoType(t, repo, "electronics")
	all, err := repo.ListCargoTypes(ctx)
	if err != nil {
		t.Fatalf("ListCargoTypes: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("cargo types: got %d want 2", len(all))
	}

	byID, err := repo.GetCargoType(ctx, created.ID)
	if err != nil || byID == nil || byID.Name != "Electronics" {
		t.Fatalf("GetCargoType: %+v %v", byID, err)
	}
}

func TestTariffCRUD(t *testing.T) {
	repo := NewTariffRepository(openTestDB(t))
	ctx := context.Background()
	ct := mustCargoType(t, repo, "Glass")

	tariff := mustTariff(t, repo, ct.ID, "2024-01-01", "0.04")

	found, err := repo.FindTariff(ctx, ct.ID, day("2024-01-01"))
	if err != nil {
		t.Fatalf("FindTariff: %v", err)
	}
	if found == nil || found.ID != tariff.ID || !found.Rate.Equal(decimal.RequireFromString("0.04")) {
		t.Fatalf("found tariff: %+v", found)
	}
	if !found.TariffDate.Equal(day("2024-01-01")) {
		t.Fatalf("tariff date round trip: %v", found.TariffDate)
	}

	other, err := repo.FindTariff(ctx, ct.ID, day("2024-01-02"))
	if err != nil || other != nil {
		t.Fatalf("other date: %v %v", other, err)
	}

	dup, _ := domain.NewTariff(ct.ID, day("2024-01-01"), decimal.RequireFromString("0.05"))
	if err := repo.CreateTariff(ctx, dup); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate (type, date): want ErrConflict, got %v", err)
	}

	updated, err := repo.UpdateTariffRate(ctx, tariff.ID, decimal.RequireFromString("0.07"))
	if err != nil {
		t.Fatalf("UpdateTariffRate: %v", err)
	}
	if !updated.Rate.Equal(decimal.RequireFromString("0.07")) {
		t.Fatalf("updated rate: %s", updated.Rate)
	}
	reloaded, _ := repo.GetTariff(ctx, tariff.ID)
	if reloaded == nil || !reloaded.Rate.Equal(decimal.RequireFromString("0.07")) {
		t.Fatalf("reloaded: %+v", reloaded)
	}

	if _, err := repo.UpdateTariffRate(ctx, uuid.New(), decimal.Zero); !errors.Is(err, domain.ErrTariffNotFound) {
		t.Fatalf("stale id update: got %v", err)
	}

	if err := repo.DeleteTariff(ctx, tariff.ID); err != nil {
		t.Fatalf("DeleteTariff: %v", err)
	}
	if err := repo.DeleteTariff(ctx, tariff.ID); !errors.Is(err, domain.ErrTariffNotFound) {
		t.Fatalf("second delete: got %v", err)
	}
	gone, err := repo.GetTariff(ctx, tariff.ID)
	if err != nil || gone != nil {
		t.Fatalf("deleted tariff still visible: %v %v", gone, err)
	}

	// 删除费率不影响货物类型
	still, _ := repo.GetCargoType(ctx, ct.ID)
	if still == nil {
		t.Fatal("cargo type must survive tariff deletion")
	}
}

func TestFindTariffByDateAndTypeName(t *testing.T) {
	repo := NewTariffRepository(openTestDB(t))
	ctx := context.Background()
	a := mustCargoType(t, repo, "A")
	b := mustCargoType(t, repo, "B")
	mustTariff(t, repo, a.ID, "2024-01-01", "0.1")
	want := mustTariff(t, repo, b.ID, "2024-01-01", "0.2")
	mustTariff(t, repo, b.ID, "2024-01-02", "0.3")

	got, err := repo.FindTariffByDateAndTypeName(ctx, day("2024-01-01"), "B")
	if err != nil {
		t.Fatalf("FindTariffByDateAndTypeName: %v", err)
	}
	if got == nil || got.ID != want.ID {
		t.Fatalf("got %+v want %s", got, want.ID)
	}

	none, err := repo.FindTariffByDateAndTypeName(ctx, day("2024-01-03"), "B")
	if err != nil || none != nil {
		t.Fatalf("missing date: %v %v", none, err)
	}
	none, err = repo.FindTariffByDateAndTypeName(ctx, day("2024-01-01"), "b")
	if err != nil || none != nil {
		t.Fatalf("name match must be exact: %v %v", none, err)
	}

	list, err := repo.ListTariffs(ctx)
	if err != nil || len(list) != 3 {
		t.Fatalf("ListTariffs: %d %v", len(list), err)
	}
}

func TestConflictInsideTransactionKeepsTxUsable(t *testing.T) {
	repo := NewTariffRepository(openTestDB(t))
	ctx := context.Background()
	existing := mustCargoType(t, repo, "Existing")

	err := repo.WithTx(ctx, func(txCtx context.Context) error {
		dup, _ := domain.NewCargoType("Existing")
		if err := repo.CreateCargoType(txCtx, dup); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("want conflict inside tx, got %v", err)
		}
		reread, err := repo.FindCargoTypeByName(txCtx, "Existing")
		if err != nil || reread == nil || reread.ID != existing.ID {
			t.Fatalf("re-read after conflict: %+v %v", reread, err)
		}
		fresh, _ := domain.NewCargoType("Fresh")
		return repo.CreateCargoType(txCtx, fresh)
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	fresh, err := repo.FindCargoTypeByName(ctx, "Fresh")
	if err != nil || fresh == nil {
		t.Fatalf("write after savepoint rollback must commit: %v %v", fresh, err)
	}
}

func TestAuditLogRepositoryDeduplicates(t *testing.T) {
	d := openTestDB(t)
	repo := NewAuditLogRepository(d)
	ctx := context.Background()

	event := domain.NewTariffAuditEvent("operator-1", domain.AuditActionUpdate, uuid.New())
	first, err := domain.NewAuditLog(event, "audit", 0, 10)
	if err != nil {
		t.Fatalf("NewAuditLog: %v", err)
	}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	redelivered, _ := domain.NewAuditLog(event, "audit", 0, 10)
	if err := repo.Save(ctx, redelivered); err != nil {
		t.Fatalf("redelivered Save: %v", err)
	}
	next, _ := domain.NewAuditLog(event, "audit", 0, 11)
	if err := repo.Save(ctx, next); err != nil {
		t.Fatalf("Save next: %v", err)
	}

	logs, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("audit logs: got %d want 2", len(logs))
	}
	if logs[0].Action != domain.AuditActionUpdate || logs[0].UserID != "operator-1" {
		t.Fatalf("audit log fields: %+v", logs[0])
	}
}

func TestCorruptRateIsStorageError(t *testing.T) {
	d := openTestDB(t)
	repo := NewTariffRepository(d)
	ctx := context.Background()
	ct := mustCargoType(t, repo, "Glass")
	tariff := mustTariff(t, repo, ct.ID, "2024-01-01", "0.04")

	if err := d.Exec("UPDATE cargo_tariffs SET rate = 'abc' WHERE uid = ?", tariff.ID.String()).Error; err != nil {
		t.Fatalf("corrupt rate: %v", err)
	}

	if got, err := repo.GetTariff(ctx, tariff.ID); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("GetTariff: want ErrStorage, got %+v %v", got, err)
	}
	if got, err := repo.FindTariffByDateAndTypeName(ctx, day("2024-01-01"), "Glass"); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("FindTariffByDateAndTypeName: want ErrStorage, got %+v %v", got, err)
	}
	if _, err := repo.ListTariffs(ctx); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("ListTariffs: want ErrStorage, got %v", err)
	}
}
