package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AnTengye/creditreport/config"
	"github.com/AnTengye/creditreport/model"
	"github.com/AnTengye/creditreport/pkg/xmltree"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDatabase(&config.StoreConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("OpenDatabase failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestOpenDatabaseUnsupportedDriver(t *testing.T) {
	for _, cfg := range []config.StoreConfig{
		{Driver: "mongodb"},
		{Driver: "postgres"},
	} {
		if _, err := OpenDatabase(&cfg); err == nil {
			t.Errorf("Expected error for driver %q with dsn %q", cfg.Driver, cfg.DSN)
		}
	}
}

func TestGormReportStoreRoundTrip(t *testing.T) {
	store := NewGormReportStore(openTestDB(t))
	ctx := context.Background()

	tree, err := xmltree.Decode([]byte(`<INProfileResponse><Header><ReportDate>20240115</ReportDate></Header></INProfileResponse>`), xmltree.DefaultOptions())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	limit := 50000
	open := "20200101"
	report := &model.CreditReport{
		FileName:         "credit-report-1",
		OriginalFileName: "jane.xml",
		FileData:         []byte("<xml/>"),
		FileSize:         6,
		FileType:         "text/xml",
		BasicDetails:     model.BasicDetails{Name: "Jane Doe", PAN: "ABCDE1234F", CreditScore: 745},
		ReportSummary:    model.ReportSummary{TotalAccounts: 1, ActiveAccounts: 1, CurrentBalanceAmount: 1500.5},
		CreditAccounts: []model.CreditAccount{
			{Type: "Credit Card", Bank: "HDFC", Status: model.StatusActive, OpenDate: &open, CreditLimit: &limit},
			{Type: "N/A", Bank: "N/A", Status: model.StatusUnknown},
		},
		AdditionalDetails: model.AdditionalDetails{ReportDate: "20240115", ExactMatch: true},
		RawData:           tree,
	}
	if err := store.Create(ctx, report); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.FindByID(ctx, report.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.BasicDetails != report.BasicDetails {
		t.Errorf("Expected basic details %+v, got %+v", report.BasicDetails, got.BasicDetails)
	}
	if got.ReportSummary != report.ReportSummary {
		t.Errorf("Expected summary %+v, got %+v", report.ReportSummary, got.ReportSummary)
	}
	if len(got.CreditAccounts) != 2 {
		t.Fatalf("Expected 2 accounts, got %d", len(got.CreditAccounts))
	}
	first := got.CreditAccounts[0]
	if first.CreditLimit == nil || *first.CreditLimit != 50000 {
		t.Errorf("Expected credit limit 50000, got %v", first.CreditLimit)
	}
	if first.OpenDate == nil || *first.OpenDate != "20200101" {
		t.Errorf("Expected open date 20200101, got %v", first.OpenDate)
	}
	if got.CreditAccounts[1].CreditLimit != nil {
		t.Error("Expected nil credit limit to survive storage")
	}
	if !got.AdditionalDetails.ExactMatch || got.AdditionalDetails.ReportDate != "20240115" {
		t.Errorf("Unexpected additional details: %+v", got.AdditionalDetails)
	}
	if string(got.FileData) != "<xml/>" {
		t.Errorf("Expected file data to be stored, got %q", got.FileData)
	}
	if v, ok := got.RawData.Lookup("Header.ReportDate"); !ok || v != xmltree.Scalar("20240115") {
		t.Errorf("Expected raw tree to be restored, got %v", v)
	}
}

func TestGormReportStoreListAndDelete(t *testing.T) {
	store := NewGormReportStore(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"first", "second"} {
		err := store.Create(ctx, &model.CreditReport{
			FileName:         name,
			OriginalFileName: name + ".xml",
			FileData:         []byte("<a/>"),
			UploadDate:       base.Add(time.Duration(i) * time.Hour),
			BasicDetails:     model.BasicDetails{Name: name},
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	items, err := store.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].FileName != "second" {
		t.Errorf("Expected newest first, got %s", items[0].FileName)
	}
	if items[0].BasicDetails.Name != "second" {
		t.Errorf("Expected basic details in list item, got %+v", items[0].BasicDetails)
	}

	found, err := store.DeleteByID(ctx, items[0].ID)
	if err != nil || !found {
		t.Fatalf("Expected delete to succeed, got found=%v err=%v", found, err)
	}
	found, _ = store.DeleteByID(ctx, items[0].ID)
	if found {
		t.Error("Expected second delete to report not found")
	}
	if _, err := store.FindByID(ctx, items[0].ID); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("Expected ErrReportNotFound, got %v", err)
	}
}

func TestGormUserStore(t *testing.T) {
	svc := newTestUserService(NewGormUserStore(openTestDB(t)))
	ctx := context.Background()

	jane, err := svc.Register(ctx, "Jane", "Jane@Example.com", "secret123")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := svc.Register(ctx, "Jane Again", "jane@example.com", "secret123"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Expected ErrEmailTaken, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "jane@example.com", "secret123"); err != nil {
		t.Errorf("Authenticate failed: %v", err)
	}

	updated, err := svc.UpdateProfile(ctx, jane.ID, ProfileUpdate{Name: "Jane Smith"})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	profile, err := svc.Profile(ctx, jane.ID)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if profile.Name != "Jane Smith" || profile.Name != updated.Name {
		t.Errorf("Expected updated name, got '%s'", profile.Name)
	}
	if _, err := svc.Profile(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}
