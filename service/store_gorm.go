package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AnTengye/creditreport/model"
	"github.com/AnTengye/creditreport/pkg/xmltree"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// reportRecord is the persisted shape of a credit report. Scalar sections
// are flattened into columns so listing never touches the JSON blobs.
type reportRecord struct {
	ID                string              `gorm:"primaryKey;size:36"`
	FileName          string              `gorm:"size:255;not null;uniqueIndex"`
	OriginalFileName  string              `gorm:"size:255;not null"`
	FileData          []byte              `gorm:"not null"`
	FileSize          int64               `gorm:"not null"`
	FileType          string              `gorm:"size:100"`
	ArchiveObject     string              `gorm:"size:512"`
	UploadedBy        string              `gorm:"size:36;index"`
	UploadDate        time.Time           `gorm:"index"`
	BasicDetails      model.BasicDetails  `gorm:"embedded;embeddedPrefix:basic_"`
	ReportSummary     model.ReportSummary `gorm:"embedded;embeddedPrefix:summary_"`
	CreditAccounts    datatypes.JSONSlice[model.CreditAccount]
	AdditionalDetails datatypes.JSONType[model.AdditionalDetails]
	RawData           datatypes.JSON
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (reportRecord) TableName() string {
	return "credit_reports"
}

func newReportRecord(r *model.CreditReport) (*reportRecord, error) {
	raw, err := json.Marshal(r.RawData)
	if err != nil {
		return nil, fmt.Errorf("encode raw data: %w", err)
	}
	accounts := r.CreditAccounts
	if accounts == nil {
		accounts = []model.CreditAccount{}
	}
	return &reportRecord{
		ID:                r.ID,
		FileName:          r.FileName,
		OriginalFileName:  r.OriginalFileName,
		FileData:          r.FileData,
		FileSize:          r.FileSize,
		FileType:          r.FileType,
		ArchiveObject:     r.ArchiveObject,
		UploadedBy:        r.UploadedBy,
		UploadDate:        r.UploadDate,
		BasicDetails:      r.BasicDetails,
		ReportSummary:     r.ReportSummary,
		CreditAccounts:    datatypes.JSONSlice[model.CreditAccount](accounts),
		AdditionalDetails: datatypes.NewJSONType(r.AdditionalDetails),
		RawData:           datatypes.JSON(raw),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}, nil
}

func (rec *reportRecord) toModel() (*model.CreditReport, error) {
	var tree xmltree.Tree
	if len(rec.RawData) > 0 {
		if err := json.Unmarshal(rec.RawData, &tree); err != nil {
			return nil, fmt.Errorf("decode raw data: %w", err)
		}
	}
	accounts := []model.CreditAccount(rec.CreditAccounts)
	if accounts == nil {
		accounts = []model.CreditAccount{}
	}
	return &model.CreditReport{
		ID:                rec.ID,
		FileName:          rec.FileName,
		OriginalFileName:  rec.OriginalFileName,
		FileData:          rec.FileData,
		FileSize:          rec.FileSize,
		FileType:          rec.FileType,
		ArchiveObject:     rec.ArchiveObject,
		UploadedBy:        rec.UploadedBy,
		UploadDate:        rec.UploadDate,
		BasicDetails:      rec.BasicDetails,
		ReportSummary:     rec.ReportSummary,
		CreditAccounts:    accounts,
		AdditionalDetails: rec.AdditionalDetails.Data(),
		RawData:           tree,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}, nil
}

// GormReportStore stores reports in a SQL database through gorm.
type GormReportStore struct {
	db *gorm.DB
}

func NewGormReportStore(db *gorm.DB) *GormReportStore {
	return &GormReportStore{db: db}
}

func (s *GormReportStore) Create(ctx context.Context, report *model.CreditReport) error {
	prepareForCreate(report, time.Now())
	rec, err := newReportRecord(report)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *GormReportStore) FindAll(ctx context.Context) ([]model.ReportListItem, error) {
	var records []reportRecord
	err := s.db.WithContext(ctx).
		Omit("file_data", "raw_data", "credit_accounts", "additional_details").
		Order("upload_date DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	items := make([]model.ReportListItem, 0, len(records))
	for _, rec := range records {
		items = append(items, model.ReportListItem{
			ID:            rec.ID,
			FileName:      rec.FileName,
			UploadDate:    rec.UploadDate,
			BasicDetails:  rec.BasicDetails,
			ReportSummary: rec.ReportSummary,
			FileSize:      rec.FileSize,
		})
	}
	return items, nil
}

func (s *GormReportStore) FindByID(ctx context.Context, id string) (*model.CreditReport, error) {
	var rec reportRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find report: %w", err)
	}
	return rec.toModel()
}

func (s *GormReportStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&reportRecord{}, "id = ?", id)
	if res.Error != nil {
		return false, fmt.Errorf("delete report: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
