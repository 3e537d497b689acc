package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnTengye/creditreport/model"
	"github.com/AnTengye/creditreport/pkg/logger"
	"github.com/AnTengye/creditreport/pkg/metrics"
	"github.com/AnTengye/creditreport/pkg/xmltree"
	"github.com/google/uuid"
)

// Processing stages reported by ProcessingError
const (
	StageDecode  = "decode"
	StageArchive = "archive"
	StagePersist = "persist"
)

var ErrNotArchived = errors.New("report has no archived copy")

// ProcessingError is returned when an upload cannot be turned into a stored
// report. Err is a *xmltree.DecodeError, an archive error or a
// *PersistenceError depending on Stage.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return "failed to process and save XML data: " + e.Err.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a report store failure
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s report: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Upload is one received file
type Upload struct {
	Data       []byte
	FileName   string
	MimeType   string
	UploadedBy string
}

// Inspection summarizes a decoded document without storing it
type Inspection struct {
	RootKeys []string
	Tree     xmltree.Tree
}

// ReportService runs the decode, extract and persist pipeline
type ReportService struct {
	store     ReportStore
	archive   Archiver
	extractor *Extractor
	metrics   *metrics.Metrics
	decodeOpt xmltree.Options
	now       func() time.Time
}

// NewReportService wires the pipeline. archive may be nil to disable
// archiving of original files.
func NewReportService(store ReportStore, archive Archiver, codes CodeTables, m *metrics.Metrics) *ReportService {
	onFault := func(f *ExtractionFault) {
		m.IncrExtractionFault(f.Section)
	}
	return &ReportService{
		store:     store,
		archive:   archive,
		extractor: NewExtractor(codes, onFault),
		metrics:   m,
		decodeOpt: xmltree.DefaultOptions(),
		now:       time.Now,
	}
}

// ArchiveEnabled reports whether original files are copied to object storage
func (s *ReportService) ArchiveEnabled() bool {
	return s.archive != nil
}

func storageFileName(now time.Time) string {
	return fmt.Sprintf("credit-report-%d-%s", now.UnixMilli(), uuid.New().String()[:8])
}

// ProcessAndSave decodes an uploaded report, extracts its records and stores
// the result. The returned report carries its assigned ID.
func (s *ReportService) ProcessAndSave(ctx context.Context, up Upload) (*model.CreditReport, error) {
	start := s.now()
	logger.Info(ctx, "processing report", "file_name", up.FileName, "size", len(up.Data))

	tree, err := xmltree.Decode(up.Data, s.decodeOpt)
	if err != nil {
		s.metrics.IncrProcessed(metrics.OutcomeDecodeError)
		logger.Warn(ctx, "report rejected", "file_name", up.FileName, "error", err)
		return nil, &ProcessingError{Stage: StageDecode, Err: err}
	}
	logger.Debug(ctx, "main sections found", "keys", tree.Keys())

	extracted := s.extractor.ExtractAll(tree)

	report := &model.CreditReport{
		ID:                uuid.New().String(),
		FileName:          storageFileName(start),
		OriginalFileName:  up.FileName,
		FileData:          up.Data,
		FileSize:          int64(len(up.Data)),
		FileType:          up.MimeType,
		UploadedBy:        up.UploadedBy,
		UploadDate:        start,
		BasicDetails:      extracted.BasicDetails,
		ReportSummary:     extracted.ReportSummary,
		CreditAccounts:    extracted.CreditAccounts,
		AdditionalDetails: extracted.AdditionalDetails,
		RawData:           tree,
	}

	if s.archive != nil {
		objectName := ObjectName(report.ID, up.FileName)
		if err := s.archive.Put(ctx, objectName, up.Data, up.MimeType); err != nil {
			s.metrics.IncrProcessed(metrics.OutcomeArchiveError)
			logger.Error(ctx, "failed to archive report", "object", objectName, "error", err)
			return nil, &ProcessingError{Stage: StageArchive, Err: err}
		}
		report.ArchiveObject = objectName
	}

	if err := s.store.Create(ctx, report); err != nil {
		s.metrics.IncrProcessed(metrics.OutcomeStoreError)
		logger.Error(ctx, "failed to save report", "error", err)
		if report.ArchiveObject != "" {
			if rmErr := s.archive.Remove(ctx, report.ArchiveObject); rmErr != nil {
				logger.Warn(ctx, "failed to remove orphaned archive object", "object", report.ArchiveObject, "error", rmErr)
			}
		}
		return nil, &ProcessingError{Stage: StagePersist, Err: &PersistenceError{Op: "save", Err: err}}
	}

	s.metrics.IncrProcessed(metrics.OutcomeSuccess)
	s.metrics.ObserveProcessing(s.now().Sub(start), len(report.CreditAccounts))
	logger.Info(ctx, "report saved",
		"report_id", report.ID,
		"file_name", report.FileName,
		"accounts", len(report.CreditAccounts),
	)
	return report, nil
}

// Inspect decodes data and lists its top-level sections
func (s *ReportService) Inspect(data []byte) (*Inspection, error) {
	tree, err := xmltree.Decode(data, s.decodeOpt)
	if err != nil {
		return nil, err
	}
	return &Inspection{RootKeys: tree.Keys(), Tree: tree}, nil
}

// Validate checks that data is a well-formed XML document
func (s *ReportService) Validate(data []byte) error {
	_, err := xmltree.Decode(data, s.decodeOpt)
	return err
}

func (s *ReportService) List(ctx context.Context) ([]model.ReportListItem, error) {
	items, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return items, nil
}

// Get returns ErrReportNotFound when no report has the given id
func (s *ReportService) Get(ctx context.Context, id string) (*model.CreditReport, error) {
	report, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrReportNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	return report, nil
}

// Delete removes a report and its archived copy. It returns false when the
// report does not exist.
func (s *ReportService) Delete(ctx context.Context, id string) (bool, error) {
	var objectName string
	if s.archive != nil {
		if report, err := s.store.FindByID(ctx, id); err == nil {
			objectName = report.ArchiveObject
		}
	}

	found, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return false, &PersistenceError{Op: "delete", Err: err}
	}
	if !found {
		return false, nil
	}

	if objectName != "" {
		if err := s.archive.Remove(ctx, objectName); err != nil {
			logger.Warn(ctx, "failed to remove archived file", "object", objectName, "error", err)
		}
	}
	logger.Info(ctx, "report deleted", "report_id", id)
	return true, nil
}

// ArchiveURL returns a time-limited download link for the archived original
func (s *ReportService) ArchiveURL(ctx context.Context, id string) (string, error) {
	report, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if s.archive == nil || report.ArchiveObject == "" {
		return "", ErrNotArchived
	}
	return s.archive.PresignedURL(ctx, report.ArchiveObject)
}
