package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/AnTengye/creditreport/middleware"
	"github.com/AnTengye/creditreport/model"
	"github.com/AnTengye/creditreport/pkg/logger"
	"github.com/AnTengye/creditreport/service"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// uploadField is the multipart form field carrying the report file
const uploadField = "xmlFile"

// rawSampleSize is how much of the source document the debug endpoint echoes
const rawSampleSize = 500

// multipartOverhead is the body allowance on top of the file size cap for
// multipart boundaries and part headers
const multipartOverhead = 1 << 20

type ReportHandler struct {
	reports     *service.ReportService
	maxFileSize int64
}

func NewReportHandler(reports *service.ReportService, maxFileSize int64) *ReportHandler {
	return &ReportHandler{reports: reports, maxFileSize: maxFileSize}
}

// UploadResponse summarizes a processed upload
type UploadResponse struct {
	ReportID    string `json:"reportId"`
	FileName    string `json:"fileName"`
	Name        string `json:"name"`
	CreditScore int    `json:"creditScore"`
	FileSize    int64  `json:"fileSize"`
}

// isXMLUpload accepts a file whose name, declared type or content says XML
func isXMLUpload(fileName, declaredType string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(fileName), ".xml") {
		return true
	}
	if mediaType, _, err := mime.ParseMediaType(declaredType); err == nil {
		if mediaType == "text/xml" || mediaType == "application/xml" {
			return true
		}
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/xml") || m.Is("application/xml") {
			return true
		}
	}
	return false
}

// readUpload reads the uploaded file. It writes the error response and
// returns false when no usable file was sent.
func (h *ReportHandler) readUpload(c *gin.Context, missingMessage string) ([]byte, *multipart.FileHeader, bool) {
	header, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "File too large")
			return nil, nil, false
		}
		fail(c, http.StatusBadRequest, missingMessage)
		return nil, nil, false
	}
	if h.maxFileSize > 0 && header.Size > h.maxFileSize {
		fail(c, http.StatusRequestEntityTooLarge, "File too large")
		return nil, nil, false
	}

	file, err := header.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to read file")
		return nil, nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to read file")
		return nil, nil, false
	}
	return data, header, true
}

// Upload processes an uploaded bureau report and stores the result
func (h *ReportHandler) Upload(c *gin.Context) {
	ctx := c.Request.Context()

	data, header, ok := h.readUpload(c, "Please select an XML file to upload")
	if !ok {
		return
	}

	declaredType := header.Header.Get("Content-Type")
	logger.Info(ctx, "file received",
		"original_name", header.Filename,
		"size", header.Size,
		"mimetype", declaredType,
	)

	if !isXMLUpload(header.Filename, declaredType, data) {
		fail(c, http.StatusBadRequest, "Please upload only XML files")
		return
	}

	report, err := h.reports.ProcessAndSave(ctx, service.Upload{
		Data:       data,
		FileName:   header.Filename,
		MimeType:   declaredType,
		UploadedBy: middleware.GetUserID(c),
	})
	if err != nil {
		var procErr *service.ProcessingError
		switch {
		case errors.As(err, &procErr) && procErr.Stage == service.StageDecode:
			fail(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrArchiveUnavailable):
			fail(c, http.StatusServiceUnavailable, err.Error())
		default:
			fail(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respond(c, http.StatusCreated, "XML file processed successfully", UploadResponse{
		ReportID:    report.ID,
		FileName:    report.FileName,
		Name:        report.BasicDetails.Name,
		CreditScore: report.BasicDetails.CreditScore,
		FileSize:    report.FileSize,
	})
}

// List returns all reports, newest first
func (h *ReportHandler) List(c *gin.Context) {
	items, err := h.reports.List(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list reports", "error", err)
		fail(c, http.StatusInternalServerError, "Failed to load reports")
		return
	}
	respondList(c, items, len(items))
}

// load fetches the report named by the :id parameter. It writes the error
// response and returns nil when the report cannot be loaded.
func (h *ReportHandler) load(c *gin.Context) *model.CreditReport {
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrReportNotFound) {
		fail(c, http.StatusNotFound, "Report not found")
		return nil
	}
	if err != nil {
		logger.Error(c.Request.Context(), "failed to load report", "error", err)
		fail(c, http.StatusInternalServerError, "Failed to load report")
		return nil
	}
	return report
}

// Get returns a single report with all extracted sections
func (h *ReportHandler) Get(c *gin.Context) {
	report := h.load(c)
	if report == nil {
		return
	}
	respond(c, http.StatusOK, "", report)
}

// Delete removes a report. Only its uploader or an admin may delete it.
func (h *ReportHandler) Delete(c *gin.Context) {
	report := h.load(c)
	if report == nil {
		return
	}

	if report.UploadedBy != "" && report.UploadedBy != middleware.GetUserID(c) && middleware.GetRole(c) != model.RoleAdmin {
		fail(c, http.StatusForbidden, "Not allowed to delete this report")
		return
	}

	found, err := h.reports.Delete(c.Request.Context(), report.ID)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to delete report", "error", err)
		fail(c, http.StatusInternalServerError, "Failed to delete report")
		return
	}
	if !found {
		fail(c, http.StatusNotFound, "Report not found")
		return
	}

	respond(c, http.StatusOK, "Report deleted successfully", nil)
}

// Download streams the original uploaded file
func (h *ReportHandler) Download(c *gin.Context) {
	report := h.load(c)
	if report == nil {
		return
	}
	if len(report.FileData) == 0 {
		fail(c, http.StatusNotFound, "Report or file not found")
		return
	}

	name := report.OriginalFileName
	if name == "" {
		name = report.FileName + ".xml"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Data(http.StatusOK, "application/xml", report.FileData)
}

// ArchiveURL returns a presigned link to the archived original
func (h *ReportHandler) ArchiveURL(c *gin.Context) {
	ctx := c.Request.Context()

	url, err := h.reports.ArchiveURL(ctx, c.Param("id"))
	switch {
	case errors.Is(err, service.ErrReportNotFound):
		fail(c, http.StatusNotFound, "Report not found")
	case errors.Is(err, service.ErrNotArchived):
		fail(c, http.StatusNotFound, "Report has no archived copy")
	case err != nil:
		logger.Error(ctx, "failed to generate archive url", "error", err)
		fail(c, http.StatusInternalServerError, "Failed to generate download link")
	default:
		respond(c, http.StatusOK, "", gin.H{"url": url})
	}
}

// DebugXML decodes an uploaded file without storing it and shows its
// structure
func (h *ReportHandler) DebugXML(c *gin.Context) {
	data, _, ok := h.readUpload(c, "No file uploaded")
	if !ok {
		return
	}

	inspection, err := h.reports.Inspect(data)
	if err != nil {
		fail(c, http.StatusBadRequest, "Parse error: "+err.Error())
		return
	}
	logger.Debug(c.Request.Context(), "xml structure analyzed", "root_keys", inspection.RootKeys)

	sample := string(data)
	if len(sample) > rawSampleSize {
		sample = sample[:rawSampleSize] + "..."
	}
	respond(c, http.StatusOK, "XML structure analyzed", gin.H{
		"rootKeys":      inspection.RootKeys,
		"sampleData":    inspection.Tree,
		"rawDataSample": sample,
	})
}

// TestUpload checks that a file is well-formed XML. Problems are reported
// with success false and status 200.
func (h *ReportHandler) TestUpload(c *gin.Context) {
	data, header, ok := h.readUpload(c, "No file uploaded")
	if !ok {
		return
	}

	if !bytes.Contains(data, []byte("<?xml")) {
		fail(c, http.StatusOK, "Not a valid XML file")
		return
	}
	if err := h.reports.Validate(data); err != nil {
		fail(c, http.StatusOK, fmt.Sprintf("XML parse error: %v", err))
		return
	}

	respond(c, http.StatusOK, "XML file is valid and can be processed", gin.H{
		"fileName":  header.Filename,
		"dataFound": true,
	})
}
