package model

import (
	"time"

	"github.com/AnTengye/creditreport/pkg/xmltree"
)

// Defaults used when a field cannot be located in the source document
const (
	NotAvailable = "N/A"

	StatusActive  = "Active"
	StatusClosed  = "Closed"
	StatusUnknown = "Unknown"
)

// BasicDetails identifies the consumer the report was pulled for
type BasicDetails struct {
	Name        string `json:"name"`
	MobilePhone string `json:"mobilePhone"`
	PAN         string `json:"pan"`
	CreditScore int    `json:"creditScore"`
}

// ReportSummary aggregates the tradelines of a report. Secured and unsecured
// figures count accounts by portfolio type.
type ReportSummary struct {
	TotalAccounts           int     `json:"totalAccounts"`
	ActiveAccounts          int     `json:"activeAccounts"`
	ClosedAccounts          int     `json:"closedAccounts"`
	CurrentBalanceAmount    float64 `json:"currentBalanceAmount"`
	SecuredAccountsAmount   float64 `json:"securedAccountsAmount"`
	UnsecuredAccountsAmount float64 `json:"unsecuredAccountsAmount"`
	Last7DaysEnquiries      int     `json:"last7DaysEnquiries"`
}

// CreditAccount is one tradeline
type CreditAccount struct {
	Type           string  `json:"type"`
	Bank           string  `json:"bank"`
	Address        string  `json:"address"`
	AccountNumber  string  `json:"accountNumber"`
	AmountOverdue  float64 `json:"amountOverdue"`
	CurrentBalance float64 `json:"currentBalance"`
	Status         string  `json:"status"`
	OpenDate       *string `json:"openDate"`
	CreditLimit    *int    `json:"creditLimit"`
}

// AdditionalDetails is best-effort metadata about the report itself
type AdditionalDetails struct {
	DateOfBirth     string `json:"dateOfBirth"`
	ExactMatch      bool   `json:"exactMatch"`
	ReportDate      string `json:"reportDate"`
	ReportTime      string `json:"reportTime"`
	EnquiryUsername string `json:"enquiryUsername"`
}

// CreditReport is the persisted result of one upload
type CreditReport struct {
	ID                string            `json:"id"`
	FileName          string            `json:"fileName"`
	OriginalFileName  string            `json:"originalFileName"`
	FileData          []byte            `json:"-"`
	FileSize          int64             `json:"fileSize"`
	FileType          string            `json:"fileType"`
	ArchiveObject     string            `json:"archiveObject,omitempty"`
	UploadedBy        string            `json:"uploadedBy,omitempty"`
	UploadDate        time.Time         `json:"uploadDate"`
	BasicDetails      BasicDetails      `json:"basicDetails"`
	ReportSummary     ReportSummary     `json:"reportSummary"`
	CreditAccounts    []CreditAccount   `json:"creditAccounts"`
	AdditionalDetails AdditionalDetails `json:"additionalDetails"`
	RawData           xmltree.Tree      `json:"rawData"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// ReportListItem is the projection returned when listing reports
type ReportListItem struct {
	ID            string        `json:"id"`
	FileName      string        `json:"fileName"`
	UploadDate    time.Time     `json:"uploadDate"`
	BasicDetails  BasicDetails  `json:"basicDetails"`
	ReportSummary ReportSummary `json:"reportSummary"`
	FileSize      int64         `json:"fileSize"`
}

// ListItem projects the report for list views
func (r *CreditReport) ListItem() ReportListItem {
	return ReportListItem{
		ID:            r.ID,
		FileName:      r.FileName,
		UploadDate:    r.UploadDate,
		BasicDetails:  r.BasicDetails,
		ReportSummary: r.ReportSummary,
		FileSize:      r.FileSize,
	}
}
