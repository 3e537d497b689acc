package service

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/AnTengye/creditreport/model"
	"github.com/AnTengye/creditreport/pkg/xmltree"
)

// Extraction sections, used in logs and fault metrics
const (
	SectionBasicDetails      = "basic_details"
	SectionReportSummary     = "report_summary"
	SectionCreditAccounts    = "credit_accounts"
	SectionAdditionalDetails = "additional_details"
)

const applicantPath = "Current_Application.Current_Application_Details.Current_Applicant_Details"

var (
	accountDetailsPath = xmltree.MustPath("CAIS_Account.CAIS_Account_DETAILS")

	firstName = Field(applicantPath+".First_Name", AnyText)
	lastName  = Field(applicantPath+".Last_Name", AnyText)

	mobileCandidates = []Candidate[string]{
		Field(applicantPath+".MobilePhoneNumber", NonEmptyText),
		Field("CAIS_Account.CAIS_Account_DETAILS[0].CAIS_Holder_Phone_Details[0].Telephone_Number", NonEmptyText),
	}
	panCandidates = []Candidate[string]{
		Field("CAIS_Account.CAIS_Account_DETAILS[0].CAIS_Holder_Details[0].Income_TAX_PAN", NonEmptyText),
		Field(applicantPath+".IncomeTaxPan", NonEmptyText),
	}
	bureauScore = Field("SCORE.BureauScore", LenientInt)

	summaryTotal       = Field("CAIS_Account.CAIS_Summary.Credit_Account.CreditAccountTotal", LenientInt)
	summaryActive      = Field("CAIS_Account.CAIS_Summary.Credit_Account.CreditAccountActive", LenientInt)
	summaryClosed      = Field("CAIS_Account.CAIS_Summary.Credit_Account.CreditAccountClosed", LenientInt)
	summaryOutstanding = Field("CAIS_Account.CAIS_Summary.Total_Outstanding_Balance.Outstanding_Balance_All", LenientFloat)
	enquiriesLast7Days = Field("TotalCAPS_Summary.TotalCAPSLast7Days", LenientInt)

	accountStatus  = Field("Account_Status", AnyText)
	accountType    = Field("Account_Type", AnyText)
	portfolioType  = Field("Portfolio_Type", AnyText)
	currentBalance = Field("Current_Balance", LenientFloat)
	amountPastDue  = Field("Amount_Past_Due", LenientFloat)
	subscriberName = Field("Subscriber_Name", NonEmptyText)
	accountNumber  = Field("Account_Number", NonEmptyText)
	openDate       = Field("Open_Date", NonEmptyText)
	creditLimit    = Field("Credit_Limit_Amount", LenientInt)
	holderAddress  = xmltree.MustPath("CAIS_Holder_Address_Details[0]")
	addressLineOne = Field("First_Line_Of_Address_non_normalized", AnyText)
	addressLineTwo = Field("Second_Line_Of_Address_non_normalized", AnyText)
	addressCity    = Field("City_non_normalized", AnyText)

	dateOfBirth     = Field(applicantPath+".Date_Of_Birth_Applicant", NonEmptyText)
	exactMatch      = Field("Match_result.Exact_match", AnyText)
	reportDate      = Field("Header.ReportDate", NonEmptyText)
	reportTime      = Field("Header.ReportTime", NonEmptyText)
	enquiryUsername = Field("CreditProfileHeader.Enquiry_Username", NonEmptyText)
)

// ExtractionFault is a panic raised while reading one section of a report.
// It never leaves the extractor: the section falls back to its defaults.
type ExtractionFault struct {
	Section string
	Cause   any
}

func (f *ExtractionFault) Error() string {
	return fmt.Sprintf("extract %s: %v", f.Section, f.Cause)
}

// Extractor turns a decoded bureau report into structured records. All
// methods are pure with respect to the tree and safe for concurrent use.
type Extractor struct {
	codes   CodeTables
	onFault func(*ExtractionFault)
}

// NewExtractor returns an extractor using the given code tables. onFault, if
// not nil, is called for every recovered fault.
func NewExtractor(codes CodeTables, onFault func(*ExtractionFault)) *Extractor {
	return &Extractor{codes: codes, onFault: onFault}
}

// recoverSection must be deferred directly by an extraction method.
func (x *Extractor) recoverSection(section string, reset func()) {
	r := recover()
	if r == nil {
		return
	}
	fault := &ExtractionFault{Section: section, Cause: r}
	slog.Warn("extraction fault, using defaults",
		"section", section,
		"error", fault.Error(),
		"stack", string(debug.Stack()),
	)
	reset()
	if x.onFault != nil {
		x.onFault(fault)
	}
}

func defaultBasicDetails() model.BasicDetails {
	return model.BasicDetails{
		Name:        model.NotAvailable,
		MobilePhone: model.NotAvailable,
		PAN:         model.NotAvailable,
	}
}

func defaultAdditionalDetails() model.AdditionalDetails {
	return model.AdditionalDetails{
		DateOfBirth:     model.NotAvailable,
		ReportDate:      model.NotAvailable,
		ReportTime:      model.NotAvailable,
		EnquiryUsername: model.NotAvailable,
	}
}

// ExtractBasicDetails reads name, mobile phone, PAN and bureau score
func (x *Extractor) ExtractBasicDetails(tree xmltree.Tree) (details model.BasicDetails) {
	defer x.recoverSection(SectionBasicDetails, func() { details = defaultBasicDetails() })

	root := tree.Root
	name := strings.TrimSpace(Resolve(root, "", firstName) + " " + Resolve(root, "", lastName))
	if name == "" {
		name = model.NotAvailable
	}

	return model.BasicDetails{
		Name:        name,
		MobilePhone: Resolve(root, model.NotAvailable, mobileCandidates...),
		PAN:         Resolve(root, model.NotAvailable, panCandidates...),
		CreditScore: Resolve(root, 0, bureauScore),
	}
}

// accounts returns the tradelines in document order
func accounts(tree xmltree.Tree) xmltree.Sequence {
	n, _ := accountDetailsPath.Resolve(tree.Root)
	return xmltree.AsSequence(n)
}

// ExtractReportSummary tallies the tradelines. Counts and the outstanding
// balance from CAIS_Summary win over the computed tallies when present.
func (x *Extractor) ExtractReportSummary(tree xmltree.Tree) (summary model.ReportSummary) {
	defer x.recoverSection(SectionReportSummary, func() { summary = model.ReportSummary{} })

	var (
		list               = accounts(tree)
		active, closed     int
		balance            float64
		secured, unsecured int
	)
	for _, acc := range list {
		switch x.codes.AccountStatus(Resolve(acc, "", accountStatus)) {
		case model.StatusActive:
			active++
		case model.StatusClosed:
			closed++
		}

		balance += Resolve(acc, 0, currentBalance)

		switch x.codes.Portfolio(Resolve(acc, "", portfolioType)) {
		case PortfolioSecured:
			secured++
		case PortfolioUnsecured:
			unsecured++
		}
	}

	root := tree.Root
	return model.ReportSummary{
		TotalAccounts:           Resolve(root, len(list), summaryTotal),
		ActiveAccounts:          Resolve(root, active, summaryActive),
		ClosedAccounts:          Resolve(root, closed, summaryClosed),
		CurrentBalanceAmount:    Resolve(root, balance, summaryOutstanding),
		SecuredAccountsAmount:   float64(secured),
		UnsecuredAccountsAmount: float64(unsecured),
		Last7DaysEnquiries:      Resolve(root, 0, enquiriesLast7Days),
	}
}

// ExtractCreditAccounts normalizes every tradeline
func (x *Extractor) ExtractCreditAccounts(tree xmltree.Tree) (out []model.CreditAccount) {
	defer x.recoverSection(SectionCreditAccounts, func() { out = []model.CreditAccount{} })

	list := accounts(tree)
	out = make([]model.CreditAccount, 0, len(list))
	for i, acc := range list {
		out = append(out, x.creditAccount(i, acc))
	}
	return out
}

func (x *Extractor) creditAccount(i int, acc xmltree.Node) model.CreditAccount {
	account := model.CreditAccount{
		Type:           x.codes.AccountType(Resolve(acc, "", accountType)),
		Bank:           Resolve(acc, model.NotAvailable, subscriberName),
		Address:        address(acc),
		AccountNumber:  Resolve(acc, fmt.Sprintf("ACC-%d", i+1), accountNumber),
		AmountOverdue:  Resolve(acc, 0, amountPastDue),
		CurrentBalance: Resolve(acc, 0, currentBalance),
		Status:         x.codes.AccountStatus(Resolve(acc, "", accountStatus)),
	}
	if v, ok := resolveOK(acc, openDate); ok {
		account.OpenDate = &v
	}
	if v, ok := resolveOK(acc, creditLimit); ok {
		account.CreditLimit = &v
	}
	return account
}

// address joins the address lines. Blank lines still take their slot; a
// missing or empty address block gives N/A.
func address(acc xmltree.Node) string {
	block, ok := holderAddress.Resolve(acc)
	if _, isEl := block.(*xmltree.Element); !ok || !isEl {
		return model.NotAvailable
	}
	parts := []string{
		Resolve(block, "", addressLineOne),
		Resolve(block, "", addressLineTwo),
		Resolve(block, "", addressCity),
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func resolveOK[T any](n xmltree.Node, c Candidate[T]) (T, bool) {
	var zero T
	found, ok := c.Path.Resolve(n)
	if !ok {
		return zero, false
	}
	return c.Transform(found)
}

// ExtractAdditionalDetails reads metadata about the enquiry itself
func (x *Extractor) ExtractAdditionalDetails(tree xmltree.Tree) (details model.AdditionalDetails) {
	defer x.recoverSection(SectionAdditionalDetails, func() { details = defaultAdditionalDetails() })

	root := tree.Root
	return model.AdditionalDetails{
		DateOfBirth:     Resolve(root, model.NotAvailable, dateOfBirth),
		ExactMatch:      Resolve(root, "", exactMatch) == "Y",
		ReportDate:      Resolve(root, model.NotAvailable, reportDate),
		ReportTime:      Resolve(root, model.NotAvailable, reportTime),
		EnquiryUsername: Resolve(root, model.NotAvailable, enquiryUsername),
	}
}

// Extracted groups the four records produced from one document
type Extracted struct {
	BasicDetails      model.BasicDetails
	ReportSummary     model.ReportSummary
	CreditAccounts    []model.CreditAccount
	AdditionalDetails model.AdditionalDetails
}

// ExtractAll runs the four extractions over the same tree
func (x *Extractor) ExtractAll(tree xmltree.Tree) Extracted {
	return Extracted{
		BasicDetails:      x.ExtractBasicDetails(tree),
		ReportSummary:     x.ExtractReportSummary(tree),
		CreditAccounts:    x.ExtractCreditAccounts(tree),
		AdditionalDetails: x.ExtractAdditionalDetails(tree),
	}
}
