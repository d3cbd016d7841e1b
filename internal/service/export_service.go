package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ims-console-api/internal/models"
	"github.com/noah-isme/ims-console-api/pkg/export"
	"github.com/noah-isme/ims-console-api/pkg/storage"
)

// rosterPageSize is how many rows each upstream page fetch asks for.
const rosterPageSize = 100

type admissionLister interface {
	List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, int, error)
}

type conversionLister interface {
	List(ctx context.Context, filter models.ConversionFilter) ([]models.ConversionRecord, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
	Rows         int
}

// ExportService builds roster datasets and persists rendered files.
type ExportService struct {
	admissions  admissionLister
	conversions conversionLister
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
	now         func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(admissions admissionLister, conversions conversionLister, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		admissions:  admissions,
		conversions: conversions,
		storage:     store,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Generate builds the roster for job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Sugar().Infow("export generated", "job_id", job.ID, "type", job.Type, "rows", len(dataset.Rows))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Format,
		ExpiresAt:    expiresAt,
		Rows:         len(dataset.Rows),
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	scope := job.Params.Status
	if scope == "" {
		scope = "all"
	}
	return fmt.Sprintf("%s_%s_%s.%s", job.Type, sanitizeFilename(scope), timestamp, job.Format)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ExportTypeAdmissions:
		return s.buildAdmissionDataset(ctx, job.Params)
	case models.ExportTypeConversions:
		return s.buildConversionDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %s", job.Type)
	}
}

var admissionHeaders = []string{
	"Admission No", "Full Name", "Mobile", "Father's Name", "Course", "Batch",
	"Faculty", "Source", "Status", "Enquiry No", "Admission Date",
}

func (s *ExportService) buildAdmissionDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	if s.admissions == nil {
		return export.Dataset{}, "", fmt.Errorf("admission source not configured")
	}
	filter := models.AdmissionFilter{
		Search: params.Search,
		Status: models.AdmissionStatus(params.Status),
		Source: models.AdmissionSource(params.Source),
		Course: params.Course,
		Limit:  rosterPageSize,
	}

	var rows []map[string]string
	for page := 1; ; page++ {
		filter.Page = page
		admissions, total, err := s.admissions.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, a := range admissions {
			rows = append(rows, map[string]string{
				"Admission No":   a.AdmissionNo,
				"Full Name":      a.FullName,
				"Mobile":         a.MobileNumber,
				"Father's Name":  a.FatherName,
				"Course":         a.Course.Display(),
				"Batch":          a.PreferredBatch,
				"Faculty":        a.FacultyAllotted,
				"Source":         string(a.Source),
				"Status":         string(a.Status),
				"Enquiry No":     a.EnquiryNo,
				"Admission Date": formatExportDate(a.AdmissionDate),
			})
		}
		if len(admissions) < rosterPageSize || len(rows) >= total {
			break
		}
	}

	title := "Admission Roster"
	if params.Status != "" {
		title = fmt.Sprintf("Admission Roster (%s)", params.Status)
	}
	return export.Dataset{Headers: admissionHeaders, Rows: rows}, title, nil
}

var conversionHeaders = []string{
	"Enquiry No", "Admission No", "Mode", "Reconcile Status", "Reconcile Error", "Converted By", "Converted At", "Reconciled At",
}

func (s *ExportService) buildConversionDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	if s.conversions == nil {
		return export.Dataset{}, "", fmt.Errorf("conversion ledger not configured")
	}
	filter := models.ConversionFilter{
		ReconcileStatus: models.ReconcileStatus(params.ReconcileStatus),
		PageSize:        rosterPageSize,
	}

	var rows []map[string]string
	for page := 1; ; page++ {
		filter.Page = page
		records, total, err := s.conversions.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, r := range records {
			reconciledAt := ""
			if r.ReconciledAt != nil {
				reconciledAt = r.ReconciledAt.UTC().Format(time.RFC3339)
			}
			rows = append(rows, map[string]string{
				"Enquiry No":       r.EnquiryNo,
				"Admission No":     r.AdmissionNo,
				"Mode":             string(r.Mode),
				"Reconcile Status": string(r.ReconcileStatus),
				"Reconcile Error":  r.ReconcileError,
				"Converted By":     r.ActorID,
				"Converted At":     r.CreatedAt.UTC().Format(time.RFC3339),
				"Reconciled At":    reconciledAt,
			})
		}
		if len(records) < rosterPageSize || len(rows) >= total {
			break
		}
	}
	return export.Dataset{Headers: conversionHeaders, Rows: rows}, "Enquiry Conversions", nil
}

func formatExportDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
