package services

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/skillgate/attempt-service/internal/models"
	"github.com/skillgate/attempt-service/internal/repositories"
	"github.com/skillgate/attempt-service/internal/utils"
)

// ExportService renders attempt proctoring data into downloadable reports.
type ExportService interface {
	ProctoringReport(ctx context.Context, attemptID uint, requesterID string) ([]byte, string, error)
}

type exportService struct {
	repo    repositories.Repository
	catalog TestCatalog
	logger  utils.Logger
}

func NewExportService(repo repositories.Repository, catalog TestCatalog, logger utils.Logger) ExportService {
	return &exportService{repo: repo, catalog: catalog, logger: logger}
}

// ProctoringReport builds an XLSX workbook of the attempt's violation log.
// The candidate who owns the attempt and the owner of its test may download
// it; nobody else.
func (s *exportService) ProctoringReport(ctx context.Context, attemptID uint, requesterID string) ([]byte, string, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", ErrAttemptNotFound
		}
		return nil, "", fmt.Errorf("failed to load attempt %d: %w", attemptID, err)
	}

	test, err := s.catalog.Get(ctx, attempt.TestID)
	if err != nil {
		return nil, "", err
	}
	if requesterID != attempt.CandidateID && requesterID != test.OwnerID {
		return nil, "", NewPermissionError(requesterID, attemptID, "export")
	}

	data, err := buildProctoringWorkbook(attempt, test)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build proctoring report: %w", err)
	}

	filename := fmt.Sprintf("proctoring_attempt_%d_%s.xlsx", attempt.ID, time.Now().Format("20060102"))
	s.logger.Info("Proctoring report exported",
		"attempt_id", attempt.ID,
		"requester_id", requesterID)
	return data, filename, nil
}

func buildProctoringWorkbook(attempt *models.Attempt, test *models.Test) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Proctoring"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	state := attempt.Proctoring.Data()

	summary := [][]interface{}{
		{"Test", test.Title},
		{"Attempt ID", attempt.ID},
		{"Candidate", attempt.CandidateID},
		{"Status", string(attempt.Status)},
		{"Tab switches", state.TabSwitches},
		{"Fullscreen exits", state.FullscreenExits},
		{"Copy/paste attempts", state.CopyPasteAttempts},
		{"Total warnings", state.TotalWarnings()},
		{"Suspicious", state.Suspicious},
		{"Auto submitted", attempt.AutoSubmitted},
	}
	for i, row := range summary {
		cell := "A" + strconv.Itoa(i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	headerRow := len(summary) + 2
	header := []interface{}{"#", "Kind", "Occurred At"}
	if err := f.SetSheetRow(sheet, "A"+strconv.Itoa(headerRow), &header); err != nil {
		return nil, err
	}
	for i, entry := range state.Events {
		row := []interface{}{i + 1, string(entry.Kind), entry.OccurredAt.Format(time.RFC3339)}
		if err := f.SetSheetRow(sheet, "A"+strconv.Itoa(headerRow+1+i), &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
