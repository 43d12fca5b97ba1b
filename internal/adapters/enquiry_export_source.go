package adapters

import (
	"context"

	"admissions_backend/internal/enquiries/domain"
	enqrepo "admissions_backend/internal/enquiries/repository"
	"admissions_backend/internal/exports"
)

// exportPageSize bounds each repository page while collecting report rows.
const exportPageSize = 200

// EnquiryExportSource adapts the enquiries repository to the exports
// context's row source.
type EnquiryExportSource struct {
	repo *enqrepo.Repository
}

// NewEnquiryExportSource creates a new enquiry export source adapter.
func NewEnquiryExportSource(repo *enqrepo.Repository) *EnquiryExportSource {
	return &EnquiryExportSource{repo: repo}
}

// ExportRows pages through the matching enquiries and flattens them.
func (a *EnquiryExportSource) ExportRows(ctx context.Context, params exports.SourceParams) ([]exports.SourceRow, error) {
	var rows []exports.SourceRow
	offset := 0
	for {
		page, _, err := a.repo.List(ctx, enqrepo.ListParams{
			SchoolID:       params.SchoolID,
			AcademicYearID: params.AcademicYearID,
			Status:         params.Status,
			Limit:          exportPageSize,
			Offset:         offset,
		})
		if err != nil {
			return nil, err
		}
		for _, enquiry := range page {
			rows = append(rows, flatten(enquiry))
		}
		if len(page) < exportPageSize {
			return rows, nil
		}
		offset += exportPageSize
	}
}

func flatten(e enqrepo.Enquiry) exports.SourceRow {
	row := exports.SourceRow{
		EnquiryNumber: e.EnquiryNumber,
		EnquiryType:   e.EnquiryType,
		Status:        e.Status,
		School:        e.School.Value,
		AcademicYear:  e.AcademicYear.Value,
		Grade:         e.Grade.Value,
		StudentName:   e.Student.FirstName + " " + e.Student.LastName,
		StudentDOB:    e.Student.DOB.Format("2006-01-02"),
		CurrentStage:  domain.CurrentStage(e.Stages),
		CreatedAt:     e.CreatedAt,
	}

	// First parent on record, father/mother/guardian order.
	for _, parent := range []*enqrepo.Parent{e.Parents.Father, e.Parents.Mother, e.Parents.Guardian} {
		if parent != nil {
			row.ParentName = parent.Name
			row.ParentPhone = parent.Phone
			row.ParentEmail = parent.Email
			break
		}
	}
	return row
}

// Compile-time check.
var _ exports.Source = (*EnquiryExportSource)(nil)
