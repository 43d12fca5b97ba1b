package adapters

import (
	"context"

	admsvc "admissions_backend/internal/admissions/service"
	"admissions_backend/internal/enquiries/domain"
	enqrepo "admissions_backend/internal/enquiries/repository"

	"github.com/google/uuid"
)

// AdmissionEnquiryReader adapts the enquiries repository to the admissions
// context's snapshot reader.
type AdmissionEnquiryReader struct {
	repo *enqrepo.Repository
}

// NewAdmissionEnquiryReader creates a new admission enquiry reader adapter.
func NewAdmissionEnquiryReader(repo *enqrepo.Repository) *AdmissionEnquiryReader {
	return &AdmissionEnquiryReader{repo: repo}
}

// Snapshot reads the enquiry fields the admission record needs.
func (a *AdmissionEnquiryReader) Snapshot(ctx context.Context, enquiryID uuid.UUID) (admsvc.EnquirySnapshot, error) {
	enquiry, err := a.repo.GetByID(ctx, enquiryID)
	if err != nil {
		return admsvc.EnquirySnapshot{}, err
	}

	return admsvc.EnquirySnapshot{
		EnquiryID:       enquiry.ID,
		SchoolID:        enquiry.School.ID,
		AcademicYear:    enquiry.AcademicYear.Value,
		GradeID:         enquiry.Grade.ID,
		StudentName:     enquiry.Student.FirstName + " " + enquiry.Student.LastName,
		StudentGlobalID: enquiry.Student.GlobalID,
		EnrolmentNumber: enquiry.Student.EnrolmentNumber,
		AdmissionStatus: domain.StageStatus(enquiry.Stages, domain.StageAdmission),
	}, nil
}

// Compile-time check.
var _ admsvc.EnquiryReader = (*AdmissionEnquiryReader)(nil)
