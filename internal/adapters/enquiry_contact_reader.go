package adapters

import (
	"context"

	enqrepo "admissions_backend/internal/enquiries/repository"
	"admissions_backend/internal/notification"

	"github.com/google/uuid"
)

// EnquiryContactReader adapts the enquiries repository to the notification
// module's contact lookup.
type EnquiryContactReader struct {
	repo *enqrepo.Repository
}

// NewEnquiryContactReader creates a new enquiry contact reader adapter.
func NewEnquiryContactReader(repo *enqrepo.Repository) *EnquiryContactReader {
	return &EnquiryContactReader{repo: repo}
}

// Contact returns the first parent on record, father/mother/guardian order.
func (a *EnquiryContactReader) Contact(ctx context.Context, enquiryID uuid.UUID) (notification.Contact, error) {
	enquiry, err := a.repo.GetByID(ctx, enquiryID)
	if err != nil {
		return notification.Contact{}, err
	}

	contact := notification.Contact{EnquiryNumber: enquiry.EnquiryNumber}
	for _, parent := range []*enqrepo.Parent{enquiry.Parents.Father, enquiry.Parents.Mother, enquiry.Parents.Guardian} {
		if parent != nil {
			contact.ParentName = parent.Name
			contact.ParentEmail = parent.Email
			contact.ParentPhone = parent.Phone
			break
		}
	}
	return contact, nil
}

// Compile-time check.
var _ notification.ContactReader = (*EnquiryContactReader)(nil)
