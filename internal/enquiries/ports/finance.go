// Package ports defines the interfaces that the enquiries domain requires
// from external systems. These interfaces form the Anti-Corruption Layer:
// the domain only knows about the data it needs, shaped the way it wants.
package ports

import "context"

// FeeRecord is the subset of a finance-system fee the orchestrator cares
// about when deciding whether to attach a new fee.
type FeeRecord struct {
	FeeID       int64
	FeeType     string
	AmountPaise int64
	PaidPaise   int64
}

// FullyPaid reports whether nothing remains outstanding on the fee.
func (f FeeRecord) FullyPaid() bool {
	return f.AmountPaise > 0 && f.PaidPaise >= f.AmountPaise
}

// CreateFeeParams carries the fields needed to raise a fee against a
// student for an academic year.
type CreateFeeParams struct {
	StudentGlobalID int64
	SchoolID        int64
	AcademicYearID  int64
	GradeID         int64
	FeeType         string
	EnquiryNumber   string
}

// FinanceGateway is the outbound contract to the external finance system.
// The implementation lives in internal/finance.
type FinanceGateway interface {
	// ListFees returns the student's existing fees for the academic year.
	// An empty slice means no fees exist upstream.
	ListFees(ctx context.Context, studentGlobalID, academicYearID int64) ([]FeeRecord, error)
	// CreateFee raises a new fee record upstream.
	CreateFee(ctx context.Context, params CreateFeeParams) error
	// ListPendingFees returns the fee ids with an outstanding balance,
	// used by bulk de-enrollment.
	ListPendingFees(ctx context.Context, studentGlobalID, academicYearID int64) ([]int64, error)
	// DeEnrollFee removes one fee record with a de-enrollment reason.
	DeEnrollFee(ctx context.Context, feeID int64, reasonID int) error
}
