// Package notification provides event handlers for sending notifications
// (email, SMS) in response to domain events. Domain modules publish events
// and stay unaware of mail providers and message templates.
package notification

import (
	"context"
	"fmt"

	"admissions_backend/internal/events"
	apphttp "admissions_backend/internal/http"
	"admissions_backend/platform/config"
	"admissions_backend/platform/logger"

	"github.com/google/uuid"
)

// Contact is the parent contact slice of an enquiry.
type Contact struct {
	EnquiryNumber string
	ParentName    string
	ParentEmail   string
	ParentPhone   string
}

// ContactReader resolves the primary parent contact for an enquiry.
// Implemented by an adapter over the enquiries context.
type ContactReader interface {
	Contact(ctx context.Context, enquiryID uuid.UUID) (Contact, error)
}

// Module is the notification module. It has no HTTP surface; all work is
// event-driven.
type Module struct {
	email    EmailSender
	sms      SMSSender
	contacts ContactReader
	payURL   string
	log      *logger.Logger
}

// NewModule creates the notification module and subscribes its handlers.
// Email and SMS senders are optional; missing channels are skipped.
func NewModule(cfg *config.Config, eventBus events.Bus, log *logger.Logger, contacts ContactReader) *Module {
	m := &Module{
		contacts: contacts,
		payURL:   cfg.GetPaymentBaseURL(),
		log:      log,
	}
	if cfg.GetEmailEnabled() {
		m.email = NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(), cfg.GetEmailFromName())
	}
	if cfg.IsSMSEnabled() {
		m.sms = NewSMSClient(cfg.GetSMSGatewayURL(), cfg.GetSMSGatewayAPIKey(),
			cfg.GetSMSSenderID(), cfg.HTTPClientTimeout, log)
	}

	eventBus.Subscribe(events.EnquiryCreated{}.EventName(), events.HandlerFunc(m.onEnquiryCreated))
	eventBus.Subscribe(events.FeeRequestQueued{}.EventName(), events.HandlerFunc(m.onFeeRequestQueued))
	eventBus.Subscribe(events.PaymentRecorded{}.EventName(), events.HandlerFunc(m.onPaymentRecorded))
	eventBus.Subscribe(events.FollowUpDue{}.EventName(), events.HandlerFunc(m.onFollowUpDue))

	return m
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// RegisterRoutes is a no-op; the module only consumes events.
func (m *Module) RegisterRoutes(_ *apphttp.RouterContext) {}

func (m *Module) onEnquiryCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.EnquiryCreated)
	if !ok {
		return nil
	}
	if m.email == nil || e.ParentEmail == "" {
		return nil
	}
	return m.email.SendEnquiryWelcome(ctx, e.ParentEmail, e.ParentName, e.StudentName, e.EnquiryNumber)
}

func (m *Module) onFeeRequestQueued(ctx context.Context, event events.Event) error {
	e, ok := event.(events.FeeRequestQueued)
	if !ok {
		return nil
	}
	if m.email == nil && m.sms == nil {
		return nil
	}

	contact, err := m.contacts.Contact(ctx, e.EnquiryID)
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}

	link := BuildPaymentLink(m.payURL, contact.EnquiryNumber, e.Kind)
	if link == "" {
		return nil
	}

	if m.email != nil && contact.ParentEmail != "" {
		qrPNG, err := PaymentQR(link)
		if err != nil {
			m.log.Error("payment qr render failed", "enquiryId", e.EnquiryID, "error", err)
			qrPNG = nil
		}
		if err := m.email.SendFeePaymentLink(ctx, contact.ParentEmail, contact.ParentName, e.Kind, link, qrPNG); err != nil {
			return err
		}
	}
	if m.sms != nil && contact.ParentPhone != "" {
		message := fmt.Sprintf("The %s fee for enquiry %s is due. Pay online: %s", e.Kind, contact.EnquiryNumber, link)
		if err := m.sms.Send(ctx, contact.ParentPhone, message); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) onPaymentRecorded(ctx context.Context, event events.Event) error {
	e, ok := event.(events.PaymentRecorded)
	if !ok {
		return nil
	}
	if m.email == nil {
		return nil
	}

	contact, err := m.contacts.Contact(ctx, e.EnquiryID)
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}
	if contact.ParentEmail == "" {
		return nil
	}

	amount := fmt.Sprintf("INR %d.%02d", e.AmountPaise/100, e.AmountPaise%100)
	return m.email.SendPaymentReceipt(ctx, contact.ParentEmail, contact.ParentName, e.StageKey, amount, e.TransactionID)
}

func (m *Module) onFollowUpDue(ctx context.Context, event events.Event) error {
	e, ok := event.(events.FollowUpDue)
	if !ok {
		return nil
	}
	if m.sms == nil || e.ParentPhone == "" {
		return nil
	}
	message := fmt.Sprintf("Dear %s, our admission counsellor will contact you today regarding %s's application (%s).",
		e.ParentName, e.StudentName, e.AcademicYear)
	return m.sms.Send(ctx, e.ParentPhone, message)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
