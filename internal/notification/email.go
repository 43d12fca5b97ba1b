package notification

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Attachment is a file attached to an outgoing email.
type Attachment struct {
	FileName string
	Content  []byte
}

// EmailSender delivers the admission notification emails.
type EmailSender interface {
	SendEnquiryWelcome(ctx context.Context, toEmail, parentName, studentName, enquiryNumber string) error
	SendFeePaymentLink(ctx context.Context, toEmail, parentName, feeType, paymentLink string, qrPNG []byte) error
	SendPaymentReceipt(ctx context.Context, toEmail, parentName, feeType, amount, transactionID string) error
}

// SMTPSender implements EmailSender over a direct SMTP connection via
// go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string, attachments ...Attachment) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	for _, att := range attachments {
		msg.AttachReader(att.FileName, bytes.NewReader(att.Content))
	}

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// SendEnquiryWelcome confirms enquiry capture to the parent.
func (s *SMTPSender) SendEnquiryWelcome(ctx context.Context, toEmail, parentName, studentName, enquiryNumber string) error {
	content := renderEmail(fmt.Sprintf(
		`<p>Dear %s,</p>
		<p>Thank you for your admission enquiry for %s. Your enquiry number is
		<strong>%s</strong>. Please quote it in all future correspondence.</p>
		<p>Our admission counsellor will contact you shortly.</p>`,
		htmlEscape(parentName), htmlEscape(studentName), htmlEscape(enquiryNumber)))
	return s.send(ctx, toEmail, fmt.Sprintf("Admission enquiry %s received", enquiryNumber), content)
}

// SendFeePaymentLink mails the parent a payment link with a QR code image
// attached.
func (s *SMTPSender) SendFeePaymentLink(ctx context.Context, toEmail, parentName, feeType, paymentLink string, qrPNG []byte) error {
	content := renderEmail(fmt.Sprintf(
		`<p>Dear %s,</p>
		<p>The %s fee for your admission is now due. You can pay online:</p>
		<p><a href="%s">%s</a></p>
		<p>Or scan the attached QR code with your payment app.</p>`,
		htmlEscape(parentName), htmlEscape(feeType), paymentLink, paymentLink))

	var attachments []Attachment
	if len(qrPNG) > 0 {
		attachments = append(attachments, Attachment{FileName: "payment-qr.png", Content: qrPNG})
	}
	return s.send(ctx, toEmail, fmt.Sprintf("%s fee payment", feeType), content, attachments...)
}

// SendPaymentReceipt confirms a recorded payment to the parent.
func (s *SMTPSender) SendPaymentReceipt(ctx context.Context, toEmail, parentName, feeType, amount, transactionID string) error {
	content := renderEmail(fmt.Sprintf(
		`<p>Dear %s,</p>
		<p>We have received your %s fee payment of %s.</p>
		<p>Transaction reference: <strong>%s</strong></p>`,
		htmlEscape(parentName), htmlEscape(feeType), htmlEscape(amount), htmlEscape(transactionID)))
	return s.send(ctx, toEmail, "Payment received", content)
}

// Compile-time check.
var _ EmailSender = (*SMTPSender)(nil)
