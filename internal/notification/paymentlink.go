package notification

import (
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

// qrSize is the pixel width of the generated QR image.
const qrSize = 256

// BuildPaymentLink assembles the parent-facing payment URL for a fee.
func BuildPaymentLink(baseURL, enquiryNumber, feeType string) string {
	if baseURL == "" {
		return ""
	}
	params := url.Values{}
	params.Set("ref", enquiryNumber)
	params.Set("feeType", feeType)
	return baseURL + "/pay?" + params.Encode()
}

// PaymentQR renders the payment link as a PNG QR code. A render failure is
// not fatal to the email; callers send the link without the image.
func PaymentQR(link string) ([]byte, error) {
	if link == "" {
		return nil, nil
	}
	return qrcode.Encode(link, qrcode.Medium, qrSize)
}
