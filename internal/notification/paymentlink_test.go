package notification

import (
	"net/url"
	"testing"
)

func TestBuildPaymentLink(t *testing.T) {
	link := BuildPaymentLink("https://pay.example.com", "ENQ-000042", "registration")
	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if parsed.Path != "/pay" {
		t.Errorf("path = %q", parsed.Path)
	}
	if got := parsed.Query().Get("ref"); got != "ENQ-000042" {
		t.Errorf("ref = %q", got)
	}
	if got := parsed.Query().Get("feeType"); got != "registration" {
		t.Errorf("feeType = %q", got)
	}

	if link := BuildPaymentLink("", "ENQ-000042", "registration"); link != "" {
		t.Errorf("link without base url = %q, want empty", link)
	}
}

func TestPaymentQR(t *testing.T) {
	png, err := PaymentQR("https://pay.example.com/pay?ref=ENQ-000042")
	if err != nil {
		t.Fatalf("PaymentQR: %v", err)
	}
	if len(png) == 0 {
		t.Error("empty png")
	}

	png, err = PaymentQR("")
	if err != nil || png != nil {
		t.Errorf("empty link: png=%v err=%v, want nil/nil", png, err)
	}
}
