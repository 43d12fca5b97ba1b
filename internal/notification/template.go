package notification

import "html"

// renderEmail wraps the body in the shared shell. Kept deliberately plain;
// school branding is applied by the mail gateway downstream.
func renderEmail(body string) string {
	return `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 16px;">
` + body + `
<p style="color:#888;font-size:12px;margin-top:24px;">This is an automated message from the admissions office. Please do not reply.</p>
</body>
</html>`
}

func htmlEscape(s string) string {
	return html.EscapeString(s)
}
