package emails

import (
	"fmt"
	"time"
)

const (
	themePrimary = "#2F7D32"
	themeText    = "#1F2937"
	themeBody    = "#F4F7F2"
)

// Layout wraps content in the shared FarmDirect email frame.
func Layout(content string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>FarmDirect</title>
  <style>
    body { margin: 0; padding: 0; background-color: %s; font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; color: %s; }
    h1 { color: %s; font-size: 22px; margin: 0 0 16px 0; }
    p { font-size: 15px; line-height: 1.6; margin: 0 0 16px 0; }
    .code { font-size: 28px; font-weight: 700; letter-spacing: 6px; }
  </style>
</head>
<body>
  <table role="presentation" width="100%%" cellspacing="0" cellpadding="0">
    <tr><td align="center" style="padding: 32px 0;">
      <table role="presentation" width="560" cellspacing="0" cellpadding="0" style="background: #FFFFFF; border-radius: 8px;">
        <tr><td style="padding: 32px 40px;">%s</td></tr>
        <tr><td style="padding: 0 40px 24px 40px; font-size: 12px; color: #6B7280;">&copy; %d FarmDirect</td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`, themeBody, themeText, themePrimary, content, time.Now().Year())
}
