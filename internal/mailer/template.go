package mailer

import (
	"fmt"
	"strings"

	"github.com/insurancepro/marketing/internal/domain"
)

// RenderEmail produces the complete HTML document for a campaign email.
// content is injected verbatim into the variant's content slot; unsubscribeURL
// lands in the footer anchor. An unrecognized variant falls back to default.
func RenderEmail(variant domain.Template, content, unsubscribeURL string) string {
	layout, ok := layouts[variant]
	if !ok {
		layout = layouts[domain.TemplateDefault]
	}
	out := strings.ReplaceAll(layout, "{{content}}", content)
	return strings.ReplaceAll(out, "{{unsubscribe_url}}", unsubscribeURL)
}

// UnsubscribeURL builds the public unsubscribe link for a token.
func UnsubscribeURL(baseURL, token string) string {
	return fmt.Sprintf("%s/unsubscribe/%s", strings.TrimRight(baseURL, "/"), token)
}

var layouts = map[domain.Template]string{
	domain.TemplateDefault: `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f4f4; }
        .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
        .header { background: linear-gradient(135deg, #1e3c72 0%, #2a5298 100%); padding: 30px; text-align: center; }
        .header h1 { color: #ffffff; margin: 0; font-size: 24px; }
        .content { padding: 30px; line-height: 1.6; color: #333333; }
        .footer { background-color: #f8f9fa; padding: 20px; text-align: center; font-size: 12px; color: #666666; }
        .footer a { color: #2a5298; }
        .button { display: inline-block; padding: 12px 24px; background: linear-gradient(135deg, #1e3c72 0%, #2a5298 100%); color: #ffffff; text-decoration: none; border-radius: 5px; margin: 10px 0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>InsurancePro</h1>
        </div>
        <div class="content">
            {{content}}
        </div>
        <div class="footer">
            <p>&copy; 2026 InsurancePro. All rights reserved.</p>
            <p>If you no longer wish to receive emails, <a href="{{unsubscribe_url}}">unsubscribe here</a>.</p>
        </div>
    </div>
</body>
</html>`,

	domain.TemplatePromotional: `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Arial', sans-serif; margin: 0; padding: 0; background-color: #f4f4f4; }
        .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 10px; overflow: hidden; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
        .header { background: linear-gradient(135deg, #ff6b6b 0%, #ee5a24 100%); padding: 40px; text-align: center; }
        .header h1 { color: #ffffff; margin: 0; font-size: 28px; }
        .content { padding: 40px; line-height: 1.8; color: #333333; }
        .highlight { background-color: #fff3cd; padding: 15px; border-left: 4px solid #ffc107; margin: 20px 0; }
        .footer { background-color: #343a40; padding: 20px; text-align: center; font-size: 12px; color: #ffffff; }
        .footer a { color: #ffc107; }
        .cta-button { display: inline-block; padding: 15px 30px; background: linear-gradient(135deg, #ff6b6b 0%, #ee5a24 100%); color: #ffffff; text-decoration: none; border-radius: 25px; font-weight: bold; margin: 15px 0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Special Offer!</h1>
        </div>
        <div class="content">
            {{content}}
        </div>
        <div class="footer">
            <p>&copy; 2026 InsurancePro. All rights reserved.</p>
            <p><a href="{{unsubscribe_url}}">Unsubscribe</a> from promotional emails</p>
        </div>
    </div>
</body>
</html>`,

	domain.TemplateNewsletter: `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Georgia', serif; margin: 0; padding: 0; background-color: #f9f9f9; }
        .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
        .header { background-color: #2c3e50; padding: 25px; text-align: center; }
        .header h1 { color: #ecf0f1; margin: 0; font-size: 26px; font-weight: normal; }
        .content { padding: 35px; line-height: 1.7; color: #2c3e50; }
        .article { margin-bottom: 25px; padding-bottom: 25px; border-bottom: 1px solid #ecf0f1; }
        .article:last-child { border-bottom: none; }
        .footer { background-color: #ecf0f1; padding: 20px; text-align: center; font-size: 11px; color: #7f8c8d; }
        .footer a { color: #2c3e50; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>InsurancePro Newsletter</h1>
        </div>
        <div class="content">
            {{content}}
        </div>
        <div class="footer">
            <p>&copy; 2026 InsurancePro. Stay informed, stay protected.</p>
            <p><a href="{{unsubscribe_url}}">Manage subscription preferences</a></p>
        </div>
    </div>
</body>
</html>`,
}
