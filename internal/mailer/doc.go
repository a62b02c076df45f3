// Package mailer renders campaign email and delivers it over SMTP.
//
// Rendering is pure: a template variant, the campaign's HTML content, and a
// recipient-specific unsubscribe URL produce a complete HTML document.
// Campaign content is admin-authored trusted HTML and is injected verbatim.
//
// Delivery is one attempt per call with no retry; every transport error is
// logged and collapsed to a boolean so the dispatcher only ever sees
// success/failure per recipient.
package mailer
