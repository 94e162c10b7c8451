package messenger

import (
	"fmt"
	"strings"
)

// TagHeader carries the tag a mail message is recorded under.
const TagHeader = "X-Tag"

// Email is an outgoing mail message queued for asynchronous sending.
type Email struct {
	From    string
	To      []string
	Subject string
	Headers map[string]string
	Body    string
}

func (*Email) MessageType() string { return "mail.Email" }

// AllHeaders returns the custom headers together with the address and
// subject headers.
func (e *Email) AllHeaders() map[string]string {
	out := make(map[string]string, len(e.Headers)+3)
	for k, v := range e.Headers {
		out[k] = v
	}
	if e.From != "" {
		out["From"] = e.From
	}
	if len(e.To) > 0 {
		out["To"] = strings.Join(e.To, ", ")
	}
	if e.Subject != "" {
		out["Subject"] = e.Subject
	}
	return out
}

// StampEmail adds a TagStamp from the X-Tag header and a DescriptionStamp
// built from the subject. Envelopes that do not carry an *Email are returned
// unchanged.
func StampEmail(env *Envelope) *Envelope {
	email, ok := env.Message().(*Email)
	if !ok || email == nil {
		return env
	}

	if tag := strings.TrimSpace(email.Headers[TagHeader]); tag != "" {
		env = env.With(NewTagStamp(tag))
	}

	if email.Subject == "" {
		return env
	}
	description := email.Subject
	if len(email.To) == 1 {
		description = fmt.Sprintf("%q to %q", email.Subject, email.To[0])
	}
	return env.With(DescriptionStamp{Value: description})
}
