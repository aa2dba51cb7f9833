package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/nextvisit/practice-availability/internal/directory"
)

// Routing header names echoed back by well-behaved mail providers. Replies
// missing these fall back to the labeled lines quoted in the body.
const (
	HeaderPracticeID    = "X-Practice-ID"
	HeaderSpecialtyCode = "X-Specialty-Code"
)

// BuildAvailabilityRequest renders the weekly availability request email for
// one practice-specialty pair. The "Practice ID:" and "Specialty Code:"
// lines are load-bearing: the inbound parser extracts them from the quoted
// reply, so their wording must not drift.
func BuildAvailabilityRequest(practice *directory.Practice, specialty directory.Specialty, replyTo string) EmailMessage {
	subject := fmt.Sprintf("Appointment availability check: %s", specialty.Name)

	var text strings.Builder
	fmt.Fprintf(&text, "Hello %s,\n\n", practice.Name)
	fmt.Fprintf(&text, "We help patients find the soonest available appointment near them. ")
	fmt.Fprintf(&text, "Could you reply with the next available %s appointment date at your practice?\n\n", specialty.Name)
	text.WriteString("A date in any common format works, for example 03/15/2025, 2025-03-15, or \"next Tuesday\".\n")
	text.WriteString("If you have no openings, just reply \"NONE\".\n")
	text.WriteString("To stop receiving these emails, reply \"unsubscribe\".\n\n")
	text.WriteString("Please keep the lines below in your reply so we can match it to your listing:\n\n")
	fmt.Fprintf(&text, "Practice ID: %d\n", practice.ID)
	fmt.Fprintf(&text, "Specialty Code: %s\n", specialty.Code)

	name := html.EscapeString(practice.Name)
	specName := html.EscapeString(specialty.Name)
	htmlBody := fmt.Sprintf(`<p>Hello %s,</p>
<p>We help patients find the soonest available appointment near them.
Could you reply with the next available <strong>%s</strong> appointment date at your practice?</p>
<p>A date in any common format works, for example 03/15/2025, 2025-03-15, or &quot;next Tuesday&quot;.<br>
If you have no openings, just reply &quot;NONE&quot;.<br>
To stop receiving these emails, reply &quot;unsubscribe&quot;.</p>
<p>Please keep the lines below in your reply so we can match it to your listing:</p>
<p>Practice ID: %d<br>
Specialty Code: %s</p>`, name, specName, practice.ID, specialty.Code)

	return EmailMessage{
		To:      practice.Email,
		ToName:  practice.Name,
		ReplyTo: replyTo,
		Subject: subject,
		Body:    text.String(),
		HTML:    htmlBody,
		Headers: map[string]string{
			HeaderPracticeID:    fmt.Sprintf("%d", practice.ID),
			HeaderSpecialtyCode: specialty.Code,
		},
	}
}
