package notifications

import (
	"fmt"
	"strings"
)

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

// render builds the user-facing text of an event. Inbox rows and ntfy pushes
// share it so both surfaces say the same thing.
func render(event Event, payload Payload) (message, bool) {
	ref := reference(payload)
	switch event {
	case EventApprovalNeeded:
		return message{
			title: "مراسلة تنتظر اعتمادك",
			body:  withReference("لديك مراسلة جديدة تنتظر الاعتماد", ref),
			tags:  []string{"corrflow", "approval"},
		}, true
	case EventCopy:
		return message{
			title: "نسخة من مراسلة",
			body:  withReference("تم إرسال نسخة من مراسلة إليك", ref),
			tags:  []string{"corrflow", "copy"},
		}, true
	case EventApproved:
		return message{
			title:    "تم اعتماد المراسلة",
			body:     withReference("اكتملت سلسلة الاعتماد لمراسلتك", ref),
			tags:     []string{"corrflow", "approved"},
			priority: "high",
		}, true
	case EventRejected:
		body := withReference("تم رفض مراسلتك", ref)
		if actor := payload.text("actor"); actor != "" {
			body = fmt.Sprintf("%s (%s)", body, actor)
		}
		return message{
			title:    "تم رفض المراسلة",
			body:     body,
			tags:     []string{"corrflow", "rejected"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "corrflow - Test",
			body:     "Notification system test",
			tags:     []string{"corrflow", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func reference(payload Payload) string {
	number := payload.text("number")
	subject := payload.text("subject")
	switch {
	case number != "" && subject != "":
		return number + " - " + subject
	case number != "":
		return number
	default:
		return subject
	}
}

func withReference(body, ref string) string {
	if strings.TrimSpace(ref) == "" {
		return body
	}
	return body + ": " + ref
}
