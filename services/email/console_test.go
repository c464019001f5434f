package emailsvc

import (
	"bytes"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/usajili/core"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	ResetSentMessages()
	svc := NewConsoleServiceMock(core.Conf)

	welcome := &core.EmailMessage{
		To:           []mail.Address{{Name: "Jane Doe", Address: "jane@test.cd"}},
		Subject:      "Welcome!",
		TemplateName: "welcome",
		TemplateData: map[string]string{"Name": "Jane Doe", "Course": "Computer Science", "Email": "jane@test.cd"},
	}
	plain := &core.EmailMessage{
		To:      []mail.Address{{Address: "john@test.cd"}},
		Subject: "Hello",
		BodyStr: "plain body",
	}
	noRecipient := &core.EmailMessage{Subject: "Lost", BodyStr: "nobody"}

	withAttachment := &core.EmailMessage{
		To:      []mail.Address{{Address: "jane@test.cd"}},
		Subject: "Report",
	}
	require.NoError(t, withAttachment.Attach(bytes.NewBufferString("name,course\n"), "report.csv", "text/csv"))

	svc.SendMessages(welcome, plain, noRecipient, withAttachment)

	sent := SentMessages()
	require.Len(t, sent, 3)
	assert.Contains(t, sent[0].TextContent, "Hi Jane Doe,")
	assert.Contains(t, sent[0].TextContent, "Computer Science")
	assert.Contains(t, sent[0].HTMLContent, "<strong>Computer Science</strong>")
	assert.Equal(t, "plain body", sent[1].TextContent)
	assert.Empty(t, sent[1].HTMLContent)
	require.Len(t, sent[2].Attachments, 1)
	assert.Equal(t, "text/csv", sent[2].Attachments[0].ContentType)
}

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(core.Conf, nil).(*sendgridService)
	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "Jane Doe", Address: "jane@test.cd"}},
		Cc:          []mail.Address{{Address: "cc@test.cd"}},
		Subject:     "Hello",
		TextContent: "text",
	}

	m := svc.prepare(msg)
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "["+core.Conf.AppName+"] Hello", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "jane@test.cd", p.To[0].Address)
	require.Len(t, p.CC, 1)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}
