package watcher

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextFromMessage_Multipart(t *testing.T) {
	raw := "Content-Type: multipart/mixed; boundary=outer\r\n" +
		"\r\n" +
		"--outer\r\n" +
		"Content-Type: multipart/alternative; boundary=inner\r\n" +
		"\r\n" +
		"--inner\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"plain body\r\n" +
		"--inner\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>html body</p>\r\n" +
		"--inner--\r\n" +
		"--outer\r\n" +
		"Content-Type: application/pdf\r\n" +
		"\r\n" +
		"%PDF\r\n" +
		"--outer--\r\n"

	msg, err := mail.ReadMessage(strings.NewReader(raw))
	require.NoError(t, err)

	text, err := extractTextFromMessage(msg)
	require.NoError(t, err)
	assert.Contains(t, text, "plain body")
	assert.NotContains(t, text, "html body")
	assert.NotContains(t, text, "%PDF")
}

func TestExtractTextFromMessage_SinglePart(t *testing.T) {
	msg, err := mail.ReadMessage(strings.NewReader("Subject: x\r\n\r\nhello\r\n"))
	require.NoError(t, err)

	text, err := extractTextFromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "hello\r\n", text)
}

func TestDecodeHeader(t *testing.T) {
	assert.Equal(t, "Verify your account", decodeHeader("=?UTF-8?Q?Verify_your_account?="))
	assert.Equal(t, "plain", decodeHeader("plain"))
}

func TestParseMessage(t *testing.T) {
	raw := "From: Alice <a@b.com>\r\n" +
		"Subject: =?UTF-8?Q?Caf=C3=A9?=\r\n" +
		"\r\n" +
		"Please verify your account.\r\n"

	candidate, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Alice <a@b.com>", candidate.Sender)
	assert.Equal(t, "Café", candidate.Subject)
	assert.Equal(t, "Please verify your account.\r\n", candidate.Body)

	_, err = ParseMessage(strings.NewReader("not a message"))
	assert.Error(t, err)
}
