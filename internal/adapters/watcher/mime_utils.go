package watcher

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"github.com/mikey/phish-alert/internal/core"
)

var headerDecoder = new(mime.WordDecoder)

// decodeHeader decodes RFC 2047 encoded words, returning the input unchanged
// when it cannot be decoded
func decodeHeader(value string) string {
	decoded, err := headerDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// ParseMessage reads an RFC 5322 message into an email candidate using its
// From and Subject headers and its text content
func ParseMessage(r io.Reader) (*core.EmailCandidate, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email message: %w", err)
	}

	body, err := extractTextFromMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text content: %w", err)
	}

	return &core.EmailCandidate{
		Sender:  msg.Header.Get("From"),
		Subject: decodeHeader(msg.Header.Get("Subject")),
		Body:    body,
	}, nil
}

// extractTextFromMessage returns the text/plain content of a message. For
// multipart messages the text/plain parts are concatenated, nested multiparts
// included; other parts are skipped.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	return extractText(msg.Header.Get("Content-Type"), msg.Body)
}

func extractText(contentType string, body io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		b, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	mr := multipart.NewReader(body, params["boundary"])
	var textContent bytes.Buffer
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// keep what was read before the malformed part
			break
		}

		partType := strings.ToLower(part.Header.Get("Content-Type"))
		switch {
		case partType == "" || strings.HasPrefix(partType, "text/plain"):
			b, err := io.ReadAll(part)
			if err != nil {
				continue
			}
			textContent.Write(b)
			textContent.WriteString("\n")
		case strings.HasPrefix(partType, "multipart/"):
			nested, err := extractText(part.Header.Get("Content-Type"), part)
			if err != nil {
				continue
			}
			textContent.WriteString(nested)
		}
	}

	return textContent.String(), nil
}
