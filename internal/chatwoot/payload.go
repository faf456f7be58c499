package chatwoot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/unclebandit/message-scheduler/internal/attachment"
)

const (
	MessageTypeOutgoing = "outgoing"
	AttachmentField     = "attachments[]"
)

// Payload is an outbound message body. It is either a PlainPayload or an
// AttachmentPayload; NewPayload picks one.
type Payload interface {
	// Encode returns the body bytes and the Content-Type that matches them.
	Encode() (body []byte, contentType string, err error)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type PlainPayload struct {
	Content string
}

type AttachmentPayload struct {
	Content string
	File    *attachment.File
}

type jsonMessage struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	Private     bool   `json:"private"`
}

// NewPayload chooses the encoding once: multipart when a file is present,
// JSON otherwise.
func NewPayload(content string, file *attachment.File) Payload {
	if file != nil {
		return AttachmentPayload{Content: content, File: file}
	}
	return PlainPayload{Content: content}
}

func (p PlainPayload) Encode() ([]byte, string, error) {
	body, err := json.Marshal(jsonMessage{Content: p.Content, MessageType: MessageTypeOutgoing, Private: false})
	if err != nil {
		return nil, "", errors.Wrap(err, "encode message")
	}
	return body, "application/json", nil
}

func (p AttachmentPayload) Encode() ([]byte, string, error) {
	if p.File == nil {
		return nil, "", errors.New("attachment payload without file")
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"content", p.Content},
		{"message_type", MessageTypeOutgoing},
		{"private", strconv.FormatBool(false)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", errors.Wrapf(err, "write field %s", f[0])
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(AttachmentField), quoteEscaper.Replace(p.File.Name)))
	h.Set("Content-Type", p.File.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", errors.Wrap(err, "create attachment part")
	}
	if _, err := part.Write(p.File.Data); err != nil {
		return nil, "", errors.Wrap(err, "write attachment part")
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "close multipart writer")
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
