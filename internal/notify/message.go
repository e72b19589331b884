// Package notify tells people about failed builds by e-mail.
package notify

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/wneessen/go-mail"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/autobuild/internal/config"
	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
)

// FailureSubject is the subject line of every failure mail.
const FailureSubject = "Automated build failed"

const separator = "---------------------------------------------------"

// Message is a plain-text mail.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// mailMsg converts m into a dated US-ASCII text/plain mail.
func (m Message) mailMsg() (*mail.Msg, error) {
	msg := mail.NewMsg(mail.WithCharset(mail.CharsetASCII))
	if err := msg.From(m.From); err != nil {
		return nil, ferrors.ValidationError("invalid sender address").
			WithCause(err).
			WithContext("from", m.From).
			Build()
	}
	if err := msg.To(m.To...); err != nil {
		return nil, ferrors.ValidationError("invalid recipient address").
			WithCause(err).
			WithContext("to", strings.Join(m.To, ", ")).
			Build()
	}
	msg.Subject(m.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	return msg, nil
}

// Render returns the message as it is written to the SMTP DATA stream.
func (m Message) Render() ([]byte, error) {
	msg, err := m.mailMsg()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, ferrors.InternalError("failed to render mail").WithCause(err).Build()
	}
	return buf.Bytes(), nil
}

// FailureMessage builds the mail sent when a run fails: an explanation, the
// error, then the run log between separator lines. Characters outside ASCII
// are folded to their base letter where possible and dropped otherwise.
func FailureMessage(cfg config.SMTPConfig, logPath string, cause error) (Message, error) {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return Message{}, ferrors.FileSystemError("failed to read log file for failure mail").
			WithCause(err).
			WithContext("path", logPath).
			Build()
	}

	var body strings.Builder
	body.WriteString("This message was generated by autobuild because the automated build failed. ")
	body.WriteString("Log file content is printed below.\n\n")
	if cause != nil {
		fmt.Fprintf(&body, "Error: %v\n", cause)
	}
	fmt.Fprintf(&body, "Log file: %s\n\n", logPath)
	body.WriteString(separator + "\n\n")
	body.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		body.WriteString("\n")
	}
	body.WriteString(separator + "\n")

	return Message{
		From:    cfg.Sender,
		To:      []string{cfg.Receiver},
		Subject: FailureSubject,
		Body:    ToASCII(body.String()),
	}, nil
}

// ToASCII strips diacritics and removes any remaining non-ASCII rune.
func ToASCII(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.Map(func(r rune) rune {
			if r > unicode.MaxASCII {
				return -1
			}
			return r
		}, s)
	}
	return out
}
