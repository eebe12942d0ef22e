// Package decoder turns raw RFC 822 payloads into a structure the
// translator can work with: decoded headers, UTF-8 body text, and the
// binary parts that are attachment candidates.
package decoder

import (
	"bytes"
	"errors"
	"io"
	"log"
	"mime"
	"strings"

	gomessage "github.com/emersion/go-message"
	htmlcharset "golang.org/x/net/html/charset"
)

func init() {
	gomessage.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return htmlcharset.NewReaderLabel(charset, input)
	}
}

// Message is the decoded form of one inbound email.
type Message struct {
	MessageID string
	Subject   string
	From      string
	To        string
	CC        []string
	Date      string
	Headers   map[string]string
	PlainText string
	HTMLText  string
	Parts     []Part
}

// Part is one attachment candidate in part-encounter order.
type Part struct {
	Filename    string
	ContentType string
	ContentID   string
	Disposition string
	Embedded    bool
	Data        []byte
}

// Decoder walks MIME trees. Decoding problems on individual parts are
// logged and that part contributes nothing; decoding never fails the
// whole message unless the top-level entity cannot be read at all.
type Decoder struct {
	logger *log.Logger
	words  *mime.WordDecoder
}

// Option customizes a Decoder.
type Option func(*Decoder)

// WithLogger overrides the logger used for per-part diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func New(opts ...Option) *Decoder {
	d := &Decoder{
		logger: log.Default(),
		words:  &mime.WordDecoder{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode parses raw message bytes. Unknown or wrong charsets fall back
// to UTF-8 with invalid-byte substitution instead of erroring.
func (d *Decoder) Decode(raw []byte) (*Message, error) {
	entity, err := gomessage.Read(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return nil, err
	}

	msg := &Message{Headers: map[string]string{}}
	d.readHeaders(entity, msg)
	d.walk(entity, msg)
	msg.PlainText = strings.TrimSpace(msg.PlainText)
	msg.HTMLText = strings.TrimSpace(msg.HTMLText)
	return msg, nil
}

func (d *Decoder) readHeaders(entity *gomessage.Entity, msg *Message) {
	fields := entity.Header.Fields()
	for fields.Next() {
		msg.Headers[fields.Key()] = d.DecodeWords(fields.Value())
	}

	get := func(key string) string {
		return d.DecodeWords(entity.Header.Get(key))
	}
	msg.MessageID = NormalizeMessageID(entity.Header.Get("Message-Id"))
	msg.Subject = get("Subject")
	msg.From = get("From")
	msg.To = get("To")
	msg.Date = strings.TrimSpace(entity.Header.Get("Date"))
	msg.CC = splitAddresses(get("Cc"))
}

func (d *Decoder) walk(entity *gomessage.Entity, msg *Message) {
	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil && !gomessage.IsUnknownCharset(err) {
				d.logger.Printf("decoder: read part failed: %v", err)
				return
			}
			d.walk(part, msg)
		}
	}
	d.leaf(entity, msg)
}

func (d *Decoder) leaf(entity *gomessage.Entity, msg *Message) {
	info := partInfo(entity.Header)
	class := Classify(info)
	if class == ClassSkip {
		return
	}

	data, err := io.ReadAll(entity.Body)
	if err != nil {
		d.logger.Printf("decoder: read %s body failed: %v", info.ContentType, err)
		return
	}

	switch class {
	case ClassBody:
		text := toUTF8(data)
		if strings.EqualFold(info.ContentType, "text/html") {
			msg.HTMLText += text
		} else {
			msg.PlainText += text
		}
	case ClassAttachment, ClassEmbeddedImage:
		msg.Parts = append(msg.Parts, Part{
			Filename:    d.filename(entity.Header),
			ContentType: info.ContentType,
			ContentID:   info.ContentID,
			Disposition: info.Disposition,
			Embedded:    class == ClassEmbeddedImage,
			Data:        data,
		})
	}
}

func (d *Decoder) filename(header gomessage.Header) string {
	if _, params, err := header.ContentDisposition(); err == nil {
		if name := params["filename"]; name != "" {
			return d.DecodeWords(name)
		}
	}
	if _, params, err := header.ContentType(); err == nil {
		if name := params["name"]; name != "" {
			return d.DecodeWords(name)
		}
	}
	return ""
}

// DecodeWords reverses RFC 2047 encoded-word sequences, concatenating
// multiple encoded segments into one logical string. Unencoded input
// passes through unchanged, as does input that fails to decode.
func (d *Decoder) DecodeWords(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	decoded, err := d.words.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// NormalizeMessageID strips angle brackets and quoting from a
// Message-ID header value.
func NormalizeMessageID(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, "<>")
	value = strings.Trim(value, "\"")
	return strings.TrimSpace(value)
}

func splitAddresses(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	var out []string
	for _, addr := range strings.Split(header, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// toUTF8 repairs text whose declared charset was wrong or missing:
// invalid bytes are substituted rather than dropped or erroring.
func toUTF8(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}
