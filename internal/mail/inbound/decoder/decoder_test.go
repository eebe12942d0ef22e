package decoder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// crlf normalizes test fixtures to wire line endings.
func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestDecodeSimplePlainText(t *testing.T) {
	raw := crlf(`Message-ID: <abc123@mail.example.com>
From: "Alice Example" <alice@example.com>
To: support@example.com
Cc: bob@example.com, carol@example.com
Date: Mon, 02 Jan 2006 15:04:05 -0700
Subject: =?UTF-8?B?SGVsbG8=?=
Content-Type: text/plain; charset=utf-8

My printer is on fire.
`)

	msg, err := New().Decode(raw)
	require.NoError(t, err)

	require.Equal(t, "abc123@mail.example.com", msg.MessageID)
	require.Equal(t, "Hello", msg.Subject)
	require.Equal(t, `"Alice Example" <alice@example.com>`, msg.From)
	require.Equal(t, "support@example.com", msg.To)
	require.Equal(t, []string{"bob@example.com", "carol@example.com"}, msg.CC)
	require.Equal(t, "Mon, 02 Jan 2006 15:04:05 -0700", msg.Date)
	require.Equal(t, "My printer is on fire.", msg.PlainText)
	require.Empty(t, msg.HTMLText)
	require.Empty(t, msg.Parts)
	require.Equal(t, "support@example.com", msg.Headers["To"])
}

func TestDecodeMultipartWithAttachment(t *testing.T) {
	raw := crlf(`Message-ID: <multi@example.com>
From: alice@example.com
To: support@example.com
Subject: invoice
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: text/plain; charset=utf-8

See attached.
--outer
Content-Type: text/html; charset=utf-8

<p>See attached.</p>
--outer
Content-Type: application/pdf; name="invoice.pdf"
Content-Disposition: attachment; filename="invoice.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQ=
--outer--
`)

	msg, err := New().Decode(raw)
	require.NoError(t, err)

	require.Equal(t, "See attached.", msg.PlainText)
	require.Equal(t, "<p>See attached.</p>", msg.HTMLText)
	require.Len(t, msg.Parts, 1)

	part := msg.Parts[0]
	require.Equal(t, "invoice.pdf", part.Filename)
	require.Equal(t, "application/pdf", part.ContentType)
	require.Equal(t, "attachment", part.Disposition)
	require.False(t, part.Embedded)
	require.Equal(t, []byte("%PDF-1.4"), part.Data)
}

func TestDecodeEmbeddedImage(t *testing.T) {
	raw := crlf(`Message-ID: <related@example.com>
From: alice@example.com
Subject: logo
Content-Type: multipart/related; boundary="rel"

--rel
Content-Type: text/html; charset=utf-8

<img src="cid:img1@example.com">
--rel
Content-Type: image/png
Content-ID: <img1@example.com>
Content-Transfer-Encoding: base64

UE5HREFUQQ==
--rel--
`)

	msg, err := New().Decode(raw)
	require.NoError(t, err)

	require.Equal(t, `<img src="cid:img1@example.com">`, msg.HTMLText)
	require.Len(t, msg.Parts, 1)

	part := msg.Parts[0]
	require.True(t, part.Embedded)
	require.Equal(t, "img1@example.com", part.ContentID)
	require.Empty(t, part.Filename)
	require.Equal(t, []byte("PNGDATA"), part.Data)
}

func TestDecodeNestedAlternativeInsideMixed(t *testing.T) {
	raw := crlf(`Message-ID: <nested@example.com>
Subject: nested
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

plain body
--inner
Content-Type: text/html; charset=utf-8

<b>html body</b>
--inner--
--outer--
`)

	msg, err := New().Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "plain body", msg.PlainText)
	require.Equal(t, "<b>html body</b>", msg.HTMLText)
}

func TestDecodeMissingMessageID(t *testing.T) {
	raw := crlf(`From: alice@example.com
Subject: no id
Content-Type: text/plain; charset=utf-8

hi
`)

	msg, err := New().Decode(raw)
	require.NoError(t, err)
	require.Empty(t, msg.MessageID)
}

func TestDecodeEncodedAttachmentFilename(t *testing.T) {
	raw := crlf(`Message-ID: <enc@example.com>
Subject: encoded name
Content-Type: multipart/mixed; boundary="b"

--b
Content-Type: application/octet-stream
Content-Disposition: attachment; filename="=?UTF-8?B?cmVwb3J0LnBkZg==?="

data
--b--
`)

	msg, err := New().Decode(raw)
	require.NoError(t, err)
	require.Len(t, msg.Parts, 1)
	require.Equal(t, "report.pdf", msg.Parts[0].Filename)
}

func TestNormalizeMessageID(t *testing.T) {
	require.Equal(t, "id@host", NormalizeMessageID("<id@host>"))
	require.Equal(t, "id@host", NormalizeMessageID(`"id@host"`))
	require.Equal(t, "id@host", NormalizeMessageID("  id@host  "))
	require.Empty(t, NormalizeMessageID(""))
}

func TestDecodeWordsPassthrough(t *testing.T) {
	d := New()
	require.Equal(t, "plain subject", d.DecodeWords("plain subject"))
	require.Equal(t, "Hello", d.DecodeWords("=?UTF-8?B?SGVsbG8=?="))
	require.Equal(t, "héllo", d.DecodeWords("=?ISO-8859-1?Q?h=E9llo?="))
}
