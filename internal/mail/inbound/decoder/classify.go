package decoder

import (
	"strings"

	gomessage "github.com/emersion/go-message"
)

// Class tags what a MIME part contributes to the ticket.
type Class int

const (
	// ClassSkip parts contribute nothing (structural containers,
	// unnameable attachment candidates).
	ClassSkip Class = iota
	// ClassBody parts feed the plain-text or HTML body.
	ClassBody
	// ClassAttachment parts become regular attachments.
	ClassAttachment
	// ClassEmbeddedImage parts become attachments flagged as embedded,
	// referenced from the HTML body via cid:.
	ClassEmbeddedImage
)

// PartInfo is the header-derived metadata Classify decides on.
type PartInfo struct {
	ContentType string
	Disposition string
	ContentID   string
	HasFilename bool
}

// Classify applies the candidate cascade in precedence order:
//
//  1. explicit attachment/inline disposition
//  2. Content-ID plus an image content type
//  3. a filename on a part that is not a text or multipart container
//
// A candidate without either a filename or a content-id cannot be
// stored and is skipped; inline text without a filename is body
// content. Anything that is neither candidate nor text is skipped.
func Classify(info PartInfo) Class {
	contentType := strings.ToLower(strings.TrimSpace(info.ContentType))
	disposition := strings.ToLower(strings.TrimSpace(info.Disposition))

	isImage := strings.HasPrefix(contentType, "image/")
	isStructural := contentType == "text/plain" || contentType == "text/html" ||
		strings.HasPrefix(contentType, "multipart/")

	candidate := disposition == "attachment" || disposition == "inline" ||
		(info.ContentID != "" && isImage) ||
		(info.HasFilename && !isStructural)

	if candidate && (info.HasFilename || info.ContentID != "") {
		if info.ContentID != "" && (isImage || disposition == "inline") {
			return ClassEmbeddedImage
		}
		return ClassAttachment
	}

	if (contentType == "text/plain" || contentType == "text/html") &&
		disposition != "attachment" {
		return ClassBody
	}
	return ClassSkip
}

func partInfo(header gomessage.Header) PartInfo {
	info := PartInfo{ContentType: "text/plain"}
	if mediaType, _, err := header.ContentType(); err == nil && mediaType != "" {
		info.ContentType = strings.ToLower(mediaType)
	}
	var dispParams map[string]string
	if disposition, params, err := header.ContentDisposition(); err == nil {
		info.Disposition = strings.ToLower(disposition)
		dispParams = params
	}
	info.ContentID = NormalizeMessageID(header.Get("Content-Id"))
	if dispParams["filename"] != "" {
		info.HasFilename = true
	} else if _, params, err := header.ContentType(); err == nil && params["name"] != "" {
		info.HasFilename = true
	}
	return info
}
