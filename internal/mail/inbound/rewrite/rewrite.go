// Package rewrite post-processes extracted HTML bodies, pointing
// cid: image references at the stored embedded attachments.
package rewrite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/inboxdesk/inboxdesk/internal/models"
)

// Matches src="cid:..." and src='cid:...' with a case-insensitive
// scheme. Nothing else in the document may be touched.
var cidPattern = regexp.MustCompile(`(?i)src=["']cid:([^"']+)["']`)

// ReplaceCIDReferences rewrites every cid: src reference that resolves
// to an embedded attachment into a link to that attachment's stored
// location. Unresolvable references and all other markup pass through
// byte for byte. The input is returned unchanged when there is nothing
// to map.
func ReplaceCIDReferences(html string, attachments []*models.Attachment) string {
	if html == "" || len(attachments) == 0 {
		return html
	}

	cidToID := make(map[string]int64)
	for _, att := range attachments {
		if att.IsEmbedded && att.ContentID != "" {
			cid := strings.Trim(att.ContentID, "<>")
			cidToID[cid] = att.ID
		}
	}
	if len(cidToID) == 0 {
		return html
	}

	return cidPattern.ReplaceAllStringFunc(html, func(match string) string {
		sub := cidPattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		id, ok := cidToID[sub[1]]
		if !ok {
			return match
		}
		return fmt.Sprintf(`src="/attachments/%d"`, id)
	})
}
