package attachment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"spaces kept", "quarterly report.pdf", "quarterly report.pdf"},
		{"path separators dropped", "../../etc/passwd", "etcpasswd"},
		{"windows path dropped", `C:\temp\evil.exe`, "Ctempevil.exe"},
		{"leading dots stripped", "...hidden", "hidden"},
		{"unicode dropped", "résumé.pdf", "rsum.pdf"},
		{"only junk", "<>|?*", ""},
		{"underscore and hyphen kept", "my_file-v2.tar.gz", "my_file-v2.tar.gz"},
		{"surrounding spaces trimmed", "  notes.txt  ", "notes.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}
