package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"tourismcli/pkg/contracts/domain"
)

func TestPrinter(t *testing.T) {
	color.NoColor = true
	var out, errOut bytes.Buffer
	p := New(&out, &errOut)

	p.Success("wrote %d files", 3)
	p.Warning("not persisted")
	p.Status("release.xlsx", domain.RunStatusPassedClean, "%d records", 20)
	err := p.Error("run failed", "sheet missing", "check the sheet mapping")

	assert.Contains(t, out.String(), "✓ wrote 3 files")
	assert.Contains(t, out.String(), "! not persisted")
	assert.Contains(t, out.String(), "passed_clean")
	assert.Contains(t, out.String(), "release.xlsx  20 records")
	assert.EqualError(t, err, "run failed")
	assert.Contains(t, errOut.String(), "sheet missing")
	assert.Contains(t, errOut.String(), "  - check the sheet mapping")
}
