package cli

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func withoutColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestPrintTable(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	PrintTable(&buf, []string{"NAME", "ARCH"}, [][]string{
		{"rhels7.9-x86_64-install-compute", "x86_64"},
		{"sles15", "ppc64le"},
	})

	want := "" +
		"  NAME                             ARCH   \n" +
		"  -------------------------------  -------\n" +
		"  rhels7.9-x86_64-install-compute  x86_64 \n" +
		"  sles15                           ppc64le\n"
	assert.Equal(t, want, buf.String())
}

func TestPrintTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, []string{"NAME"}, nil)
	assert.Empty(t, buf.String())
}

func TestPrintHelpers(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	PrintSection(&buf, "Plan")
	PrintLabelValue(&buf, "osdistro", "rhels7.9")
	PrintNumberedList(&buf, []string{"bash", "vim"}, 1)
	PrintSuccess(&buf, "done")

	assert.Equal(t, "\n▸ Plan\n\n  osdistro: rhels7.9\n  1. bash\n  2. vim\n✓ done\n", buf.String())
}

func TestPrintCount(t *testing.T) {
	assert.Equal(t, "1 package", PrintCount(1, "package", "packages"))
	assert.Equal(t, "0 packages", PrintCount(0, "package", "packages"))
	assert.Equal(t, "3 packages", PrintCount(3, "package", "packages"))
}
