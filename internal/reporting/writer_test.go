package reporting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFiles(t *testing.T) {
	run, curve, trades, rejections := fixture()
	r := Build(run, curve, trades, rejections, fixedNow)
	dir := filepath.Join(t.TempDir(), "out")

	paths, err := WriteFiles(dir, r, curve, trades)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "report_run-a.md"), paths[0])
	assert.Equal(t, filepath.Join(dir, "equity_run-a.csv"), paths[1])
	assert.Equal(t, filepath.Join(dir, "trades_run-a.csv"), paths[2])

	md, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, RenderMarkdown(r), string(md))

	eq, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, RenderEquityCSV(curve), string(eq))
}
