package formfill_exporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportGuard_Transitions(t *testing.T) {
	var g exportGuard
	assert.Equal(t, Phase{}, g.current())

	require.NoError(t, g.begin())
	assert.ErrorIs(t, g.begin(), ErrExportInProgress, "single flight")
	assert.Equal(t, "Preparing export", g.current().Progress())

	assert.Error(t, g.finalizing(), "cannot finalize before downloading")
	assert.Error(t, g.downloading(2, 3), "first page must be 1")
	require.NoError(t, g.downloading(1, 3))
	assert.Equal(t, "Downloading page 1/3", g.current().Progress())
	assert.Error(t, g.downloading(2, 3), "download must finalize first")

	require.NoError(t, g.finalizing())
	assert.Equal(t, "Saving page 1/3", g.current().Progress())
	assert.Error(t, g.downloading(3, 3), "pages cannot be skipped")
	assert.Error(t, g.downloading(1, 3), "pages cannot repeat")
	assert.Error(t, g.downloading(2, 4), "page count is fixed")
	require.NoError(t, g.downloading(2, 3))
	require.NoError(t, g.finalizing())
	require.NoError(t, g.downloading(3, 3))
	require.NoError(t, g.finalizing())
	assert.Error(t, g.downloading(4, 3), "no page beyond the last")

	g.end()
	assert.Equal(t, Phase{}, g.current())
	assert.Equal(t, "", g.current().Progress())
	require.NoError(t, g.begin())
}

func TestPhaseProgress_SinglePage(t *testing.T) {
	assert.Equal(t, "Downloading", Phase{Stage: StageDownloading, Page: 1, Pages: 1}.Progress())
	assert.Equal(t, "Saving", Phase{Stage: StageFinalizing, Page: 1, Pages: 1}.Progress())
	assert.Equal(t, "finalizing", StageFinalizing.String())
}
