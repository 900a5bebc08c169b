package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressBar_SetTotal(t *testing.T) {
	_, errOut := capture(t)

	bar := NewProgressBar(2, "Processing")
	bar.Set(1)
	bar.SetTotal(5)

	assert.Equal(t, int64(5), bar.bar.GetMax64())
	bar.Finish()
	assert.Contains(t, errOut.String(), "5/5")
}

func TestSpinner_UpdateMessage(t *testing.T) {
	capture(t)

	s := NewSpinner("Downloading eng weights...")
	s.UpdateMessage("Downloading eng weights (retrying in 2s)...")

	assert.Equal(t, " Downloading eng weights (retrying in 2s)...", s.spinner.Suffix)
}
