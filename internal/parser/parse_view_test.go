package parser

import (
	"testing"

	"github.com/OCAP2/hud/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCameraSet(t *testing.T) {
	p := newTestParser()

	got, err := p.ParseCameraSet([]string{"[0,0,10]", "[0,0,-1]"})
	require.NoError(t, err)
	assert.Equal(t, CameraSet{
		Position: core.Position3D{Z: 10},
		Forward:  core.Position3D{Z: -1},
	}, got)

	_, err = p.ParseCameraSet([]string{"0,0,10", "down"})
	assert.Error(t, err)
}

func TestParseRendererHidden(t *testing.T) {
	p := newTestParser()

	got, err := p.ParseRendererHidden([]string{"main", "true"})
	require.NoError(t, err)
	assert.Equal(t, RendererHidden{Name: "main", Hidden: true}, got)
}

func TestParseRendererSort(t *testing.T) {
	p := newTestParser()

	got, err := p.ParseRendererSort([]string{"main", "true", "4.0"})
	require.NoError(t, err)
	assert.Equal(t, RendererSort{Name: "main", Enabled: true, Interval: 4}, got)

	_, err = p.ParseRendererSort([]string{"main", "true", "1.5"})
	assert.Error(t, err)
}

func TestParseRendererFade(t *testing.T) {
	p := newTestParser()

	got, err := p.ParseRendererFade([]string{"main", "50", "250.5"})
	require.NoError(t, err)
	assert.Equal(t, RendererFade{Name: "main", Near: 50, Far: 250.5}, got)

	_, err = p.ParseRendererFade([]string{"main", "50", "inf"})
	assert.Error(t, err)
}

func TestParseRendererMargins(t *testing.T) {
	p := newTestParser()

	got, err := p.ParseRendererMargins([]string{"main", "10", "24"})
	require.NoError(t, err)
	assert.Equal(t, RendererMargins{Name: "main", Margin: 10, ArrowMargin: 24}, got)

	_, err = p.ParseRendererMargins([]string{"main", "10"})
	assert.ErrorIs(t, err, ErrArgCount)
}
