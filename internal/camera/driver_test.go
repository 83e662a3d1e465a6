package camera

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBackend(t *testing.T, b Backend) {
	t.Helper()
	prev := DriverBackend
	DriverBackend = b
	t.Cleanup(func() { DriverBackend = prev })
}

func TestOpen_Success(t *testing.T) {
	withBackend(t, newFakeBackend("SN001"))

	d, err := Open("SN001", singleColorStream(), nil)
	require.NoError(t, err)
	defer d.Cleanup()

	assert.Equal(t, "SN001", d.Serial())
}

func TestOpen_UnknownSerial(t *testing.T) {
	withBackend(t, newFakeBackend("SN001"))

	_, err := Open("SN999", singleColorStream(), nil)
	assert.ErrorIs(t, err, ErrCameraUnavailable)
}

func TestOpen_DoubleOpenRejected(t *testing.T) {
	withBackend(t, newFakeBackend("SN001"))

	d1, err := Open("SN001", singleColorStream(), nil)
	require.NoError(t, err)
	defer d1.Cleanup()

	_, err = Open("SN001", singleColorStream(), nil)
	assert.ErrorIs(t, err, ErrAlreadyInstantiated)
}

func TestOpen_ReopenAfterCleanup(t *testing.T) {
	withBackend(t, newFakeBackend("SN001"))

	d1, err := Open("SN001", singleColorStream(), nil)
	require.NoError(t, err)
	d1.Cleanup()

	d2, err := Open("SN001", singleColorStream(), nil)
	require.NoError(t, err)
	defer d2.Cleanup()
}

func TestOpen_EmptyStreamsRejected(t *testing.T) {
	withBackend(t, newFakeBackend("SN001"))

	_, err := Open("SN001", nil, nil)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestOpen_DuplicateKindRejected(t *testing.T) {
	withBackend(t, newFakeBackend("SN001"))

	streams := append(singleColorStream(), singleColorStream()...)
	_, err := Open("SN001", streams, nil)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestOpen_InvalidAlignmentTargetRejected(t *testing.T) {
	withBackend(t, newFakeBackend("SN001"))

	depth := KindDepth
	_, err := Open("SN001", singleColorStream(), &depth)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestOpen_RunsWarmup(t *testing.T) {
	b := newFakeBackend("SN001")
	withBackend(t, b)

	d, err := Open("SN001", singleColorStream(), nil)
	require.NoError(t, err)
	defer d.Cleanup()

	dev := b.devices["SN001"].(*fakeDevice)
	assert.True(t, dev.started)
	assert.Equal(t, warmupFrames, dev.waitCnt)
}

func TestCapture_AppliesAlignment(t *testing.T) {
	b := newFakeBackend("SN001")
	withBackend(t, b)

	color := KindColor
	d, err := Open("SN001", singleColorStream(), &color)
	require.NoError(t, err)
	defer d.Cleanup()

	frame, err := d.Capture(context.Background())
	require.NoError(t, err)
	_, ok := frame.Get(KindColor)
	assert.True(t, ok)

	dev := b.devices["SN001"].(*fakeDevice)
	assert.GreaterOrEqual(t, dev.alignCnt, 1)
}

func TestCleanup_Idempotent(t *testing.T) {
	withBackend(t, newFakeBackend("SN001"))

	d, err := Open("SN001", singleColorStream(), nil)
	require.NoError(t, err)

	d.Cleanup()
	assert.NotPanics(t, func() { d.Cleanup() })
}
