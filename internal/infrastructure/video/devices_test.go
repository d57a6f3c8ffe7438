package video

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"locallive/internal/core/domain"
	"locallive/pkg/config"
	"locallive/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeIVF writes a minimal VP8 IVF file at 50 fps holding the given frames.
func writeIVF(t *testing.T, frames ...[]byte) string {
	t.Helper()

	header := make([]byte, 32)
	copy(header[0:4], "DKIF")
	binary.LittleEndian.PutUint16(header[4:6], 0)
	binary.LittleEndian.PutUint16(header[6:8], 32)
	copy(header[8:12], "VP80")
	binary.LittleEndian.PutUint16(header[12:14], 640)
	binary.LittleEndian.PutUint16(header[14:16], 480)
	binary.LittleEndian.PutUint32(header[16:20], 50)
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint32(header[24:28], uint32(len(frames)))

	data := header
	for i, frame := range frames {
		fh := make([]byte, 12)
		binary.LittleEndian.PutUint32(fh[0:4], uint32(len(frame)))
		binary.LittleEndian.PutUint64(fh[4:12], uint64(i))
		data = append(data, fh...)
		data = append(data, frame...)
	}

	path := filepath.Join(t.TempDir(), "kitchen.ivf")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestNewDevices(t *testing.T) {
	d, err := NewDevices("test-pattern", "", "")
	require.NoError(t, err)
	assert.IsType(t, &TestPatternDevices{}, d)

	d, err = NewDevices("denied", "", "")
	require.NoError(t, err)
	assert.IsType(t, DeniedDevices{}, d)

	_, err = NewDevices("webcam", "", "")
	assert.Error(t, err)
}

func TestTestPatternDevices(t *testing.T) {
	ctx := context.Background()
	d := NewTestPatternDevices()

	src, err := d.Open(ctx, domain.MediaAudio)
	require.NoError(t, err)
	assert.Equal(t, domain.MediaAudio, src.Track().Kind)
	assert.True(t, src.Track().Enabled)

	frame, dur, err := src.NextSample(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, frame)
	assert.Equal(t, audioFrameInterval, dur)

	require.NoError(t, src.Close())
	_, _, err = src.NextSample(ctx)
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, "user", d.Facing())
	require.NoError(t, d.SwitchCamera(ctx))
	assert.Equal(t, "environment", d.Facing())
}

func TestDeniedDevices(t *testing.T) {
	_, err := DeniedDevices{}.Open(context.Background(), domain.MediaVideo)
	assert.ErrorIs(t, err, domain.ErrDeviceDenied)
}

func TestFileDevices_IVFLoops(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	path := writeIVF(t, []byte{0x01, 0x02, 0x03}, []byte{0x04, 0x05})
	d := NewFileDevices(path, "")

	src, err := d.Open(ctx, domain.MediaVideo)
	require.NoError(t, err)
	defer src.Close()

	var frames [][]byte
	for i := 0; i < 3; i++ {
		frame, dur, err := src.NextSample(ctx)
		require.NoError(t, err)
		assert.Equal(t, 20*time.Millisecond, dur)
		frames = append(frames, frame)
	}
	assert.Equal(t, [][]byte{{0x01, 0x02, 0x03}, {0x04, 0x05}, {0x01, 0x02, 0x03}}, frames)

	_, err = d.Open(ctx, domain.MediaAudio)
	assert.ErrorIs(t, err, domain.ErrDeviceDenied)
}

func TestFileDevices_RejectsOtherCodecs(t *testing.T) {
	path := writeIVF(t, []byte{0x01})
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	copy(data[8:12], "VP90")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = NewFileDevices(path, "").Open(context.Background(), domain.MediaVideo)
	assert.Error(t, err)
}

func TestSessionFactory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Video.JoinDelay = 0

	f, err := NewSessionFactory(cfg, NewTestPatternDevices(), nil, nil, logger.Nop())
	require.NoError(t, err)
	first, second := f.NewSession(), f.NewSession()
	assert.IsType(t, &MockSession{}, first)
	assert.NotSame(t, first, second)

	cfg.Video.Provider = "webrtc"
	_, err = NewSessionFactory(cfg, NewTestPatternDevices(), nil, nil, logger.Nop())
	assert.Error(t, err)
}

func TestRTCConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.WebRTC.PortRange.Min = 50000
	cfg.WebRTC.PortRange.Max = 50100
	cfg.WebRTC.ICEServers = []config.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}

	rtc := RTCConfig(cfg)
	assert.Equal(t, uint16(50000), rtc.PortRange.Min)
	require.Len(t, rtc.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, rtc.ICEServers[0].URLs)
}
