package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/pkg/utils"

	"github.com/pion/webrtc/v3/pkg/media/ivfreader"
	"github.com/pion/webrtc/v3/pkg/media/oggreader"
)

const (
	videoFrameInterval = 33 * time.Millisecond
	audioFrameInterval = 20 * time.Millisecond
	opusSampleRate     = 48000
)

// NewDevices returns the capture source named by kind.
func NewDevices(kind, videoFile, audioFile string) (ports.MediaDevices, error) {
	switch kind {
	case "", "test-pattern":
		return NewTestPatternDevices(), nil
	case "denied":
		return DeniedDevices{}, nil
	case "file":
		return NewFileDevices(videoFile, audioFile), nil
	default:
		return nil, fmt.Errorf("unknown device source %q", kind)
	}
}

// DeniedDevices refuses every capture request, like a browser whose user
// declined the permission prompt.
type DeniedDevices struct{}

func (DeniedDevices) Open(ctx context.Context, kind domain.MediaKind) (ports.MediaSource, error) {
	return nil, domain.ErrDeviceDenied
}

func (DeniedDevices) SwitchCamera(ctx context.Context) error {
	return domain.ErrDeviceDenied
}

// TestPatternDevices produces fixed synthetic frames at camera and
// microphone rates.
type TestPatternDevices struct {
	mu     sync.Mutex
	facing string
}

func NewTestPatternDevices() *TestPatternDevices {
	return &TestPatternDevices{facing: "user"}
}

func (d *TestPatternDevices) Open(ctx context.Context, kind domain.MediaKind) (ports.MediaSource, error) {
	interval, label := videoFrameInterval, "test-pattern camera"
	if kind == domain.MediaAudio {
		interval, label = audioFrameInterval, "test-pattern microphone"
	}
	return &patternSource{
		track: domain.LocalTrack{
			ID:      utils.GenerateID(string(kind)),
			Kind:    kind,
			Label:   label,
			Enabled: true,
		},
		interval: interval,
		frame:    []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a},
		done:     make(chan struct{}),
	}, nil
}

func (d *TestPatternDevices) SwitchCamera(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.facing == "user" {
		d.facing = "environment"
	} else {
		d.facing = "user"
	}
	return nil
}

// Facing reports which camera is selected.
func (d *TestPatternDevices) Facing() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.facing
}

type patternSource struct {
	track    domain.LocalTrack
	interval time.Duration
	frame    []byte
	done     chan struct{}
	once     sync.Once
}

func (s *patternSource) Track() domain.LocalTrack { return s.track }

func (s *patternSource) NextSample(ctx context.Context) ([]byte, time.Duration, error) {
	if err := pace(ctx, s.done, s.interval); err != nil {
		return nil, 0, err
	}
	return append([]byte(nil), s.frame...), s.interval, nil
}

func (s *patternSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// FileDevices plays a VP8 IVF file as the camera and an Opus Ogg file as
// the microphone, looping at end of file.
type FileDevices struct {
	videoPath string
	audioPath string
}

func NewFileDevices(videoPath, audioPath string) *FileDevices {
	return &FileDevices{videoPath: videoPath, audioPath: audioPath}
}

func (d *FileDevices) Open(ctx context.Context, kind domain.MediaKind) (ports.MediaSource, error) {
	switch kind {
	case domain.MediaVideo:
		return openIVF(d.videoPath)
	case domain.MediaAudio:
		if d.audioPath == "" {
			return nil, fmt.Errorf("no audio file configured: %w", domain.ErrDeviceDenied)
		}
		return openOgg(d.audioPath)
	default:
		return nil, fmt.Errorf("unsupported media kind %q", kind)
	}
}

func (d *FileDevices) SwitchCamera(ctx context.Context) error {
	return nil
}

type ivfSource struct {
	path     string
	track    domain.LocalTrack
	file     *os.File
	reader   *ivfreader.IVFReader
	interval time.Duration
	done     chan struct{}
	once     sync.Once
}

func openIVF(path string) (*ivfSource, error) {
	s := &ivfSource{
		path: path,
		track: domain.LocalTrack{
			ID:      utils.GenerateID("video"),
			Kind:    domain.MediaVideo,
			Label:   path,
			Enabled: true,
		},
		done: make(chan struct{}),
	}
	if err := s.rewind(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ivfSource) rewind() error {
	if s.file != nil {
		s.file.Close()
	}
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open video file: %w", err)
	}
	reader, header, err := ivfreader.NewWith(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to read IVF header: %w", err)
	}
	if header.FourCC != "VP80" {
		f.Close()
		return fmt.Errorf("unsupported IVF codec %q", header.FourCC)
	}

	s.file = f
	s.reader = reader
	s.interval = videoFrameInterval
	if header.TimebaseDenominator > 0 && header.TimebaseNumerator > 0 {
		s.interval = time.Duration(float64(time.Second) * float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator))
	}
	return nil
}

func (s *ivfSource) Track() domain.LocalTrack { return s.track }

func (s *ivfSource) NextSample(ctx context.Context) ([]byte, time.Duration, error) {
	if err := pace(ctx, s.done, s.interval); err != nil {
		return nil, 0, err
	}
	frame, _, err := s.reader.ParseNextFrame()
	if errors.Is(err, io.EOF) {
		if err := s.rewind(); err != nil {
			return nil, 0, err
		}
		frame, _, err = s.reader.ParseNextFrame()
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read IVF frame: %w", err)
	}
	return frame, s.interval, nil
}

func (s *ivfSource) Close() error {
	s.once.Do(func() { close(s.done) })
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

type oggSource struct {
	path        string
	track       domain.LocalTrack
	file        *os.File
	reader      *oggreader.OggReader
	lastGranule uint64
	done        chan struct{}
	once        sync.Once
}

func openOgg(path string) (*oggSource, error) {
	s := &oggSource{
		path: path,
		track: domain.LocalTrack{
			ID:      utils.GenerateID("audio"),
			Kind:    domain.MediaAudio,
			Label:   path,
			Enabled: true,
		},
		done: make(chan struct{}),
	}
	if err := s.rewind(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *oggSource) rewind() error {
	if s.file != nil {
		s.file.Close()
	}
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	reader, _, err := oggreader.NewWith(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to read Ogg header: %w", err)
	}
	s.file = f
	s.reader = reader
	s.lastGranule = 0
	return nil
}

func (s *oggSource) Track() domain.LocalTrack { return s.track }

func (s *oggSource) NextSample(ctx context.Context) ([]byte, time.Duration, error) {
	page, header, err := s.reader.ParseNextPage()
	if errors.Is(err, io.EOF) {
		if err := s.rewind(); err != nil {
			return nil, 0, err
		}
		page, header, err = s.reader.ParseNextPage()
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read Ogg page: %w", err)
	}

	duration := audioFrameInterval
	if header.GranulePosition > s.lastGranule {
		samples := header.GranulePosition - s.lastGranule
		duration = time.Duration(float64(samples) / opusSampleRate * float64(time.Second))
	}
	s.lastGranule = header.GranulePosition

	if err := pace(ctx, s.done, duration); err != nil {
		return nil, 0, err
	}
	return page, duration, nil
}

func (s *oggSource) Close() error {
	s.once.Do(func() { close(s.done) })
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// pace waits one frame interval. A closed source reports io.EOF.
func pace(ctx context.Context, done <-chan struct{}, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return io.EOF
	case <-timer.C:
		return nil
	}
}
