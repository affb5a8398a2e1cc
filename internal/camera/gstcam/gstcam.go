// Package gstcam captures webcam frames through a GStreamer v4l2 pipeline.
//
// Pipeline structure:
//
//	v4l2src → videoconvert → videoscale → capsfilter(RGB, WxH) → appsink
//
// The appsink keeps only the latest buffer; Frame converts it to an RGBA image
// on demand.
//
// v4l2 has no notion of a facing mode; Device picks the camera and
// Constraints.Facing is only logged.
package gstcam

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/attendance/internal/camera"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

const defaultOpenTimeout = 10 * time.Second

// Camera opens v4l2 devices
type Camera struct {
	Device      string
	OpenTimeout time.Duration
}

func New(device string) *Camera {
	return &Camera{
		Device:      device,
		OpenTimeout: defaultOpenTimeout,
	}
}

// Open builds and starts the pipeline, then waits for the first frame so the
// negotiated size is known before returning.
func (c *Camera) Open(ctx context.Context, constraints camera.Constraints) (camera.Stream, error) {
	gst.Init(nil)

	launch := buildLaunch(c.Device, constraints)
	slog.Debug("gstcam: creating pipeline", "launch", launch, "facing", constraints.Facing)

	pipeline, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	sinkElement, err := pipeline.GetElementByName("sink")
	if err != nil {
		return nil, fmt.Errorf("failed to find appsink: %w", err)
	}

	s := &stream{
		id:       uuid.New().String(),
		device:   c.Device,
		pipeline: pipeline,
		ready:    make(chan struct{}),
	}

	app.SinkFromElement(sinkElement).SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		_ = pipeline.SetState(gst.StateNull)
		if classified := camera.ClassifyMessage(err.Error()); classified != nil {
			return nil, fmt.Errorf("failed to start pipeline on %s: %w", c.Device, classified)
		}
		return nil, fmt.Errorf("failed to start pipeline on %s: %w", c.Device, err)
	}

	timeout := c.OpenTimeout
	if timeout <= 0 {
		timeout = defaultOpenTimeout
	}

	if err := s.waitForFirstFrame(ctx, timeout); err != nil {
		_ = s.Stop()
		return nil, err
	}

	w, h := s.Dimensions()
	slog.Info("gstcam: stream ready", "device", c.Device, "stream_id", s.id, "width", w, "height", h)
	return s, nil
}

func buildLaunch(device string, constraints camera.Constraints) string {
	caps := "video/x-raw,format=RGB"
	if constraints.Width > 0 && constraints.Height > 0 {
		caps = fmt.Sprintf("%s,width=%d,height=%d", caps, constraints.Width, constraints.Height)
	}
	return fmt.Sprintf(
		"v4l2src device=%s ! videoconvert ! videoscale ! %s ! appsink name=sink sync=false max-buffers=1 drop=true",
		device, caps,
	)
}

type stream struct {
	id       string
	device   string
	pipeline *gst.Pipeline

	mu     sync.RWMutex
	width  int
	height int
	stride int
	data   []byte

	ready     chan struct{}
	readyOnce sync.Once
	stopOnce  sync.Once
	stopped   bool
}

// waitForFirstFrame polls the bus for errors until a sample arrives
func (s *stream) waitForFirstFrame(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	bus := s.pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ready:
			return nil
		default:
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("no frames from %s after %s", s.device, timeout)
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			slog.Error("gstcam: pipeline error",
				"device", s.device,
				"error", gerr.Error(),
				"debug", gerr.DebugString())
			if classified := camera.ClassifyMessage(gerr.Error() + " " + gerr.DebugString()); classified != nil {
				return fmt.Errorf("failed to open %s: %w", s.device, classified)
			}
			return fmt.Errorf("failed to open %s: %s", s.device, gerr.Error())
		case gst.MessageEOS:
			return fmt.Errorf("device %s ended the stream before the first frame", s.device)
		}
	}
}

func (s *stream) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("gstcam: failed to pull sample, skipping frame")
		return gst.FlowOK
	}

	width, height, ok := sampleSize(sample)
	if !ok {
		slog.Warn("gstcam: sample without size caps, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	raw := mapInfo.Bytes()
	if len(raw) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}

	// GStreamer reuses the buffer
	data := make([]byte, len(raw))
	copy(data, raw)
	buffer.Unmap()

	s.mu.Lock()
	s.width = width
	s.height = height
	s.stride = len(data) / height
	s.data = data
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
	return gst.FlowOK
}

func sampleSize(sample *gst.Sample) (int, int, bool) {
	caps := sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return 0, 0, false
	}
	structure := caps.GetStructureAt(0)
	if structure == nil {
		return 0, 0, false
	}

	width, err := structure.GetValue("width")
	if err != nil {
		return 0, 0, false
	}
	height, err := structure.GetValue("height")
	if err != nil {
		return 0, 0, false
	}

	w, wok := asInt(width)
	h, hok := asInt(height)
	return w, h, wok && hok && w > 0 && h > 0
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	default:
		return 0, false
	}
}

func (s *stream) Dimensions() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

func (s *stream) Frame() (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return nil, fmt.Errorf("stream %s stopped", s.id)
	}
	if s.data == nil {
		return nil, fmt.Errorf("stream %s has no frame yet", s.id)
	}
	return rgbToRGBA(s.data, s.width, s.height, s.stride), nil
}

// rgbToRGBA expands packed RGB rows (possibly padded to stride) into RGBA
func rgbToRGBA(data []byte, width, height, stride int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := data[y*stride:]
		out := img.Pix[y*img.Stride:]
		for x := 0; x < width && x*3+2 < len(row); x++ {
			out[x*4] = row[x*3]
			out[x*4+1] = row[x*3+1]
			out[x*4+2] = row[x*3+2]
			out[x*4+3] = 0xff
		}
	}
	return img
}

func (s *stream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		slog.Info("gstcam: stopping stream", "device", s.device, "stream_id", s.id)
		if setErr := s.pipeline.SetState(gst.StateNull); setErr != nil {
			err = fmt.Errorf("failed to set pipeline to NULL: %w", setErr)
		}
		s.mu.Lock()
		s.stopped = true
		s.data = nil
		s.mu.Unlock()
	})
	return err
}
