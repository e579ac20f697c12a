package station

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"

	"github.com/1ureka/roverlink/internal/clock"
	"github.com/1ureka/roverlink/internal/util"
)

// CameraStreamID is the msid stream id viewers see on the station's video.
const CameraStreamID = "camera"

const syntheticFrameInterval = 33 * time.Millisecond

// syntheticFrame is a bare VP8 key frame header. It carries no picture, but
// it moves RTP so viewers observe the stream.
var syntheticFrame = []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x10, 0x00, 0x10, 0x00}

// frameSource yields encoded video frames at a fixed interval.
type frameSource interface {
	MimeType() string
	Interval() time.Duration
	Next() ([]byte, error)
	Close() error
}

type syntheticSource struct{}

func (syntheticSource) MimeType() string        { return webrtc.MimeTypeVP8 }
func (syntheticSource) Interval() time.Duration { return syntheticFrameInterval }
func (syntheticSource) Next() ([]byte, error)   { return syntheticFrame, nil }
func (syntheticSource) Close() error            { return nil }

// ivfSource replays an IVF file, starting over at the end.
type ivfSource struct {
	f        *os.File
	r        *ivfreader.IVFReader
	mime     string
	interval time.Duration
}

func openIVF(path string) (*ivfSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, hdr, err := ivfreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read ivf header: %w", err)
	}

	var mime string
	switch hdr.FourCC {
	case "VP80":
		mime = webrtc.MimeTypeVP8
	case "VP90":
		mime = webrtc.MimeTypeVP9
	case "AV01":
		mime = webrtc.MimeTypeAV1
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported ivf codec %q", hdr.FourCC)
	}

	interval := syntheticFrameInterval
	if hdr.TimebaseDenominator != 0 && hdr.TimebaseNumerator != 0 {
		interval = time.Duration(float64(hdr.TimebaseNumerator) / float64(hdr.TimebaseDenominator) * float64(time.Second))
	}
	return &ivfSource{f: f, r: r, mime: mime, interval: interval}, nil
}

func (s *ivfSource) MimeType() string        { return s.mime }
func (s *ivfSource) Interval() time.Duration { return s.interval }
func (s *ivfSource) Close() error            { return s.f.Close() }

func (s *ivfSource) Next() ([]byte, error) {
	frame, _, err := s.r.ParseNextFrame()
	if !errors.Is(err, io.EOF) {
		return frame, err
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if s.r, _, err = ivfreader.NewWith(s.f); err != nil {
		return nil, err
	}
	frame, _, err = s.r.ParseNextFrame()
	return frame, err
}

func (s *Station) openSource() (frameSource, error) {
	if s.opts.VideoFile == "" {
		return syntheticSource{}, nil
	}
	return openIVF(s.opts.VideoFile)
}

// addCamera attaches a video track to pc and feeds it from a fresh frame
// source until ctx is done. It must run before the remote offer is applied
// so the track answers the viewer's recvonly video line.
func (s *Station) addCamera(ctx context.Context, pc *webrtc.PeerConnection, peerID string) error {
	src, err := s.openSource()
	if err != nil {
		return err
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: src.MimeType()},
		"video",
		CameraStreamID,
	)
	if err != nil {
		src.Close()
		return err
	}
	rtpSender, err := pc.AddTrack(track)
	if err != nil {
		src.Close()
		return err
	}

	// Incoming RTCP must be read for interceptors to run.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := rtpSender.Read(buf); err != nil {
				return
			}
		}
	}()
	go feedCamera(ctx, track, src, s.opts.Clock, peerID)
	return nil
}

func feedCamera(ctx context.Context, track *webrtc.TrackLocalStaticSample, src frameSource, clk clock.Clock, peerID string) {
	defer src.Close()
	ticker := clk.NewTicker(src.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := src.Next()
		if err != nil {
			util.LogWarning("peer %s: camera stopped: %v", peerID, err)
			return
		}
		if err := track.WriteSample(media.Sample{Data: frame, Duration: src.Interval()}); err != nil {
			util.LogDebug("peer %s: write sample: %v", peerID, err)
			return
		}
	}
}
