package drone

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gobot.io/x/gobot"
	"gobot.io/x/gobot/platforms/dji/tello"
	"gocv.io/x/gocv"

	"github.com/ayusman/tellopilot/internal/capture"
	"github.com/ayusman/tellopilot/internal/control"
)

// TelloConfig configures the Tello transport.
type TelloConfig struct {
	// Port is the local UDP port for the video stream.
	Port string
	// ConnectTimeout bounds the wait for the first connection event.
	ConnectTimeout time.Duration
	// FrameWidth and FrameHeight are the decoded frame size.
	FrameWidth  int
	FrameHeight int
}

// Tello drives a DJI/Ryze Tello through gobot and decodes its H.264 video
// with ffmpeg into BGR frames published to a capture.Latest.
type Tello struct {
	cfg    TelloConfig
	driver *tello.Driver
	robot  *gobot.Robot
	frames *capture.Latest
	logger *zap.SugaredLogger

	mu        sync.Mutex
	telemetry control.Telemetry

	connected chan struct{}
	videoIn   *io.PipeWriter
	videoOut  *io.PipeReader
	keepAlive *time.Ticker
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewTello creates an unconnected Tello. Decoded frames go to frames.
func NewTello(cfg TelloConfig, frames *capture.Latest, logger *zap.SugaredLogger) *Tello {
	if cfg.Port == "" {
		cfg.Port = "8890"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &Tello{
		cfg:       cfg,
		driver:    tello.NewDriver(cfg.Port),
		frames:    frames,
		logger:    logger,
		connected: make(chan struct{}),
	}
}

// Connect starts the gobot robot, the video decoder, and waits for the
// vehicle to connect.
func (t *Tello) Connect(ctx context.Context) error {
	ctx, t.cancel = context.WithCancel(ctx)

	decIn, videoIn := io.Pipe()
	videoOut, decOut := io.Pipe()
	t.videoIn = videoIn
	t.videoOut = videoOut

	t.wg.Add(2)
	go func() {
		defer t.wg.Done()
		err := t.decode(ctx, decIn, decOut)
		decOut.CloseWithError(err)
		if err != nil && ctx.Err() == nil {
			t.logger.Warnw("video decoder stopped", "error", err)
		}
	}()
	go func() {
		defer t.wg.Done()
		t.readFrames(videoOut)
	}()

	var once sync.Once
	work := func() {
		t.driver.On(tello.ConnectedEvent, func(interface{}) {
			once.Do(func() { close(t.connected) })
			t.logger.Infow("drone connected", "port", t.cfg.Port)
			if err := t.driver.StartVideo(); err != nil {
				t.logger.Warnw("start video failed", "error", err)
			}
			if err := t.driver.SetVideoEncoderRate(tello.VideoBitRateAuto); err != nil {
				t.logger.Warnw("set encoder rate failed", "error", err)
			}
			// The Tello stops streaming unless video is requested periodically.
			t.mu.Lock()
			t.keepAlive = gobot.Every(100*time.Millisecond, func() {
				t.driver.StartVideo()
			})
			t.mu.Unlock()
		})

		t.driver.On(tello.FlightDataEvent, func(data interface{}) {
			fd, ok := data.(*tello.FlightData)
			if !ok {
				return
			}
			t.mu.Lock()
			t.telemetry = control.Telemetry{
				BatteryPct: int(fd.BatteryPercentage),
				AltitudeCM: int(fd.Height) * 10,
			}
			t.mu.Unlock()
		})

		t.driver.On(tello.VideoFrameEvent, func(data interface{}) {
			pkt, ok := data.([]byte)
			if !ok {
				return
			}
			if _, err := videoIn.Write(pkt); err != nil && ctx.Err() == nil {
				t.logger.Warnw("video packet dropped", "error", err)
			}
		})
	}

	t.robot = gobot.NewRobot("tello",
		[]gobot.Connection{},
		[]gobot.Device{t.driver},
		work,
	)
	if err := t.robot.Start(false); err != nil {
		return fmt.Errorf("start robot: %w", err)
	}

	timer := time.NewTimer(t.cfg.ConnectTimeout)
	defer timer.Stop()
	select {
	case <-t.connected:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrNotConnected, t.cfg.ConnectTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// decode runs ffmpeg from H.264 on in to raw bgr24 on out.
func (t *Tello) decode(ctx context.Context, in io.Reader, out io.Writer) error {
	size := strconv.Itoa(t.cfg.FrameWidth) + "x" + strconv.Itoa(t.cfg.FrameHeight)
	stream := ffmpeg.Input("pipe:", ffmpeg.KwArgs{"f": "h264"}).
		Output("pipe:", ffmpeg.KwArgs{
			"format":  "rawvideo",
			"pix_fmt": "bgr24",
			"s":       size,
		})
	stream.Context = ctx
	return stream.WithInput(in).WithOutput(out).Run()
}

// readFrames turns the raw byte stream into Mats for the mailbox.
func (t *Tello) readFrames(r io.Reader) {
	frameSize := t.cfg.FrameWidth * t.cfg.FrameHeight * 3
	for {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			return
		}
		mat, err := gocv.NewMatFromBytes(t.cfg.FrameHeight, t.cfg.FrameWidth, gocv.MatTypeCV8UC3, buf)
		if err != nil {
			continue
		}
		if mat.Empty() {
			mat.Close()
			continue
		}
		t.frames.Publish(mat)
	}
}

// TakeOff sends the takeoff command.
func (t *Tello) TakeOff() error {
	if err := t.driver.TakeOff(); err != nil {
		return fmt.Errorf("takeoff: %w", err)
	}
	return nil
}

// Land sends the land command.
func (t *Tello) Land() error {
	if err := t.driver.Land(); err != nil {
		return fmt.Errorf("land: %w", err)
	}
	return nil
}

// Move sets the stick positions from cmd.
func (t *Tello) Move(cmd control.VelocityCommand) error {
	var errs error
	if cmd.LR >= 0 {
		errs = multierr.Append(errs, t.driver.Right(cmd.LR))
	} else {
		errs = multierr.Append(errs, t.driver.Left(-cmd.LR))
	}
	if cmd.FB >= 0 {
		errs = multierr.Append(errs, t.driver.Forward(cmd.FB))
	} else {
		errs = multierr.Append(errs, t.driver.Backward(-cmd.FB))
	}
	if cmd.UD >= 0 {
		errs = multierr.Append(errs, t.driver.Up(cmd.UD))
	} else {
		errs = multierr.Append(errs, t.driver.Down(-cmd.UD))
	}
	if cmd.Yaw >= 0 {
		errs = multierr.Append(errs, t.driver.Clockwise(cmd.Yaw))
	} else {
		errs = multierr.Append(errs, t.driver.CounterClockwise(-cmd.Yaw))
	}
	if errs != nil {
		return fmt.Errorf("move: %w", errs)
	}
	return nil
}

// Telemetry returns the latest flight data.
func (t *Tello) Telemetry() control.Telemetry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.telemetry
}

// Close stops the robot and the video pipeline. It does not land.
func (t *Tello) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		if t.keepAlive != nil {
			t.keepAlive.Stop()
		}
		t.mu.Unlock()

		if t.cancel != nil {
			t.cancel()
		}
		if t.videoIn != nil {
			err = multierr.Append(err, t.videoIn.Close())
		}
		if t.videoOut != nil {
			err = multierr.Append(err, t.videoOut.Close())
		}
		if t.robot != nil {
			err = multierr.Append(err, t.robot.Stop())
		}
		t.wg.Wait()
	})
	return err
}
