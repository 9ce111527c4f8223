package detector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const scriptName = "mediapipe_service.py"

var (
	// ErrScriptNotFound is returned when mediapipe_service.py cannot be located.
	ErrScriptNotFound = errors.New(scriptName + " not found")
	// ErrNotReady is returned by Detect while the helper is starting.
	ErrNotReady = errors.New("mediapipe helper not ready")
	// ErrTimeout is returned when the helper misses a deadline.
	ErrTimeout = errors.New("mediapipe helper timed out")
)

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
//
// Frames are sent as a 4-byte big-endian length followed by a JPEG; the
// helper answers each frame with one line of JSON. Every round trip is
// bounded by Config.ResponseTimeout, and a helper that misses it is killed.
// Detect never waits for a helper to start: it launches one in the
// background and returns ErrNotReady until the model has loaded.
type MediaPipeDetector struct {
	config     Config
	scriptPath string
	logger     *zap.SugaredLogger

	mu        sync.Mutex
	proc      *helper
	ready     bool
	idleTimer *time.Timer
}

// helper is one running Python process.
type helper struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

// NewMediaPipeDetector creates a new MediaPipe detector. The Python
// process is started by Start, or in the background by the first Detect.
func NewMediaPipeDetector(config Config, logger *zap.SugaredLogger) (*MediaPipeDetector, error) {
	scriptPath := config.ScriptPath
	if scriptPath == "" {
		scriptPath = findMediaPipeScript()
	} else if _, err := os.Stat(scriptPath); err != nil {
		scriptPath = ""
	}
	if scriptPath == "" {
		return nil, ErrScriptNotFound
	}

	defaults := DefaultConfig()
	if config.ResponseTimeout <= 0 {
		config.ResponseTimeout = defaults.ResponseTimeout
	}
	if config.StartTimeout <= 0 {
		config.StartTimeout = defaults.StartTimeout
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = defaults.StopTimeout
	}

	return &MediaPipeDetector{
		config:     config,
		scriptPath: scriptPath,
		logger:     logger,
	}, nil
}

// Start launches the helper and waits up to Config.StartTimeout for it to
// answer a blank frame, so the model is loaded before the first Detect.
func (d *MediaPipeDetector) Start() error {
	d.mu.Lock()
	if d.ready {
		d.mu.Unlock()
		return nil
	}
	proc, err := d.launch()
	d.mu.Unlock()
	if err != nil {
		return err
	}
	if proc == nil {
		return ErrNotReady
	}
	return d.warmUp(proc)
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	data, err := encode(frame)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		proc, err := d.launch()
		if err != nil {
			return nil, err
		}
		if proc != nil {
			go func() {
				if err := d.warmUp(proc); err != nil {
					d.logger.Warnw("mediapipe service failed to start", "error", err)
				}
			}()
		}
		return nil, ErrNotReady
	}

	line, err := exchange(d.proc.stdin, d.proc.stdout, data, d.config.ResponseTimeout)
	if err != nil {
		proc := d.detach()
		go d.reap(proc, 0)
		return nil, err
	}

	hands, err := decodeResponse(line)
	if err != nil {
		return nil, err
	}

	d.resetIdleTimer()
	return hands, nil
}

// Close shuts down the Python process, killing it when it does not exit
// within Config.StopTimeout.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	proc := d.detach()
	d.mu.Unlock()

	if proc == nil {
		return nil
	}
	return d.reap(proc, d.config.StopTimeout)
}

// args returns the helper command line after the interpreter.
func (d *MediaPipeDetector) args() []string {
	args := []string{d.scriptPath}
	if d.config.MaxHands > 0 {
		args = append(args, "--max-hands", strconv.Itoa(d.config.MaxHands))
	}
	if d.config.MinConfidence > 0 {
		args = append(args, "--min-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64))
	}
	if d.config.MinTrackingConf > 0 {
		args = append(args, "--min-tracking", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64))
	}
	return args
}

// launch starts a helper process unless one is already running or
// starting, in which case it returns nil. Caller holds d.mu.
func (d *MediaPipeDetector) launch() (*helper, error) {
	if d.proc != nil {
		return nil, nil
	}

	pythonPath := d.config.Python
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	cmd := exec.Command(pythonPath, d.args()...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mediapipe service: %w", err)
	}
	go d.forwardStderr(stderr)

	d.logger.Infow("mediapipe service started",
		"python", pythonPath,
		"script", d.scriptPath,
		"pid", cmd.Process.Pid)

	d.proc = &helper{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}
	return d.proc, nil
}

// warmUp sends proc a blank frame and marks the detector ready once it
// answers. It runs without d.mu held; Detect reports ErrNotReady meanwhile.
func (d *MediaPipeDetector) warmUp(proc *helper) error {
	data, err := blankFrame()
	if err == nil {
		_, err = exchange(proc.stdin, proc.stdout, data, d.config.StartTimeout)
	}

	d.mu.Lock()
	if d.proc != proc {
		d.mu.Unlock()
		return errors.New("mediapipe service stopped while starting")
	}
	if err != nil {
		d.detach()
		d.mu.Unlock()
		d.reap(proc, 0)
		return fmt.Errorf("start mediapipe service: %w", err)
	}
	d.ready = true
	d.mu.Unlock()

	d.logger.Infow("mediapipe service ready", "pid", proc.cmd.Process.Pid)
	return nil
}

func (d *MediaPipeDetector) forwardStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		d.logger.Debugw("mediapipe", "line", scanner.Text())
	}
}

// detach forgets the running helper and returns it. Caller holds d.mu.
func (d *MediaPipeDetector) detach() *helper {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	proc := d.proc
	d.proc = nil
	d.ready = false
	return proc
}

// reap stops a detached helper and logs the outcome.
func (d *MediaPipeDetector) reap(proc *helper, grace time.Duration) error {
	pid := proc.cmd.Process.Pid
	err := proc.stop(grace)
	d.logger.Infow("mediapipe service stopped", "pid", pid, "error", err)
	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.config.IdleTimeout <= 0 {
		return
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	proc := d.proc
	d.idleTimer = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		if d.proc != proc {
			d.mu.Unlock()
			return
		}
		d.detach()
		d.mu.Unlock()
		d.reap(proc, d.config.StopTimeout)
	})
}

// stop closes stdin and waits for the process to exit. After grace it is
// killed; a zero grace kills at once.
func (h *helper) stop(grace time.Duration) error {
	h.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()

	if grace > 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case err := <-done:
			return err
		case <-timer.C:
		}
	}

	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill mediapipe service: %w", err)
	}
	<-done
	if grace > 0 {
		return fmt.Errorf("%w: killed after %s", ErrTimeout, grace)
	}
	return nil
}

// exchange writes one frame and reads one reply line, giving up after
// timeout. On timeout the I/O goroutine is left blocked until the caller
// stops the process.
func exchange(w io.Writer, r *bufio.Reader, data []byte, timeout time.Duration) ([]byte, error) {
	type reply struct {
		line []byte
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		if err := writeFrame(w, data); err != nil {
			done <- reply{err: err}
			return
		}
		line, err := r.ReadBytes('\n')
		if err != nil {
			err = fmt.Errorf("read response: %w", err)
		}
		done <- reply{line: line, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case rep := <-done:
		return rep.line, rep.err
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}

// encode returns frame as JPEG bytes owned by Go memory.
func encode(frame *gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}

// blankFrame is the warm-up image.
func blankFrame() ([]byte, error) {
	mat := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8UC3)
	defer mat.Close()
	return encode(&mat)
}

// writeFrame writes one length-prefixed frame.
func writeFrame(w io.Writer, data []byte) error {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))

	if _, err := w.Write(length[:]); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// decodeResponse parses one JSON line from the helper. Hands without a
// full set of landmarks are dropped.
func decodeResponse(line []byte) ([]HandLandmarks, error) {
	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("mediapipe: %s", response.Error)
	}

	result := make([]HandLandmarks, 0, len(response.Hands))
	for _, h := range response.Hands {
		if len(h.Points) != NumLandmarks {
			continue
		}
		result = append(result, h.toHandLandmarks())
	}
	return result, nil
}

func findMediaPipeScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	return firstExisting(
		filepath.Join("scripts", scriptName),
		filepath.Join("..", "scripts", scriptName),
		filepath.Join(execDir, "scripts", scriptName),
		filepath.Join(os.Getenv("HOME"), ".tellopilot", "scripts", scriptName),
	)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
// It checks for venv/bin/python relative to the project directory.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	return firstExisting(
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".tellopilot/venv/bin/python"),
	)
}

// firstExisting returns the absolute form of the first path that exists.
func firstExisting(candidates ...string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	for i := 0; i < NumLandmarks; i++ {
		lm.Points[i] = Point3D{
			X: h.Points[i].X,
			Y: h.Points[i].Y,
			Z: h.Points[i].Z,
		}
	}

	return lm
}
