package updater

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Iyanyourbae/Updater-Releases/internal/logger"
	"github.com/Iyanyourbae/Updater-Releases/internal/metrics"
)

const (
	successMessage = "Update completed successfully!"
	failurePrefix  = "Update failed: "
	eventBuffer    = 64
)

// TempFilePattern matches the staging files of jobs in the temp directory
const TempFilePattern = "release-*"

// ErrBusy is returned by Start while another job is running
var ErrBusy = errors.New("a download is already in progress")

// Worker downloads and installs one release asset at a time
type Worker struct {
	client    *http.Client
	tempDir   string
	chunkSize int
	interval  time.Duration
	now       func() time.Time

	mu     sync.Mutex
	active *Job
}

// Option configures a Worker
type Option func(*Worker)

// WithHTTPClient sets the client used for asset downloads
func WithHTTPClient(c *http.Client) Option {
	return func(w *Worker) {
		if c != nil {
			w.client = c
		}
	}
}

// WithHTTPTimeout sets an overall timeout on asset downloads. Zero keeps the
// transport defaults.
func WithHTTPTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.client = &http.Client{Timeout: d}
		}
	}
}

// WithTempDir sets where downloads are staged
func WithTempDir(dir string) Option {
	return func(w *Worker) {
		if dir != "" {
			w.tempDir = dir
		}
	}
}

// WithChunkSize sets the read size of the streaming loop
func WithChunkSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.chunkSize = n
		}
	}
}

// WithProgressInterval sets the minimum time between progress events
func WithProgressInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWorker creates a worker with defaults suitable for release assets
func NewWorker(opts ...Option) *Worker {
	w := &Worker{
		client:    &http.Client{},
		tempDir:   os.TempDir(),
		chunkSize: defaultChunkSize,
		interval:  defaultProgressInterval,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Busy reports whether a job is currently running
func (w *Worker) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active != nil
}

// Start validates req and runs it in the background. The returned job's
// Events channel yields progress events followed by exactly one outcome.
func (w *Worker) Start(ctx context.Context, req Request) (*Job, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active != nil {
		return nil, ErrBusy
	}

	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:      newJobID(),
		Request: req,
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
		cancel:  cancel,
		started: w.now(),
	}
	job.running.Store(true)
	job.log = logger.G(ctx).WithFields(logrus.Fields{
		"job":  job.ID,
		"url":  req.URL,
		"type": req.FileType,
	})
	w.active = job

	go w.run(jobCtx, job)
	return job, nil
}

func (w *Worker) run(ctx context.Context, job *Job) {
	defer job.cancel()

	err := w.execute(ctx, job)

	outcome := Outcome{Success: true, Message: successMessage}
	result := "success"
	if err != nil {
		outcome = Outcome{Success: false, Message: failurePrefix + err.Error(), Err: err}
		result = "failure"
		if errors.Is(err, ErrCanceled) {
			result = "canceled"
		}
		job.log.WithError(err).Warn("Job failed")
	} else {
		job.log.Info("Job completed")
	}
	metrics.JobsTotal.WithLabelValues(result).Inc()
	metrics.JobDuration.Observe(w.now().Sub(job.started).Seconds())

	w.mu.Lock()
	if w.active == job {
		w.active = nil
	}
	w.mu.Unlock()

	job.finish(outcome)
}

// execute performs the download and install, converting panics into errors
func (w *Worker) execute(ctx context.Context, job *Job) (err error) {
	tempPath := filepath.Join(w.tempDir, tempName(job.ID, job.Request.FileType))
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("internal error: %v", r)
		}
		if _, statErr := os.Stat(tempPath); statErr == nil {
			if rmErr := os.Remove(tempPath); rmErr != nil {
				job.log.WithError(rmErr).Warn("Could not remove temporary file")
			}
		}
	}()

	if err := w.download(ctx, job, tempPath); err != nil {
		return err
	}
	if job.stopRequested(ctx) {
		return ErrCanceled
	}
	return install(job.Request, tempPath)
}

// Job is one download-and-install invocation
type Job struct {
	ID      string
	Request Request

	events   chan Event
	done     chan struct{}
	cancel   context.CancelFunc
	canceled atomic.Bool
	running  atomic.Bool
	started  time.Time
	outcome  Outcome
	log      *logrus.Entry
}

// Events delivers progress events and then the terminal outcome. The
// channel is closed after the outcome.
func (j *Job) Events() <-chan Event {
	return j.events
}

// Cancel asks the job to stop after the chunk being read. Calling it more
// than once has no further effect.
func (j *Job) Cancel() {
	if !j.canceled.CompareAndSwap(false, true) {
		return
	}
	j.running.Store(false)
	j.log.Info("Cancellation requested")
	j.cancel()
}

// Running reports whether the job has neither been canceled nor finished
func (j *Job) Running() bool {
	return j.running.Load()
}

// Done is closed once the outcome is known
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes and returns its outcome
func (j *Job) Wait() Outcome {
	<-j.done
	return j.outcome
}

func (j *Job) stopRequested(ctx context.Context) bool {
	return j.canceled.Load() || ctx.Err() != nil
}

// emitProgress never blocks the download. When the consumer falls behind
// the oldest queued progress is dropped so the latest snapshot survives.
// One slot is always kept free for the outcome.
func (j *Job) emitProgress(p Progress) {
	for len(j.events) >= cap(j.events)-1 {
		select {
		case <-j.events:
		default:
		}
	}
	j.events <- Event{Progress: &p}
}

func (j *Job) finish(o Outcome) {
	j.running.Store(false)
	j.outcome = o
	close(j.done)
	j.events <- Event{Outcome: &o}
	close(j.events)
}

// Drain forwards every event of job to obs and returns the outcome
func Drain(job *Job, obs Observer) Outcome {
	for ev := range job.Events() {
		switch {
		case ev.Progress != nil:
			obs.OnProgress(ev.Progress.Percent, ev.Progress.SizeText, ev.Progress.SpeedText)
		case ev.Outcome != nil:
			obs.OnFinished(ev.Outcome.Success, ev.Outcome.Message)
		}
	}
	return job.Wait()
}

func normalizeRequest(req Request) (Request, error) {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return req, errors.Errorf("invalid download URL %q", req.URL)
	}
	if strings.TrimSpace(req.Destination) == "" {
		return req, errors.New("destination folder is required")
	}
	req.FileType = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(req.FileType), "."))
	return req, nil
}

func newJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("job-%d", time.Now().UnixNano())
	}
	return "job-" + id.String()
}

// tempName is unique per job so concurrent workers never share a file
func tempName(jobID, fileType string) string {
	name := strings.TrimSuffix(TempFilePattern, "*") + strings.TrimPrefix(jobID, "job-")
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, fileType)
	if safe != "" {
		name += "." + safe
	}
	return name
}
