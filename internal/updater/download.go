package updater

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"

	"github.com/Iyanyourbae/Updater-Releases/internal/metrics"
)

const (
	defaultChunkSize        = 8 * 1024
	defaultProgressInterval = 100 * time.Millisecond
	bytesPerMB              = 1024 * 1024
	unknownSizeText         = "Unknown size"
)

// ErrCanceled is the failure reported when the user stops a running job
var ErrCanceled = errors.New("download canceled by user")

// progressMeter tracks transferred bytes and decides when a progress
// event is due
type progressMeter struct {
	total      int64
	downloaded int64
	started    time.Time
	lastEmit   time.Time
	interval   time.Duration
	now        func() time.Time
}

func newProgressMeter(total int64, interval time.Duration, now func() time.Time) *progressMeter {
	return &progressMeter{
		total:    total,
		started:  now(),
		interval: interval,
		now:      now,
	}
}

func (m *progressMeter) add(n int) {
	m.downloaded += int64(n)
}

// due reports whether enough time has passed since the last event
func (m *progressMeter) due() bool {
	if m.lastEmit.IsZero() {
		return true
	}
	return m.now().Sub(m.lastEmit) >= m.interval
}

// wait returns how long to hold off before the next event is allowed
func (m *progressMeter) wait() time.Duration {
	if m.lastEmit.IsZero() {
		return 0
	}
	remaining := m.interval - m.now().Sub(m.lastEmit)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// snapshot builds a progress event and marks it as emitted
func (m *progressMeter) snapshot() Progress {
	now := m.now()
	m.lastEmit = now

	p := Progress{
		Downloaded: m.downloaded,
		Total:      m.total,
		At:         now,
		SizeText:   unknownSizeText,
	}
	if m.total > 0 {
		p.Percent = int(m.downloaded * 100 / m.total)
		if p.Percent > 100 {
			p.Percent = 100
		}
		p.SizeText = fmt.Sprintf("%.2f / %.2f MB",
			float64(m.downloaded)/bytesPerMB, float64(m.total)/bytesPerMB)
	} else {
		p.Total = -1
	}

	var speed float64
	if elapsed := now.Sub(m.started).Seconds(); elapsed > 0 {
		speed = float64(m.downloaded) / elapsed
	}
	p.SpeedText = fmt.Sprintf("%.2f MB/s", speed/bytesPerMB)
	return p
}

// download streams the job's URL into tempPath chunk by chunk
func (w *Worker) download(ctx context.Context, job *Job, tempPath string) error {
	if job.stopRequested(ctx) {
		return ErrCanceled
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.Request.URL, nil)
	if err != nil {
		return errors.Wrap(err, "setting up HTTP request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		if job.stopRequested(ctx) {
			return ErrCanceled
		}
		return errors.Wrap(err, "performing download request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("download failed: HTTP %s", resp.Status)
	}

	total := resp.ContentLength
	job.log.WithField("size", total).Debug("Download started")
	if err := w.checkFreeSpace(job.log, total); err != nil {
		return err
	}

	out, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "opening %s for writing", tempPath)
	}
	defer out.Close()

	meter := newProgressMeter(total, w.interval, w.now)
	buf := make([]byte, w.chunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return errors.Wrap(werr, "writing temporary file")
			}
			meter.add(n)
			metrics.DownloadedBytes.Add(float64(n))
		}
		if job.stopRequested(ctx) {
			return ErrCanceled
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return errors.Wrap(rerr, "reading response body")
		}
		if meter.due() {
			job.emitProgress(meter.snapshot())
		}
	}

	if err := out.Close(); err != nil {
		return errors.Wrap(err, "closing temporary file")
	}

	// final event so completed downloads always report their last state
	if d := meter.wait(); d > 0 {
		time.Sleep(d)
	}
	job.emitProgress(meter.snapshot())

	job.log.WithField("bytes", meter.downloaded).Debug("Download finished")
	return nil
}

// checkFreeSpace refuses downloads that cannot fit in the temp directory.
// When the file system cannot be queried the download goes ahead.
func (w *Worker) checkFreeSpace(log *logrus.Entry, total int64) error {
	if total <= 0 {
		return nil
	}
	usage, err := disk.Usage(w.tempDir)
	if err != nil {
		log.WithError(err).Debug("Skipping free space check")
		return nil
	}
	if usage.Free < uint64(total) {
		return errors.Errorf("not enough free space in %s: need %s, have %s",
			w.tempDir, humanize.IBytes(uint64(total)), humanize.IBytes(usage.Free))
	}
	return nil
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}
