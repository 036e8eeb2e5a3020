package updater

import (
	"archive/zip"
	"bytes"
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const scenarioSize = 10485760

func collect(job *Job) ([]Progress, []Outcome) {
	var progress []Progress
	var outcomes []Outcome
	for ev := range job.Events() {
		if ev.Progress != nil {
			progress = append(progress, *ev.Progress)
		}
		if ev.Outcome != nil {
			outcomes = append(outcomes, *ev.Outcome)
		}
	}
	return progress, outcomes
}

func serveBytes(body []byte, withLength bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !withLength {
			flusher := w.(http.Flusher)
			for off := 0; off < len(body); off += 4096 {
				end := off + 4096
				if end > len(body) {
					end = len(body)
				}
				w.Write(body[off:end])
				flusher.Flush()
			}
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write(body)
	}
}

// zipOfSize builds a zip archive with a single stored entry whose total
// encoded size is exactly size bytes
func zipOfSize(t *testing.T, entry string, size int) []byte {
	t.Helper()
	build := func(payload int) []byte {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		w, err := zw.CreateHeader(&zip.FileHeader{Name: entry, Method: zip.Store})
		require.NoError(t, err)
		_, err = w.Write(bytes.Repeat([]byte("x"), payload))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return buf.Bytes()
	}
	sample := build(1024)
	overhead := len(sample) - 1024
	out := build(size - overhead)
	require.Len(t, out, size)
	return out
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "expected %s to be empty", dir)
}

func TestZipAssetIsExtracted(t *testing.T) {
	body := zipOfSize(t, "app/readme.txt", scenarioSize)
	srv := httptest.NewServer(serveBytes(body, true))
	defer srv.Close()

	tmp := t.TempDir()
	dest := filepath.Join(t.TempDir(), "install")
	w := NewWorker(WithTempDir(tmp), WithProgressInterval(time.Millisecond))

	job, err := w.Start(context.Background(), RequestFor(Asset{
		Name: "app.zip", Size: scenarioSize, DownloadURL: srv.URL + "/app.zip",
	}, dest))
	require.NoError(t, err)
	require.Equal(t, "zip", job.Request.FileType)

	progress, outcomes := collect(job)
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Success, outcomes[0].Message)
	require.Equal(t, "Update completed successfully!", outcomes[0].Message)

	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		require.GreaterOrEqual(t, progress[i].Percent, progress[i-1].Percent)
		require.True(t, progress[i].At.After(progress[i-1].At))
	}
	last := progress[len(progress)-1]
	require.Equal(t, 100, last.Percent)
	require.Equal(t, int64(scenarioSize), last.Downloaded)
	require.Equal(t, "10.00 / 10.00 MB", last.SizeText)

	data, err := os.ReadFile(filepath.Join(dest, "app", "readme.txt"))
	require.NoError(t, err)
	require.NotEmpty(t, data)
	requireEmptyDir(t, tmp)
	require.False(t, job.Running())
}

func TestExecutableIsMovedIntoNewFolder(t *testing.T) {
	body := []byte("MZ fake installer payload")
	srv := httptest.NewServer(serveBytes(body, true))
	defer srv.Close()

	tmp := t.TempDir()
	dest := filepath.Join(t.TempDir(), "does", "not", "exist")
	w := NewWorker(WithTempDir(tmp))

	job, err := w.Start(context.Background(), RequestFor(Asset{
		Name: "installer.exe", DownloadURL: srv.URL + "/download/installer.exe",
	}, dest))
	require.NoError(t, err)

	outcome := job.Wait()
	_, outcomes := collect(job)
	require.Len(t, outcomes, 1)
	require.True(t, outcome.Success, outcome.Message)

	got, err := os.ReadFile(filepath.Join(dest, "installer.exe"))
	require.NoError(t, err)
	require.Equal(t, body, got)
	requireEmptyDir(t, tmp)
}

func TestHTTPErrorIsReportedAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	tmp := t.TempDir()
	dest := filepath.Join(t.TempDir(), "install")
	w := NewWorker(WithTempDir(tmp))

	job, err := w.Start(context.Background(), Request{URL: srv.URL + "/missing.zip", FileType: "zip", Destination: dest})
	require.NoError(t, err)

	progress, outcomes := collect(job)
	require.Empty(t, progress)
	require.Len(t, outcomes, 1)
	require.False(t, outcomes[0].Success)
	require.Contains(t, outcomes[0].Message, "Update failed:")
	require.Contains(t, outcomes[0].Message, "404")

	_, err = os.Stat(dest)
	require.True(t, os.IsNotExist(err))
	requireEmptyDir(t, tmp)
}

func TestCancelStopsDownload(t *testing.T) {
	sent := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(100*defaultChunkSize))
		w.Write(bytes.Repeat([]byte("a"), 3*defaultChunkSize))
		w.(http.Flusher).Flush()
		close(sent)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tmp := t.TempDir()
	dest := filepath.Join(t.TempDir(), "install")
	w := NewWorker(WithTempDir(tmp))

	job, err := w.Start(context.Background(), Request{URL: srv.URL + "/big.tar.gz", FileType: "tar.gz", Destination: dest})
	require.NoError(t, err)

	<-sent
	job.Cancel()
	job.Cancel()
	require.False(t, job.Running())

	_, outcomes := collect(job)
	require.Len(t, outcomes, 1)
	require.False(t, outcomes[0].Success)
	require.Contains(t, outcomes[0].Message, "canceled by user")
	require.True(t, errors.Is(outcomes[0].Err, ErrCanceled))

	_, err = os.Stat(dest)
	require.True(t, os.IsNotExist(err))
	requireEmptyDir(t, tmp)
}

func TestUnknownSizeReportsZeroPercent(t *testing.T) {
	body := bytes.Repeat([]byte("z"), 64*1024)
	srv := httptest.NewServer(serveBytes(body, false))
	defer srv.Close()

	dest := t.TempDir()
	w := NewWorker(WithTempDir(t.TempDir()), WithProgressInterval(time.Nanosecond))

	job, err := w.Start(context.Background(), Request{URL: srv.URL + "/tool", FileType: "", Destination: dest, AssetName: "tool"})
	require.NoError(t, err)

	progress, outcomes := collect(job)
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Success, outcomes[0].Message)
	require.NotEmpty(t, progress)
	for _, p := range progress {
		require.Equal(t, 0, p.Percent)
		require.Equal(t, "Unknown size", p.SizeText)
		require.Equal(t, int64(-1), p.Total)
	}

	got, err := os.ReadFile(filepath.Join(dest, "tool"))
	require.NoError(t, err)
	require.Equal(t, body, got)
}

func TestSlowConsumerStillSeesFinalProgress(t *testing.T) {
	const size = 200 * 1024
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(size))
		piece := bytes.Repeat([]byte("s"), 1024)
		for i := 0; i < size/len(piece); i++ {
			w.Write(piece)
			w.(http.Flusher).Flush()
			time.Sleep(2 * time.Millisecond)
		}
	}))
	defer srv.Close()

	dest := t.TempDir()
	w := NewWorker(WithTempDir(t.TempDir()), WithChunkSize(1024), WithProgressInterval(time.Millisecond))

	job, err := w.Start(context.Background(), Request{URL: srv.URL + "/tool", Destination: dest, AssetName: "tool"})
	require.NoError(t, err)

	<-job.Done()
	progress, outcomes := collect(job)
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Success, outcomes[0].Message)
	require.NotEmpty(t, progress)
	require.LessOrEqual(t, len(progress), cap(job.events)-1)
	for i := 1; i < len(progress); i++ {
		require.GreaterOrEqual(t, progress[i].Percent, progress[i-1].Percent)
	}
	last := progress[len(progress)-1]
	require.Equal(t, 100, last.Percent)
	require.Equal(t, int64(size), last.Downloaded)
}

func TestSevenZipIsKeptIntact(t *testing.T) {
	body := []byte("7z\xbc\xaf\x27\x1c fake")
	srv := httptest.NewServer(serveBytes(body, true))
	defer srv.Close()

	dest := t.TempDir()
	w := NewWorker(WithTempDir(t.TempDir()))

	job, err := w.Start(context.Background(), RequestFor(Asset{Name: "bundle.7z", DownloadURL: srv.URL + "/bundle.7z"}, dest))
	require.NoError(t, err)
	require.True(t, job.Wait().Success)

	got, err := os.ReadFile(filepath.Join(dest, "bundle.7z"))
	require.NoError(t, err)
	require.Equal(t, body, got)
}

func TestWorkerRefusesConcurrentJobs(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	w := NewWorker(WithTempDir(t.TempDir()))
	req := Request{URL: srv.URL + "/a.exe", FileType: "exe", Destination: t.TempDir()}

	job, err := w.Start(context.Background(), req)
	require.NoError(t, err)
	require.True(t, w.Busy())

	_, err = w.Start(context.Background(), req)
	require.Equal(t, ErrBusy, err)

	job.Cancel()
	_, outcomes := collect(job)
	require.Len(t, outcomes, 1)
	require.False(t, w.Busy())
}

func TestStartValidatesRequest(t *testing.T) {
	w := NewWorker()

	_, err := w.Start(context.Background(), Request{URL: "ftp://example.com/a.zip", Destination: "/tmp/x"})
	require.Error(t, err)

	_, err = w.Start(context.Background(), Request{URL: "https://example.com/a.zip"})
	require.Error(t, err)

	require.False(t, w.Busy())
}

func TestCanceledContextStopsJob(t *testing.T) {
	srv := httptest.NewServer(serveBytes([]byte("data"), true))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWorker(WithTempDir(t.TempDir()))
	job, err := w.Start(ctx, Request{URL: srv.URL + "/a.exe", FileType: "exe", Destination: t.TempDir()})
	require.NoError(t, err)

	outcome := job.Wait()
	require.False(t, outcome.Success)
	require.True(t, errors.Is(outcome.Err, ErrCanceled))
}

type recordingObserver struct {
	percents []int
	finished []string
}

func (r *recordingObserver) OnProgress(percent int, sizeText, speedText string) {
	r.percents = append(r.percents, percent)
}

func (r *recordingObserver) OnFinished(success bool, message string) {
	r.finished = append(r.finished, message)
}

func TestDrainForwardsToObserver(t *testing.T) {
	body := bytes.Repeat([]byte("b"), 32*1024)
	srv := httptest.NewServer(serveBytes(body, true))
	defer srv.Close()

	w := NewWorker(WithTempDir(t.TempDir()))
	job, err := w.Start(context.Background(), Request{URL: srv.URL + "/x.bin", FileType: "bin", Destination: t.TempDir()})
	require.NoError(t, err)

	obs := &recordingObserver{}
	outcome := Drain(job, obs)
	require.True(t, outcome.Success)
	require.Equal(t, []string{"Update completed successfully!"}, obs.finished)
	require.NotEmpty(t, obs.percents)
	require.Equal(t, 100, obs.percents[len(obs.percents)-1])
}

func TestProgressMeter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	m := newProgressMeter(4*bytesPerMB, 100*time.Millisecond, clock)
	require.True(t, m.due())

	p := m.snapshot()
	require.Equal(t, 0, p.Percent)
	require.Equal(t, "0.00 MB/s", p.SpeedText)
	require.False(t, m.due())

	m.add(bytesPerMB)
	now = now.Add(50 * time.Millisecond)
	require.False(t, m.due())
	require.Equal(t, 50*time.Millisecond, m.wait())

	now = now.Add(450 * time.Millisecond)
	require.True(t, m.due())
	p = m.snapshot()
	require.Equal(t, 25, p.Percent)
	require.Equal(t, "1.00 / 4.00 MB", p.SizeText)
	require.Equal(t, "2.00 MB/s", p.SpeedText)

	unknown := newProgressMeter(-1, time.Second, clock)
	unknown.add(10)
	p = unknown.snapshot()
	require.Equal(t, 0, p.Percent)
	require.Equal(t, "Unknown size", p.SizeText)
}

func TestCheckFreeSpace(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	entry := logrus.NewEntry(log)

	w := NewWorker(WithTempDir(t.TempDir()))
	require.NoError(t, w.checkFreeSpace(entry, 1024))
	require.Error(t, w.checkFreeSpace(entry, math.MaxInt64))

	missing := NewWorker(WithTempDir(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, missing.checkFreeSpace(entry, 1024))
	require.NotNil(t, hook.LastEntry())
	require.Equal(t, "Skipping free space check", hook.LastEntry().Message)
	require.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
}
