package ferry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/meigma/ferry/internal/pool"
)

// JobState is the lifecycle state of a batch job.
type JobState string

// Job states. Done, Failed and Cancelled are terminal.
const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobDone      JobState = "done"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == JobDone || s == JobFailed || s == JobCancelled
}

// JobInfo is a snapshot of a batch job.
type JobInfo struct {
	ID               string
	Path             string
	State            JobState
	// Size is the file size on disk, known once the job starts.
	Size int64
	// BytesTransferred and TotalBytes count request body bytes, which
	// include the multipart framing around the file.
	BytesTransferred int64
	TotalBytes       int64
	Result           *UploadResult
	Err              error
}

// Percent returns the completed share of the job in the range [0, 100].
func (j JobInfo) Percent() float64 {
	if j.State == JobDone {
		return 100
	}
	return ProgressEvent{BytesTransferred: j.BytesTransferred, TotalBytes: j.TotalBytes}.Percent()
}

// Sink receives batch job updates. Methods are called from worker
// goroutines and must be safe for concurrent use.
type Sink interface {
	// Progress is called with a zero event when the job starts, then after
	// every uploaded chunk.
	Progress(job JobInfo, event ProgressEvent)
	// Finished is called exactly once per job when it reaches a terminal state.
	Finished(job JobInfo)
}

type nopSink struct{}

func (nopSink) Progress(JobInfo, ProgressEvent) {}
func (nopSink) Finished(JobInfo)                {}

// Summary counts the terminal states of a batch.
type Summary struct {
	Done      int
	Failed    int
	Cancelled int
	Jobs      []JobInfo
}

// OK reports whether every job finished successfully.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Cancelled == 0
}

type batchJob struct {
	info      JobInfo
	cancelled atomic.Bool
}

// Batch uploads many files concurrently on a fixed number of workers.
//
// Jobs start in the order they were added. A failed or cancelled job does
// not affect the others.
type Batch struct {
	uploader   uploader
	pool       *pool.Pool
	logger     *slog.Logger
	sink       Sink
	uploadOpts []UploadOption

	mu     sync.Mutex
	jobs   map[string]*batchJob
	order  []string
	closed bool

	wg sync.WaitGroup
}

// NewBatch creates a batch that runs uploads through client on the given
// number of workers. The workers start immediately.
func NewBatch(client *Client, workers int, opts ...BatchOption) (*Batch, error) {
	if client == nil {
		return nil, errors.New("ferry: nil client")
	}

	b := &Batch{
		uploader: client,
		logger:   slog.New(slog.DiscardHandler),
		sink:     nopSink{},
		jobs:     make(map[string]*batchJob),
	}
	for _, opt := range opts {
		opt(b)
	}

	p, err := pool.New(workers, pool.WithLogger(b.logger))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	b.pool = p
	b.pool.Start()

	return b, nil
}

// Add queues an upload of path and returns the job ID.
func (b *Batch) Add(path string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", ErrBatchClosed
	}

	job := &batchJob{info: JobInfo{
		ID:    uuid.NewString(),
		Path:  path,
		State: JobPending,
	}}

	b.wg.Add(1)
	if err := b.pool.Submit(func() error { return b.run(job) }); err != nil {
		b.wg.Done()
		return "", fmt.Errorf("queue %s: %w", path, err)
	}

	b.jobs[job.info.ID] = job
	b.order = append(b.order, job.info.ID)
	b.logger.Debug("job queued", "job_id", job.info.ID, "path", path)

	return job.info.ID, nil
}

// Cancel requests cancellation of a job. A queued job finishes as
// cancelled without touching the network; a running job is aborted at its
// next chunk boundary. Cancelling a finished job has no effect.
func (b *Batch) Cancel(id string) error {
	b.mu.Lock()
	job, ok := b.jobs[id]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	job.cancelled.Store(true)
	return nil
}

// CancelAll requests cancellation of every job in the batch.
func (b *Batch) CancelAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, job := range b.jobs {
		job.cancelled.Store(true)
	}
}

// Wait blocks until every added job is terminal or ctx is done. Jobs
// must not be added while Wait is blocked.
// The summary reflects the jobs' states at return. If ctx ends first, a
// helper goroutine stays blocked until the remaining jobs finish.
func (b *Batch) Wait(ctx context.Context) (Summary, error) {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return b.summary(), nil
	case <-ctx.Done():
		return b.summary(), ctx.Err()
	}
}

// Close rejects further jobs, waits for queued and running jobs to finish,
// and stops the workers.
func (b *Batch) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.pool.Stop()
	b.pool.Wait()
	return nil
}

// Job returns a snapshot of a single job.
func (b *Batch) Job(id string) (JobInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[id]
	if !ok {
		return JobInfo{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job.info, nil
}

// Jobs returns snapshots of all jobs in the order they were added.
func (b *Batch) Jobs() []JobInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]JobInfo, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.jobs[id].info)
	}
	return out
}

// Metrics returns the worker pool counters.
func (b *Batch) Metrics() map[string]int64 {
	return b.pool.Metrics().Snapshot()
}

func (b *Batch) run(job *batchJob) error {
	defer b.wg.Done()

	if job.cancelled.Load() {
		b.finish(job, nil, fmt.Errorf("%w: %w", ErrCancelled, ErrCancelRequested))
		return nil
	}

	var size int64
	if fi, err := os.Stat(job.info.Path); err == nil {
		size = fi.Size()
	}
	started := b.update(job, func(info *JobInfo) {
		info.State = JobRunning
		info.Size = size
	})
	b.logger.Debug("job started", "job_id", started.ID, "path", started.Path)
	b.sink.Progress(started, ProgressEvent{Path: started.Path})

	onProgress := func(ev ProgressEvent) error {
		if job.cancelled.Load() {
			return ErrCancelRequested
		}
		info := b.update(job, func(info *JobInfo) {
			info.BytesTransferred = ev.BytesTransferred
			info.TotalBytes = ev.TotalBytes
		})
		b.sink.Progress(info, ev)
		return nil
	}

	opts := append(append([]UploadOption{}, b.uploadOpts...), WithProgress(onProgress))
	// Jobs are only ever stopped through their progress callback.
	result, err := b.uploader.Upload(context.Background(), job.info.Path, opts...)
	if err == nil && result == nil {
		err = fmt.Errorf("upload %s: %w: no result", job.info.Path, ErrUnexpectedResponse)
	}
	state := b.finish(job, result, err)

	if state == JobFailed {
		return err
	}
	return nil
}

// finish records the terminal state of a job and notifies the sink.
func (b *Batch) finish(job *batchJob, result *UploadResult, err error) JobState {
	state := JobDone
	switch {
	case err == nil:
	case errors.Is(err, ErrCancelled):
		state = JobCancelled
	default:
		state = JobFailed
	}

	info := b.update(job, func(info *JobInfo) {
		info.State = state
		info.Result = result
		info.Err = err
	})

	switch state {
	case JobDone:
		b.logger.Info("upload done", "job_id", info.ID, "path", info.Path, "url", result.URL)
	case JobFailed:
		b.logger.Warn("upload failed", "job_id", info.ID, "path", info.Path, "error", err)
	case JobCancelled:
		b.logger.Info("upload cancelled", "job_id", info.ID, "path", info.Path)
	}

	b.sink.Finished(info)
	return state
}

func (b *Batch) update(job *batchJob, fn func(info *JobInfo)) JobInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&job.info)
	return job.info
}

func (b *Batch) summary() Summary {
	s := Summary{Jobs: b.Jobs()}
	for _, j := range s.Jobs {
		switch j.State {
		case JobDone:
			s.Done++
		case JobFailed:
			s.Failed++
		case JobCancelled:
			s.Cancelled++
		}
	}
	return s
}
