// Package diagnostics writes per-request pipeline snapshots to disk for
// debugging extraction quality. Snapshots hold raw document text and are
// only written when explicitly enabled.
package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medextract/db"
	"medextract/logging"
	"medextract/pipeline"
)

// DefaultQueueSize bounds snapshots waiting to be written.
const DefaultQueueSize = 64

// stageFiles maps each checkpoint to its file name inside the request
// directory. The numeric prefix keeps a directory listing in flow order.
var stageFiles = map[pipeline.Stage]string{
	pipeline.StageRawText:          "01_raw_text.txt",
	pipeline.StageRedactedText:     "02_redacted_text.txt",
	pipeline.StageModelResponse:    "03_model_response.txt",
	pipeline.StageNormalizedRecord: "04_normalized_record.json",
}

type artifact struct {
	requestID string
	stage     pipeline.Stage
	data      []byte
}

// Sink implements pipeline.Checkpointer. Checkpoint only enqueues; a
// background writer creates <dir>/<request-id>/<stage file>. Snapshots
// that do not fit in the queue are dropped.
type Sink struct {
	dir    string
	writer *db.AsyncWriter[artifact]
	logger *logging.Logger
}

// NewSink creates dir if needed and starts the background writer.
func NewSink(dir string, queueSize int, logger *logging.Logger) (*Sink, error) {
	if dir == "" {
		return nil, errors.New("diagnostics directory is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create diagnostics directory %s: %w", dir, err)
	}

	s := &Sink{dir: dir, logger: logger.Named("diagnostics")}
	s.writer = db.NewAsyncWriter(s.write, db.AsyncWriterConfig{
		ChannelCapacity: queueSize,
		OnError: func(err error) {
			s.logger.Warn("Failed to write diagnostic snapshot", zap.Error(err))
		},
	})
	s.writer.Start()

	s.logger.Warn("Diagnostic snapshots enabled; files contain unredacted document text",
		zap.String("dir", dir))
	return s, nil
}

// Dir returns the root directory of the snapshots.
func (s *Sink) Dir() string {
	return s.dir
}

// Checkpoint queues a snapshot and returns immediately. data is copied.
func (s *Sink) Checkpoint(requestID string, stage pipeline.Stage, data []byte) {
	if _, ok := stageFiles[stage]; !ok {
		s.logger.Warn("Unknown checkpoint stage", zap.String("stage", string(stage)))
		return
	}
	// Request ids become directory names, so only accept real UUIDs.
	if _, err := uuid.Parse(requestID); err != nil {
		s.logger.Warn("Rejecting snapshot with invalid request id", zap.String("stage", string(stage)))
		return
	}

	a := artifact{requestID: requestID, stage: stage, data: append([]byte(nil), data...)}
	if !s.writer.Write(a) {
		s.logger.Warn("Diagnostic queue full, dropping snapshot",
			zap.String("request_id", requestID),
			zap.String("stage", string(stage)),
			zap.Int64("dropped_total", s.writer.Dropped()))
	}
}

// Path returns where the snapshot for requestID and stage is written.
func (s *Sink) Path(requestID string, stage pipeline.Stage) string {
	return filepath.Join(s.dir, requestID, stageFiles[stage])
}

func (s *Sink) write(a artifact) error {
	dir := filepath.Join(s.dir, a.requestID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	path := s.Path(a.requestID, a.stage)
	if err := os.WriteFile(path, a.data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.logger.Debug("Diagnostic snapshot written",
		zap.String("request_id", a.requestID),
		zap.String("stage", string(a.stage)),
		zap.Int("bytes", len(a.data)))
	return nil
}

// Close flushes queued snapshots, waiting at most db.DefaultDrainTimeout.
func (s *Sink) Close() {
	if !s.writer.StopWithTimeout(db.DefaultDrainTimeout) {
		s.logger.Warn("Timed out flushing diagnostic snapshots", zap.Int("pending", s.writer.Pending()))
	}
}
