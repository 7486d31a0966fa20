package docdedup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Job performs the expensive work behind a cache miss and returns the path
// of the artifact it produced.
type Job interface {
	Run(ctx context.Context, req Request, key CacheKey) (string, error)
}

// JobFunc adapts a function to the Job interface.
type JobFunc func(ctx context.Context, req Request, key CacheKey) (string, error)

// Run calls f.
func (f JobFunc) Run(ctx context.Context, req Request, key CacheKey) (string, error) {
	return f(ctx, req, key)
}

// DocumentJob translates a text or file input with a SegmentTranslator and
// writes the result into an output directory.
type DocumentJob struct {
	translator *SegmentTranslator
	outputDir  string
	log        logrus.FieldLogger
}

// JobOption configures a DocumentJob.
type JobOption func(*DocumentJob)

// WithJobLogger sets the logger for a DocumentJob.
func WithJobLogger(log logrus.FieldLogger) JobOption {
	return func(j *DocumentJob) {
		j.log = log
	}
}

// NewDocumentJob creates a DocumentJob writing into outputDir.
func NewDocumentJob(translator *SegmentTranslator, outputDir string, opts ...JobOption) *DocumentJob {
	j := &DocumentJob{
		translator: translator,
		outputDir:  outputDir,
		log:        logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(j)
	}

	return j
}

// NewRequest builds the Request for input. Its ServiceID is the translator
// scope for the content type Run will use, so every setting that changes the
// output also changes the key.
func (j *DocumentJob) NewRequest(mode Mode, input, sourceLang, targetLang string) Request {
	return Request{
		Mode:       mode,
		Input:      input,
		ServiceID:  j.translator.Scope(j.contentType(mode, input)),
		SourceLang: sourceLang,
		TargetLang: targetLang,
	}
}

// contentType picks the processor for an input: by extension for files,
// falling back to text when no processor handles the type.
func (j *DocumentJob) contentType(mode Mode, input string) string {
	contentType := ContentText
	if mode == ModeFile {
		contentType = contentTypeFor(input)
	}
	if !j.translator.HasProcessor(contentType) {
		contentType = ContentText
	}
	return contentType
}

// Run implements Job.
func (j *DocumentJob) Run(ctx context.Context, req Request, key CacheKey) (string, error) {
	jobID := uuid.NewString()
	log := j.log.WithFields(logrus.Fields{"job_id": jobID, "key": key.Short()})

	content, err := readInput(req)
	if err != nil {
		return "", err
	}
	contentType := j.contentType(req.Mode, req.Input)

	log.WithField("content_type", contentType).Info("starting translation job")

	res, err := j.translator.Translate(ctx, content, contentType, req.SourceLang, req.TargetLang)
	if err != nil {
		return "", err
	}
	if n := j.translator.SweepCache(); n > 0 {
		log.WithField("entries", n).Debug("swept expired segment cache entries")
	}

	path, err := j.writeOutput(key, jobID, contentType, res.Content)
	if err != nil {
		return "", err
	}

	log.WithFields(logrus.Fields{
		"path":       path,
		"segments":   res.TotalSegments,
		"translated": res.TranslatedCount,
		"cached":     res.CachedCount,
	}).Info("translation job finished")

	return path, nil
}

// writeOutput stores content under a unique name derived from key. The file
// only appears under its final name once fully written.
func (j *DocumentJob) writeOutput(key CacheKey, jobID, contentType, content string) (string, error) {
	dir, err := filepath.Abs(j.outputDir)
	if err != nil {
		return "", fmt.Errorf("resolving output directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	ext := ".txt"
	if contentType == ContentHTML {
		ext = ".html"
	}
	name := fmt.Sprintf("%s-%s%s", key.Short(), strings.SplitN(jobID, "-", 2)[0], ext)
	final := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, name+".partial-*")
	if err != nil {
		return "", fmt.Errorf("creating output file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing output file: %w", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("publishing output file: %w", err)
	}

	return final, nil
}

// readInput returns the content to translate.
func readInput(req Request) (string, error) {
	switch req.Mode {
	case ModeText:
		return req.Input, nil
	case ModeFile:
		data, err := os.ReadFile(filepath.Clean(req.Input))
		if err != nil {
			if os.IsNotExist(err) {
				return "", &NotFoundError{Path: req.Input, Cause: err}
			}
			return "", fmt.Errorf("reading input: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown request mode %q", req.Mode)
	}
}

// contentTypeFor picks a content type from a file extension.
func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return ContentHTML
	default:
		return ContentText
	}
}

// Verify DocumentJob implements Job
var _ Job = (*DocumentJob)(nil)
