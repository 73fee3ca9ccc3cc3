package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/picogrid/scenario-config/pkg/logger"
)

// DefaultMaxInputSize bounds the bytes read from one source
const DefaultMaxInputSize int64 = 8 << 20

// Stage is a step of the load state machine
type Stage int

const (
	StageUnloaded Stage = iota
	StageParsed
	StageValidated
	StageReady
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageUnloaded:
		return "unloaded"
	case StageParsed:
		return "parsed"
	case StageValidated:
		return "validated"
	case StageReady:
		return "ready"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailedStage reports which transition a load error came from:
// StageUnloaded for read failures, StageParsed for syntax errors and
// StageValidated for validation errors.
func FailedStage(err error) Stage {
	switch {
	case err == nil:
		return StageReady
	case errors.Is(err, ErrSyntax):
		return StageParsed
	case errors.Is(err, ErrValidation):
		return StageValidated
	default:
		return StageUnloaded
	}
}

// Loader parses and validates scenario documents
type Loader struct {
	validate ValidateOptions
	maxSize  int64
	log      logger.Logger
}

// Option configures a Loader
type Option func(*Loader)

// WithStrict rejects unknown fields
func WithStrict(strict bool) Option {
	return func(l *Loader) { l.validate.Strict = strict }
}

// WithEpsStepPolicy sets how eps_step > eps is reported
func WithEpsStepPolicy(p EpsStepPolicy) Option {
	return func(l *Loader) { l.validate.EpsStep = p }
}

// WithMaxInputSize bounds the document size; values <= 0 keep the default
func WithMaxInputSize(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxSize = n
		}
	}
}

// WithLogger routes load diagnostics to log
func WithLogger(log logger.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithMetricTasks replaces the recognised metric task tags
func WithMetricTasks(r *TagRegistry) Option {
	return func(l *Loader) { l.validate.MetricTasks = r }
}

// WithPerturbations replaces the recognised perturbation norms
func WithPerturbations(r *TagRegistry) Option {
	return func(l *Loader) { l.validate.Perturbations = r }
}

// NewLoader creates a loader with the given options
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		maxSize: DefaultMaxInputSize,
		log:     logger.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile loads a scenario from path. The format follows the file extension.
func (l *Loader) LoadFile(path string) (*ScenarioConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &MissingResourceError{Source: path, Err: err}
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.IsDir() {
		return nil, &MissingResourceError{Source: path, Err: errors.New("is a directory")}
	}

	data, err := l.read(f, path)
	if err != nil {
		return nil, err
	}
	return l.process(data, path, FormatFromPath(path))
}

// LoadReader loads a scenario from r
func (l *Loader) LoadReader(r io.Reader, format Format) (*ScenarioConfig, error) {
	data, err := l.read(r, "<reader>")
	if err != nil {
		return nil, err
	}
	return l.process(data, "<reader>", format)
}

// LoadBytes loads a scenario from an in-memory document
func (l *Loader) LoadBytes(data []byte, format Format) (*ScenarioConfig, error) {
	if int64(len(data)) > l.maxSize {
		return nil, fmt.Errorf("<bytes>: %w (limit %d bytes)", ErrInputTooLarge, l.maxSize)
	}
	return l.process(data, "<bytes>", format)
}

func (l *Loader) read(r io.Reader, source string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxSize+1))
	if err != nil {
		return nil, &MissingResourceError{Source: source, Err: err}
	}
	if int64(len(data)) > l.maxSize {
		return nil, fmt.Errorf("%s: %w (limit %d bytes)", source, ErrInputTooLarge, l.maxSize)
	}
	return data, nil
}

func (l *Loader) process(data []byte, source string, format Format) (*ScenarioConfig, error) {
	log := l.log.WithField("source", source)
	log.Debugf("stage=%s format=%s bytes=%d", StageUnloaded, format, len(data))

	root, err := Parse(data, format)
	if err != nil {
		log.Debugf("stage=%s during parse", StageFailed)
		return nil, fmt.Errorf("error parsing %s: %w", source, err)
	}
	log.Debugf("stage=%s", StageParsed)

	cfg, err := Validate(root, l.validate)
	if err != nil {
		log.Debugf("stage=%s during validation", StageFailed)
		return nil, fmt.Errorf("invalid scenario %s: %w", source, err)
	}
	log.Debugf("stage=%s", StageValidated)

	for _, w := range cfg.Warnings() {
		log.Warnf("%s", w)
	}
	log.Debugf("stage=%s digest=%s", StageReady, cfg.Digest())
	return cfg, nil
}

var defaultLoader = NewLoader()

// Load loads a scenario file with default options
func Load(path string) (*ScenarioConfig, error) {
	return defaultLoader.LoadFile(path)
}

// LoadBytes loads an in-memory scenario with default options
func LoadBytes(data []byte, format Format) (*ScenarioConfig, error) {
	return defaultLoader.LoadBytes(data, format)
}
