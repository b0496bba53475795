package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

const defaultFilePath = "./jobsys.log"

// Service owns the live sinks. Loggers derived from it pick up every Apply.
type Service struct {
	mu   sync.Mutex
	cfg  Config
	file *os.File
	path string

	root atomic.Pointer[zerolog.Logger]
}

// New builds the service from cfg and returns it with its root Logger.
func New(cfg Config) (*Service, Logger) {
	initGlobals()
	s := &Service{}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// Level returns the level currently applied.
func (s *Service) Level() Level {
	zl := s.current()
	return zl.GetLevel()
}

// Apply swaps sinks and level. The log file is reopened only when its path or
// enabled flag changes, and a replaced file is closed after the new root is live.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg

	var stale *os.File
	wantPath := ""
	if cfg.File.Enabled {
		wantPath = strings.TrimSpace(cfg.File.Path)
		if wantPath == "" {
			wantPath = defaultFilePath
		}
	}
	if wantPath != s.path {
		stale, s.file, s.path = s.file, nil, ""
		if wantPath != "" {
			f, err := os.OpenFile(wantPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				fmt.Fprintf(os.Stderr, "logx: failed opening log file %q: %v\n", wantPath, err)
			} else {
				s.file, s.path = f, wantPath
			}
		}
	}

	writers := make([]io.Writer, 0, 2)
	if cfg.Console {
		writers = append(writers, newConsoleWriter(os.Stdout))
	}
	if s.file != nil {
		writers = append(writers, zerolog.SyncWriter(s.file))
	}
	if len(writers) == 0 {
		writers = append(writers, newConsoleWriter(os.Stdout))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
	s.root.Store(&zl)

	if stale != nil {
		_ = stale.Close()
	}
}

// Close releases the log file. Later lines go to stdout only.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.file
	s.file, s.path = nil, ""

	zl := zerolog.New(newConsoleWriter(os.Stdout)).
		Level(parseLevel(s.cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
	s.root.Store(&zl)

	if f != nil {
		return f.Close()
	}
	return nil
}

func newConsoleWriter(w io.Writer) io.Writer {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	// Caller is already file:line.
	cw.FormatCaller = func(i any) string {
		s, _ := i.(string)
		return s
	}
	return cw
}
