// Package session keeps a source text, its graph and a VM in step the way
// an editor host does: text edits re-parse, graph edits re-serialize, and a
// debugged program advances one node per tick.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lukechampine.com/blake3"

	"nodlang/pkg/compiler"
	"nodlang/pkg/ctxlog"
	"nodlang/pkg/graph"
	"nodlang/pkg/lang"
	"nodlang/pkg/nodlang"
	"nodlang/pkg/vm"
)

var ErrParseFailed = errors.New("source does not parse")

type Fingerprint [32]byte

func fingerprint(src string) Fingerprint { return blake3.Sum256([]byte(src)) }

type Session struct {
	log    *slog.Logger
	lang   *lang.Language
	parser *nodlang.Parser
	graph  *graph.Graph
	vm     *vm.VM

	source  string
	parsed  Fingerprint
	synced  bool
	lastErr error
}

type Option func(*settings)

type settings struct {
	strict   bool
	maxSteps int
}

// WithStrict is forwarded to the parser.
func WithStrict(strict bool) Option {
	return func(s *settings) { s.strict = strict }
}

// WithMaxSteps bounds Run.
func WithMaxSteps(n int) Option {
	return func(s *settings) { s.maxSteps = n }
}

// New returns an empty session. Its logger comes from ctx.
func New(ctx context.Context, opts ...Option) *Session {
	var st settings
	for _, opt := range opts {
		opt(&st)
	}
	log := ctxlog.FromContext(ctx)
	l := lang.New()
	return &Session{
		log:    log.With("component", "session"),
		lang:   l,
		parser: nodlang.New(l, nodlang.WithStrict(st.strict), nodlang.WithLogger(log)),
		graph:  graph.New(graph.WithLogger(log)),
		vm:     vm.New(vm.WithMaxSteps(st.maxSteps), vm.WithLogger(log)),
	}
}

func (s *Session) Graph() *graph.Graph      { return s.graph }
func (s *Session) VM() *vm.VM               { return s.vm }
func (s *Session) Language() *lang.Language { return s.lang }
func (s *Session) Parser() *nodlang.Parser  { return s.parser }
func (s *Session) Source() string           { return s.source }
func (s *Session) Fingerprint() Fingerprint { return fingerprint(s.source) }
func (s *Session) Err() error               { return s.lastErr }

// SetSource replaces the text. It is parsed on the next Tick.
func (s *Session) SetSource(src string) { s.source = src }

// Tick runs one host update.
func (s *Session) Tick(ctx context.Context) error {
	changed := s.graph.Update()

	switch fp := fingerprint(s.source); {
	case !s.synced || fp != s.parsed:
		s.vm.ReleaseProgram()
		s.parsed, s.synced = fp, true
		err := s.parser.Parse(ctx, s.source, s.graph)
		s.graph.Update()
		if err != nil {
			s.lastErr = fmt.Errorf("%w: %w", ErrParseFailed, err)
			return s.lastErr
		}
		s.lastErr = nil
		s.log.Debug("source parsed", "nodes", s.graph.NodeCount())

	case changed && s.lastErr == nil && !s.graph.IsEmpty():
		text, err := nodlang.Serialize(s.lang, s.graph)
		if err != nil {
			s.lastErr = fmt.Errorf("serialize graph: %w", err)
			return s.lastErr
		}
		s.source = text
		s.parsed = fingerprint(text)
		s.log.Debug("graph serialized", "bytes", len(text))
	}

	if s.vm.IsDebugging() {
		if _, err := s.vm.StepOver(); err != nil {
			return err
		}
	}
	return nil
}

// sync parses the current text when it has not been parsed yet.
func (s *Session) sync(ctx context.Context) error {
	if s.synced && fingerprint(s.source) == s.parsed {
		return s.lastErr
	}
	return s.Tick(ctx)
}

// Compile parses the text if needed and compiles the graph.
func (s *Session) Compile(ctx context.Context) (*compiler.Code, error) {
	if err := s.sync(ctx); err != nil {
		return nil, err
	}
	return compiler.Compile(ctx, s.graph)
}

func (s *Session) load(ctx context.Context) error {
	code, err := s.Compile(ctx)
	if err != nil {
		return err
	}
	s.vm.ReleaseProgram()
	return s.vm.LoadProgram(code)
}

// Run compiles and runs the whole program. Variables keep their final
// values until Reset.
func (s *Session) Run(ctx context.Context) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	return s.vm.RunProgram(ctx)
}

// Debug compiles the program and stops before its first node. Each Tick
// or StepOver then advances it.
func (s *Session) Debug(ctx context.Context) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	return s.vm.DebugProgram()
}

func (s *Session) StepOver() (bool, error) { return s.vm.StepOver() }

// Reset stops and unloads the program and restores the variables.
func (s *Session) Reset() { s.vm.ReleaseProgram() }
