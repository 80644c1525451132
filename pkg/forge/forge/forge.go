// Package forge is the embedding API for the forge expression evaluator.
//
//	s, err := forge.New(inst, forge.WithCacheCapacity(500))
//	res := s.Evaluate("{a, b: Int | a < b}")
//	if res.IsError() {
//		return res.Err()
//	}
//	fmt.Println(res.Value())
//
// A Session owns one evaluator per instance, so repeated queries against the
// same instance reuse memoized subresults. Sessions are safe for concurrent
// use.
package forge

import (
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/sambeau/forgeval/pkg/forge/ast"
	"github.com/sambeau/forgeval/pkg/forge/evaluator"
	"github.com/sambeau/forgeval/pkg/forge/instance"
	"github.com/sambeau/forgeval/pkg/forge/parser"
	"github.com/sambeau/forgeval/pkg/forge/rewrite"
)

// Lifetime controls how long an evaluator, and so its cache, lives.
type Lifetime int

const (
	// PerInstance keeps one evaluator until the instance changes.
	PerInstance Lifetime = iota
	// PerExpression starts every evaluation with an empty cache.
	PerExpression
)

// ParseLifetime reads "instance" or "expression". The empty string is
// PerInstance.
func ParseLifetime(s string) (Lifetime, error) {
	switch strings.ToLower(s) {
	case "", "instance":
		return PerInstance, nil
	case "expression":
		return PerExpression, nil
	}
	return PerInstance, errors.Errorf("unknown cache lifetime %q (use instance or expression)", s)
}

func (l Lifetime) String() string {
	if l == PerExpression {
		return "expression"
	}
	return "instance"
}

// parsedCacheSize bounds how many parsed expressions a session keeps.
const parsedCacheSize = 256

// Session evaluates expressions against one instance at a time.
type Session struct {
	mu sync.Mutex

	inst instance.DataInstance
	eval *evaluator.Evaluator

	capacity int
	rewrite  bool
	lifetime Lifetime
	logger   Logger
	level    Level

	// parsed maps source text to its AST. Reusing the AST lets the
	// evaluator's per-node cache hit when the same text is evaluated again.
	parsed *lru.Cache
}

// Option configures a Session.
type Option func(*Session)

// WithCacheCapacity sets the evaluator's memoization capacity. Zero
// disables memoization.
func WithCacheCapacity(n int) Option {
	return func(s *Session) {
		s.capacity = n
	}
}

// WithRewriter enables syntactic rewriting of two-variable comprehensions
// before evaluation.
func WithRewriter(enabled bool) Option {
	return func(s *Session) {
		s.rewrite = enabled
	}
}

// WithLifetime sets the evaluator lifetime. The default is PerInstance.
func WithLifetime(l Lifetime) Option {
	return func(s *Session) {
		s.lifetime = l
	}
}

// WithLogger sets where session diagnostics go. The default discards them.
func WithLogger(l Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithLogLevel drops messages below level. The default is LevelInfo.
func WithLogLevel(level Level) Option {
	return func(s *Session) {
		s.level = level
	}
}

// New creates a session over inst.
func New(inst instance.DataInstance, opts ...Option) (*Session, error) {
	if inst == nil {
		return nil, errors.New("forge: nil instance")
	}

	s := &Session{
		inst:     inst,
		capacity: evaluator.DefaultCacheCapacity,
		lifetime: PerInstance,
		logger:   NullLogger(),
		level:    LevelInfo,
	}
	for _, opt := range opts {
		opt(s)
	}

	parsed, err := lru.New(parsedCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "creating parse cache")
	}
	s.parsed = parsed
	s.eval = s.newEvaluator()
	return s, nil
}

func (s *Session) newEvaluator() *evaluator.Evaluator {
	return evaluator.New(s.inst, evaluator.WithCacheCapacity(s.capacity))
}

func (s *Session) logf(level Level, format string, args ...any) {
	if level < s.level {
		return
	}
	s.logger.LogLine(fmt.Sprintf(format, args...))
}

// Evaluate parses and evaluates src. Failures are reported through the
// Result, never as a panic or a separate error.
func (s *Session) Evaluate(src string) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := src
	if s.rewrite {
		if r := rewrite.Rewrite(src, s.inst); r.Rewritten {
			s.logf(LevelDebug, "[REWRITE] %s: %s => %s", r.Pattern, src, r.Expression)
			text = r.Expression
		}
	}

	expr, err := s.parse(text)
	if err != nil {
		return &Result{expression: src, err: &evaluator.ExpressionError{Expression: src, Parse: true, Err: err}}
	}

	ev := s.eval
	if s.lifetime == PerExpression {
		ev = s.newEvaluator()
	}
	val, err := ev.Evaluate(expr)
	if err != nil {
		return &Result{expression: src, err: &evaluator.ExpressionError{Expression: src, Err: err}}
	}
	return &Result{expression: src, value: val}
}

// Parse returns the AST for src, from the session's parse cache when src
// has been seen before.
func (s *Session) Parse(src string) (ast.Expression, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parse(src)
}

func (s *Session) parse(src string) (ast.Expression, error) {
	if v, ok := s.parsed.Get(src); ok {
		return v.(ast.Expression), nil
	}
	expr, err := parser.ParseExpression(src)
	if err != nil {
		return nil, err
	}
	s.parsed.Add(src, expr)
	return expr, nil
}

// SetInstance switches the session to inst and drops every cached result.
func (s *Session) SetInstance(inst instance.DataInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inst = inst
	s.eval = s.newEvaluator()
	s.logf(LevelInfo, "[RELOAD] instance replaced: %d types, %d relations, %d atoms",
		len(inst.Types()), len(inst.Relations()), len(inst.Atoms()))
}

// Instance returns the current instance.
func (s *Session) Instance() instance.DataInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inst
}

// Stats reports the memoization counters of the current evaluator. Under
// PerExpression they stay at zero.
func (s *Session) Stats() evaluator.CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eval.Stats()
}

// ResetCache drops memoized results while keeping the instance.
func (s *Session) ResetCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eval.Reset()
	s.logf(LevelDebug, "[CACHE] cleared")
}

// Rewriting reports whether the rewriter is enabled.
func (s *Session) Rewriting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewrite
}

// Lifetime returns the session's evaluator lifetime.
func (s *Session) Lifetime() Lifetime {
	return s.lifetime
}
