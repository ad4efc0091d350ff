// Package assistant answers natural-language questions about DataFrames.
//
// Chat validates the question, picks the frame it is about, translates it
// into an engine.QuerySpec (with a language model when one is reachable,
// otherwise with keyword heuristics), executes it locally and records the
// exchange in history. Only schema metadata and distinct dimension values
// are ever sent to a model; rows never leave the process.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/spektr-org/asktable/config"
	"github.com/spektr-org/asktable/engine"
	"github.com/spektr-org/asktable/frame"
	"github.com/spektr-org/asktable/history"
	"github.com/spektr-org/asktable/helpers"
	"github.com/spektr-org/asktable/llm"
	"github.com/spektr-org/asktable/query"
	"github.com/spektr-org/asktable/schema"
	"github.com/spektr-org/asktable/translator"
)

var (
	// ErrInvalidQuery wraps the validation errors of a rejected question.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrNoData is returned when Chat is called without a frame.
	ErrNoData = errors.New("no data loaded")
)

// Recorder stores answered questions. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) (history.Entry, error)
}

// Answer is the outcome of one Chat call.
type Answer struct {
	ID             string                `json:"id"`
	Question       string                `json:"question"`
	Dataset        string                `json:"dataset"`
	Backend        string                `json:"backend"`
	FellBack       bool                  `json:"fellBack"`
	Warnings       []string              `json:"warnings,omitempty"`
	Analysis       query.Analysis        `json:"analysis"`
	Interpretation engine.Interpretation `json:"interpretation"`
	QuerySpec      engine.QuerySpec      `json:"querySpec"`
	Result         *engine.Result        `json:"result"`
	Duration       time.Duration         `json:"duration"`
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLLM sets the language model used for translation.
func WithLLM(c llm.Client) Option {
	return func(a *Assistant) { a.client = c }
}

// WithHistory records every answer in r.
func WithHistory(r Recorder) Option {
	return func(a *Assistant) { a.history = r }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Assistant) { a.log = l }
}

// WithTranslator replaces the model translator. The heuristic translator
// still serves as the fallback when t fails.
func WithTranslator(t translator.Translator) Option {
	return func(a *Assistant) { a.translator = t }
}

// Assistant is safe for concurrent use.
type Assistant struct {
	mu         sync.RWMutex
	cfg        *config.Config
	client     llm.Client
	translator translator.Translator
	heuristic  *translator.Heuristic
	history    Recorder
	log        zerolog.Logger
}

// New creates an Assistant. A nil cfg means config.Default().
func New(cfg *config.Config, opts ...Option) *Assistant {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &Assistant{
		cfg:       cfg,
		heuristic: translator.NewHeuristic(),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetLLM swaps the language model. nil disables model translation.
func (a *Assistant) SetLLM(c llm.Client) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.client = c
}

// Config returns the active configuration.
func (a *Assistant) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// SetConfig applies overrides (dotted keys) and keeps the old config when
// the result does not validate.
func (a *Assistant) SetConfig(overrides map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cfg, err := a.cfg.With(overrides)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// ============================================================================
// CHAT
// ============================================================================

// Chat answers q using whichever of frames it mentions the most columns of.
func (a *Assistant) Chat(ctx context.Context, q string, frames ...*frame.DataFrame) (*Answer, error) {
	start := time.Now()
	if len(frames) == 0 {
		return nil, ErrNoData
	}

	a.mu.RLock()
	cfg, client, primary := a.cfg, a.client, a.translator
	a.mu.RUnlock()

	v := query.Validate(q, allColumns(frames))
	if !v.IsValid {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, v.Err())
	}

	df := PickFrame(q, frames)
	ans := &Answer{
		ID:       uuid.NewString(),
		Question: q,
		Dataset:  df.Name(),
		Warnings: v.Warnings,
	}
	if cfg.MaxRows > 0 && df.Len() > cfg.MaxRows {
		ans.Warnings = append(ans.Warnings, fmt.Sprintf("analyzing the first %d of %d rows", cfg.MaxRows, df.Len()))
		df = df.Head(cfg.MaxRows)
	}

	sch, err := schema.FromFrame(df)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", df.Name(), err)
	}
	ans.Analysis = query.Analyze(q, append(sch.DimensionKeys(), sch.MeasureKeys()...)...)
	summary := translator.BuildDataSummary(df, *sch, 0)

	log := a.log.With().Str("chat", ans.ID).Str("dataset", ans.Dataset).Logger()
	ctx = log.WithContext(ctx)

	if primary == nil && client != nil {
		if llm.IsAvailable(ctx, client) {
			primary = translator.NewLLM(client, log)
		} else {
			ans.FellBack = true
			ans.Warnings = append(ans.Warnings,
				fmt.Sprintf("%s model %s is not reachable; used heuristic translation", client.Name(), client.Model()))
		}
	}

	tr, err := a.translate(ctx, primary, translateTimeout(cfg), q, *sch, summary, ans)
	if err != nil {
		return nil, a.fail(ctx, ans, start, err)
	}

	opts := []engine.Option{
		engine.WithTemporalDimension(sch.TemporalDimension()),
		engine.WithDefaultMeasure(sch.GetDefaultMeasure()),
		engine.WithPalette(engine.Palette(cfg.PlotStyle)),
		engine.WithLogger(log),
	}

	ectx, cancel := context.WithTimeout(ctx, cfg.ExecutionTimeout())
	defer cancel()

	res, err := engine.ExecuteContext(ectx, tr.QuerySpec, df, opts...)
	if err != nil && ans.Backend != translator.HeuristicName && ectx.Err() == nil {
		// a model spec the engine rejects gets one heuristic retry
		ans.Warnings = append(ans.Warnings, fmt.Sprintf("%s query could not run (%v); used heuristic translation", ans.Backend, err))
		ans.FellBack = true
		if tr, err = a.runHeuristic(ectx, q, *sch, summary, ans); err == nil {
			res, err = engine.ExecuteContext(ectx, tr.QuerySpec, df, opts...)
		}
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("query exceeded max execution time of %s: %w", cfg.ExecutionTimeout(), err)
		}
		if tr != nil {
			ans.QuerySpec = tr.QuerySpec
		}
		return nil, a.fail(ctx, ans, start, err)
	}

	ans.QuerySpec = tr.QuerySpec
	ans.Interpretation = tr.Interpretation
	ans.Result = res
	ans.Duration = time.Since(start)

	log.Info().
		Str("backend", ans.Backend).
		Bool("fell_back", ans.FellBack).
		Str("type", res.Type).
		Int("rows_matched", res.RowsMatched).
		Dur("duration", ans.Duration).
		Msg("answered")

	a.record(ctx, ans, nil)
	return ans, nil
}

// translateTimeout bounds a model translation by both the model timeout
// and the execution budget.
func translateTimeout(cfg *config.Config) time.Duration {
	d := cfg.ExecutionTimeout()
	if t := cfg.LLMConfig().Timeout; t > 0 && t < d {
		d = t
	}
	return d
}

// translate tries primary first, under its own timeout, and falls back to
// the heuristic translator on any error. Only cancellation of ctx itself is
// returned.
func (a *Assistant) translate(ctx context.Context, primary translator.Translator, timeout time.Duration, q string, sch schema.Config, summary *translator.DataSummary, ans *Answer) (*translator.TranslateResult, error) {
	if primary != nil {
		tctx, cancel := context.WithTimeout(ctx, timeout)
		res, err := primary.Translate(tctx, q, sch, summary)
		cancel()
		if err == nil {
			ans.Backend = primary.Name()
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("no reply within %s", timeout)
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("backend", primary.Name()).Msg("translation failed, using heuristic")
		ans.FellBack = true
		ans.Warnings = append(ans.Warnings, fmt.Sprintf("%s translation failed (%v); used heuristic translation", primary.Name(), err))
	}
	return a.runHeuristic(ctx, q, sch, summary, ans)
}

func (a *Assistant) runHeuristic(ctx context.Context, q string, sch schema.Config, summary *translator.DataSummary, ans *Answer) (*translator.TranslateResult, error) {
	ans.Backend = a.heuristic.Name()
	return a.heuristic.Translate(ctx, q, sch, summary)
}

func (a *Assistant) fail(ctx context.Context, ans *Answer, start time.Time, err error) error {
	ans.Duration = time.Since(start)
	zerolog.Ctx(ctx).Error().Err(err).Str("question", helpers.Truncate(ans.Question, 80)).Msg("chat failed")
	a.record(ctx, ans, err)
	return err
}

// record writes ans to history. Failures are logged, never returned.
func (a *Assistant) record(ctx context.Context, ans *Answer, chatErr error) {
	if a.history == nil {
		return
	}
	e := history.Entry{
		ID:       ans.ID,
		Question: ans.Question,
		Dataset:  ans.Dataset,
		Backend:  ans.Backend,
		Intent:   ans.QuerySpec.Intent,
		Duration: ans.Duration,
	}
	if ans.QuerySpec.Intent != "" || ans.QuerySpec.Aggregation != "" {
		spec := ans.QuerySpec
		e.QuerySpec = &spec
	}
	switch {
	case chatErr != nil:
		e.Error = chatErr.Error()
	case ans.Result != nil:
		e.Reply = ans.Result.Reply
		e.Success = ans.Result.Success
		e.Error = strings.Join(ans.Result.Errors, "; ")
	}

	// history must survive a chat that ran out of time
	if _, err := a.history.Record(context.WithoutCancel(ctx), e); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to record history")
	}
}

// ============================================================================
// FRAME SELECTION
// ============================================================================

// PickFrame returns the frame whose columns q mentions most. Ties, and a
// question naming no column at all, go to the earliest frame.
func PickFrame(q string, frames []*frame.DataFrame) *frame.DataFrame {
	best, bestN := frames[0], -1
	for _, df := range frames {
		if n := len(query.MentionedColumns(q, df.Columns())); n > bestN {
			best, bestN = df, n
		}
	}
	return best
}

func allColumns(frames []*frame.DataFrame) []string {
	var cols []string
	for _, df := range frames {
		cols = append(cols, df.Columns()...)
	}
	return cols
}
