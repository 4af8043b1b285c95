package detect

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"riskdash/internal/header"
	"riskdash/internal/schema"
)

// DefaultHeaderSampleSize bounds Diagnostics.HeaderSample.
const DefaultHeaderSampleSize = 10

// Engine scores files against a schema registry.
type Engine struct {
	registry   *schema.Registry
	logger     *slog.Logger
	sampleSize int
}

// NewEngine creates an engine over registry. A sampleSize of zero or less
// selects DefaultHeaderSampleSize.
func NewEngine(registry *schema.Registry, logger *slog.Logger, sampleSize int) *Engine {
	if sampleSize <= 0 {
		sampleSize = DefaultHeaderSampleSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry:   registry,
		logger:     logger.With(slog.String("component", "detect")),
		sampleSize: sampleSize,
	}
}

// Registry returns the registry the engine scores against.
func (e *Engine) Registry() *schema.Registry {
	return e.registry
}

// Evaluate scores one spec against a normalized header map.
func Evaluate(spec *schema.DatasetSpec, fileName string, headers *header.Map) Evaluation {
	ev := Evaluation{Spec: spec}

	for _, field := range spec.RequiredFields {
		aliases := spec.AliasFor(field)
		if alias, h, ok := headers.FirstMatch(aliases); ok {
			ev.Required = append(ev.Required, FieldMatch{Field: field, Alias: alias, Header: h})
			continue
		}
		ev.Missing = append(ev.Missing, MissingField{Field: field, Candidates: aliases})
	}

	for _, field := range spec.IdentifyingFields {
		if alias, h, ok := headers.FirstMatch(spec.AliasFor(field)); ok {
			ev.Optional = append(ev.Optional, FieldMatch{Field: field, Alias: alias, Header: h})
		}
	}

	ev.FilenameBonus = FilenameBonus(fileName, spec.FilenamePrefixes)
	ev.ScoreRequired = 5 * len(ev.Required)
	ev.ScoreOptional = len(ev.Optional)
	ev.TotalScore = ev.ScoreRequired + ev.ScoreOptional + ev.FilenameBonus
	return ev
}

// FilenameBonus returns 2 when the lowercased name starts with any prefix,
// 1 when it only contains one, and 0 otherwise.
func FilenameBonus(fileName string, prefixes []string) int {
	name := strings.ToLower(fileName)
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return 2
		}
	}
	for _, p := range prefixes {
		if strings.Contains(name, p) {
			return 1
		}
	}
	return 0
}

// Detect classifies a file from its name and raw header row.
func (e *Engine) Detect(ctx context.Context, fileName string, headers []string) Result {
	hmap := header.Normalize(headers)
	if collisions := hmap.Collisions(); collisions != nil {
		for tok, raw := range collisions {
			e.logger.WarnContext(ctx, "header token collision, first header wins",
				slog.String("file", fileName),
				slog.String("token", tok),
				slog.Any("headers", raw))
		}
	}

	specs := e.registry.Specs()
	evaluations := make([]Evaluation, 0, len(specs))
	for _, spec := range specs {
		evaluations = append(evaluations, Evaluate(spec, fileName, hmap))
	}

	var viable []Evaluation
	for _, ev := range evaluations {
		if ev.Viable() {
			viable = append(viable, ev)
		}
	}

	if len(viable) == 0 {
		return e.failure(ctx, fileName, evaluations)
	}

	sort.SliceStable(viable, func(i, j int) bool {
		a, b := viable[i], viable[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.ScoreRequired != b.ScoreRequired {
			return a.ScoreRequired > b.ScoreRequired
		}
		return a.ScoreOptional > b.ScoreOptional
	})
	best := viable[0]

	sample := headers
	if len(sample) > e.sampleSize {
		sample = sample[:e.sampleSize]
	}
	diag := &Diagnostics{
		DatasetKey:       best.Spec.Key,
		DisplayName:      best.Spec.DisplayName,
		MatchedRequired:  best.MatchedRequired(),
		MatchedOptional:  best.MatchedOptional(),
		FilenameBonus:    best.FilenameBonus,
		Score:            best.TotalScore,
		HeaderSample:     append([]string(nil), sample...),
		HeaderCollisions: hmap.Collisions(),
	}

	identifying := best.IdentifyingHeaders()
	if len(identifying) > 10 {
		identifying = identifying[:10]
	}
	e.logger.InfoContext(ctx, "dataset detected",
		slog.String("dataset", best.Spec.Key),
		slog.String("file", fileName),
		slog.Int("score", best.TotalScore),
		slog.Any("identifying_headers", identifying))

	return Result{
		Outcome:     OutcomeSuccess,
		FileName:    fileName,
		DatasetKey:  best.Spec.Key,
		Diagnostics: diag,
		Evaluations: evaluations,
	}
}

func (e *Engine) failure(ctx context.Context, fileName string, evaluations []Evaluation) Result {
	res := Result{Outcome: OutcomeFailure, FileName: fileName, Evaluations: evaluations}
	if len(evaluations) == 0 {
		res.Failure = &NoViableSchemaError{FileName: fileName}
		return res
	}

	best := 0
	for i := 1; i < len(evaluations); i++ {
		if evaluations[i].TotalScore > evaluations[best].TotalScore {
			best = i
		}
	}
	guess := evaluations[best]
	res.BestGuess = &guess
	res.Failure = &NoViableSchemaError{
		FileName:    fileName,
		DatasetKey:  guess.Spec.Key,
		DisplayName: guess.Spec.DisplayName,
		Missing:     guess.Missing,
	}

	e.logger.WarnContext(ctx, "no viable dataset schema",
		slog.String("file", fileName),
		slog.String("best_guess", guess.Spec.Key),
		slog.Int("score", guess.TotalScore))
	return res
}

// Classify is Detect returning the dataset key and diagnostics, or the
// detection error.
func (e *Engine) Classify(ctx context.Context, fileName string, headers []string) (string, *Diagnostics, error) {
	res := e.Detect(ctx, fileName, headers)
	if err := res.Err(); err != nil {
		return "", nil, err
	}
	return res.DatasetKey, res.Diagnostics, nil
}
