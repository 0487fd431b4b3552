package quality

import (
	"fmt"
	"sort"
	"sync"

	"venue-discovery/internal/constants"
	"venue-discovery/internal/models"
	"venue-discovery/internal/validation"
	"venue-discovery/pkg/cache"
	errs "venue-discovery/pkg/errors"
	"venue-discovery/pkg/logging"
	"venue-discovery/pkg/metrics"
)

// Tier buckets venues by score.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// TierFor maps a 0..100 score to its tier.
func TierFor(score float64) Tier {
	switch {
	case score >= constants.QualityHighTier:
		return TierHigh
	case score >= constants.QualityMediumTier:
		return TierMedium
	default:
		return TierLow
	}
}

type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type ScoreResult struct {
	Score     float64            `json:"score"`
	Breakdown map[string]float64 `json:"breakdown"`
	Tier      Tier               `json:"tier"`
}

// Evaluation is the cached outcome for one venue.
type Evaluation struct {
	Validation ValidationResult `json:"validation"`
	Score      ScoreResult      `json:"score"`
}

type BatchStats struct {
	Total        int     `json:"total"`
	ValidCount   int     `json:"valid_count"`
	InvalidCount int     `json:"invalid_count"`
	MeanScore    float64 `json:"mean_score"`
}

type BatchResult struct {
	Valid         []*models.Venue
	Invalid       []*models.Venue
	HighQuality   []*models.Venue
	MediumQuality []*models.Venue
	LowQuality    []*models.Venue
	Scores        map[string]float64 // by venue ID; 0 for invalid
	Errors        map[string][]string
	Stats         BatchStats
}

type Options struct {
	StrictMode bool

	// Cache, when set, memoizes evaluations by venue ID until ClearCache.
	Cache  *cache.Cache[Evaluation]
	Logger *logging.ComponentLogger
}

// Controller validates and scores venues with pluggable rules.
type Controller struct {
	mu         sync.RWMutex
	validators []Validator
	scorers    []Scorer
	strict     bool
	cache      *cache.Cache[Evaluation]
	log        *logging.ComponentLogger

	mValid   *metrics.Counter
	mInvalid *metrics.Counter
	mPanics  *metrics.Counter
}

func NewController(opts Options) *Controller {
	c := &Controller{
		validators: DefaultValidators(),
		scorers:    DefaultScorers(),
		strict:     opts.StrictMode,
		cache:      opts.Cache,
		log:        opts.Logger,
		mValid:     metrics.Default.Counter("quality_valid_total", "Venues that passed validation"),
		mInvalid:   metrics.Default.Counter("quality_invalid_total", "Venues that failed validation"),
		mPanics:    metrics.Default.Counter("quality_panics_total", "Validator or scorer panics recovered"),
	}
	if opts.StrictMode {
		c.validators = append(c.validators, BusinessNameValidator())
	}
	return c
}

// RegisterValidator adds a validator; a validator with the same name is replaced.
func (c *Controller) RegisterValidator(v Validator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.validators {
		if c.validators[i].Name == v.Name {
			c.validators[i] = v
			return
		}
	}
	c.validators = append(c.validators, v)
}

// RegisterScorer adds a scorer; a scorer with the same name is replaced.
func (c *Controller) RegisterScorer(s Scorer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.scorers {
		if c.scorers[i].Name == s.Name {
			c.scorers[i] = s
			return
		}
	}
	c.scorers = append(c.scorers, s)
}

// Validate runs every validator and collects all failures. Contact field
// problems are reported as warnings.
func (c *Controller) Validate(v *models.Venue) ValidationResult {
	c.mu.RLock()
	vals := c.validators
	c.mu.RUnlock()

	res := ValidationResult{Valid: true}
	if v == nil {
		res.Valid = false
		res.Errors = append(res.Errors, "nil venue")
		return res
	}
	for _, val := range vals {
		if err := val.Check(v); err != nil {
			res.Valid = false
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", val.Name, err))
		}
	}
	fields := validation.ValidateVenueFields(v)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		res.Warnings = append(res.Warnings, fields[k])
	}
	return res
}

// Score sums every scorer and clamps the total to [0,100].
func (c *Controller) Score(v *models.Venue) ScoreResult {
	c.mu.RLock()
	scs := c.scorers
	c.mu.RUnlock()

	res := ScoreResult{Breakdown: make(map[string]float64, len(scs))}
	total := 0.0
	for _, s := range scs {
		pts := s.Score(v)
		res.Breakdown[s.Name] = pts
		total += pts
	}
	res.Score = models.Clamp(total, 0, 100)
	res.Tier = TierFor(res.Score)
	return res
}

// Apply sets the signals the controller can observe on v and recomputes
// its confidence score.
func (c *Controller) Apply(v *models.Venue) {
	nameOK := validation.ValidateName(v.Name) == nil
	if nameOK && c.strict {
		nameOK = validation.LooksLikeBusinessName(v.Name) == nil
	}
	fieldsOK := len(validation.ValidateVenueFields(v)) == 0
	v.UpdateSignals(func(qs *models.QualitySignals) {
		qs.PassesNameValidation = nameOK
		qs.HasRealLocation = hasRealLocation(v)
		if v.HasBusinessInfo() && fieldsOK {
			qs.HasValidBusinessInfo = true
		}
		if distinctSources(v) > 1 {
			qs.CrossSourceVerified = true
		}
		if v.RatingCount > 0 {
			qs.HasUserRatings = true
		}
	})
}

// Evaluate validates and scores v, consulting the cache when configured.
// A panicking validator or scorer yields an invalid result with score 0.
func (c *Controller) Evaluate(v *models.Venue) (ev Evaluation, err error) {
	if v != nil && c.cache != nil {
		if cached, ok := c.cache.Get(v.ID); ok {
			return cached, nil
		}
	}
	defer func() {
		if r := recover(); r != nil {
			c.mPanics.Inc(1)
			err = errs.NewBiz("quality.Evaluate", fmt.Sprintf("panic evaluating venue: %v", r), nil)
			ev = Evaluation{
				Validation: ValidationResult{Valid: false, Errors: []string{err.Error()}},
				Score:      ScoreResult{Breakdown: map[string]float64{}, Tier: TierLow},
			}
		}
	}()

	ev.Validation = c.Validate(v)
	if ev.Validation.Valid {
		ev.Score = c.Score(v)
	} else {
		ev.Score = ScoreResult{Breakdown: map[string]float64{}, Tier: TierLow}
	}
	if c.cache != nil {
		c.cache.Set(v.ID, ev, cache.SetOptions{Tags: []string{string(v.Category)}})
	}
	return ev, nil
}

// ProcessBatch evaluates every venue. Valid venues get Apply'd and bucketed
// by tier; failures never abort the batch.
func (c *Controller) ProcessBatch(venues []*models.Venue) BatchResult {
	res := BatchResult{
		Valid:         []*models.Venue{},
		Invalid:       []*models.Venue{},
		HighQuality:   []*models.Venue{},
		MediumQuality: []*models.Venue{},
		LowQuality:    []*models.Venue{},
		Scores:        make(map[string]float64, len(venues)),
		Errors:        map[string][]string{},
	}
	sum := 0.0
	for _, v := range venues {
		if v == nil {
			continue
		}
		res.Stats.Total++
		ev, err := c.Evaluate(v)
		if err != nil {
			c.log.Warn("venue evaluation failed", logging.String("venue", v.Name), logging.Error(err))
		}
		if !ev.Validation.Valid {
			res.Invalid = append(res.Invalid, v)
			res.Scores[v.ID] = 0
			res.Errors[v.ID] = ev.Validation.Errors
			c.mInvalid.Inc(1)
			continue
		}
		if err := c.safeApply(v); err != nil {
			res.Invalid = append(res.Invalid, v)
			res.Scores[v.ID] = 0
			res.Errors[v.ID] = []string{err.Error()}
			c.mInvalid.Inc(1)
			continue
		}
		c.mValid.Inc(1)
		res.Valid = append(res.Valid, v)
		res.Scores[v.ID] = ev.Score.Score
		sum += ev.Score.Score
		if v.Metadata == nil {
			v.Metadata = map[string]any{}
		}
		v.Metadata["quality_score"] = ev.Score.Score
		v.Metadata["quality_tier"] = string(ev.Score.Tier)
		switch ev.Score.Tier {
		case TierHigh:
			res.HighQuality = append(res.HighQuality, v)
		case TierMedium:
			res.MediumQuality = append(res.MediumQuality, v)
		default:
			res.LowQuality = append(res.LowQuality, v)
		}
	}
	res.Stats.ValidCount = len(res.Valid)
	res.Stats.InvalidCount = len(res.Invalid)
	if res.Stats.Total > 0 {
		res.Stats.MeanScore = sum / float64(res.Stats.Total)
	}
	c.log.Debug("quality batch processed",
		logging.Int("total", res.Stats.Total),
		logging.Int("valid", res.Stats.ValidCount),
		logging.Float64("mean_score", res.Stats.MeanScore))
	return res
}

func (c *Controller) safeApply(v *models.Venue) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.mPanics.Inc(1)
			err = errs.NewBiz("quality.Apply", fmt.Sprintf("panic applying signals: %v", r), nil)
		}
	}()
	c.Apply(v)
	return nil
}

// ClearCache drops memoized evaluations.
func (c *Controller) ClearCache() {
	if c.cache != nil {
		c.cache.Clear()
	}
}
