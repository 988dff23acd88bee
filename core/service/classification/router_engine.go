package classification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"query_router/core/domain"
	"query_router/core/port/out"
	"query_router/pkg/logger"
)

// LearnedSource supplies learned keywords and team overrides.
type LearnedSource interface {
	GetLearnedKeywordsForIntent(ctx context.Context, intent domain.Intent) ([]string, error)
	GetLearnedTeamForIntent(ctx context.Context, intent domain.Intent) (string, bool, error)
}

// Config tunes the engine.
type Config struct {
	AITimeout time.Duration
	CacheTTL  time.Duration
}

// DefaultConfig returns the default engine config.
func DefaultConfig() Config {
	return Config{
		AITimeout: 15 * time.Second,
		CacheTTL:  30 * time.Minute,
	}
}

// Engine classifies messages. The AI classifier, cache and learned source
// are all optional.
type Engine struct {
	rules    *Ruleset
	fallback *FallbackClassifier
	ai       out.AIClassifier
	cache    out.ClassificationCache
	learned  LearnedSource
	cfg      Config

	overlay atomic.Pointer[Overlay]
	group   singleflight.Group
}

// EngineDeps groups the engine collaborators.
type EngineDeps struct {
	Rules   *Ruleset
	AI      out.AIClassifier
	Cache   out.ClassificationCache
	Learned LearnedSource
}

// NewEngine builds the engine and loads the initial overlay. A failed load
// leaves the empty overlay in place.
func NewEngine(ctx context.Context, deps EngineDeps, cfg Config) *Engine {
	if deps.Rules == nil {
		deps.Rules = DefaultRuleset()
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = DefaultConfig().AITimeout
	}

	e := &Engine{
		rules:    deps.Rules,
		fallback: NewFallbackClassifier(deps.Rules),
		ai:       deps.AI,
		cache:    deps.Cache,
		learned:  deps.Learned,
		cfg:      cfg,
	}
	e.overlay.Store(EmptyOverlay())

	if e.learned != nil {
		if _, err := e.Refresh(ctx); err != nil {
			logger.WithError(err).Warn("[Classifier] initial overlay load failed, starting empty")
		}
	}
	return e
}

// Rules returns the static ruleset.
func (e *Engine) Rules() *Ruleset { return e.rules }

// Overlay returns the current learned overlay snapshot.
func (e *Engine) Overlay() *Overlay { return e.overlay.Load() }

// Classify never fails: any AI problem falls through to the deterministic path.
func (e *Engine) Classify(ctx context.Context, message string, subject *string) *domain.ClassificationResult {
	text := fullText(message, subject)
	overlay := e.overlay.Load()

	if e.ai != nil {
		if result, ok := e.classifyAI(ctx, text, overlay); ok {
			return result
		}
	}
	return e.fallback.Classify(text, overlay)
}

func (e *Engine) classifyAI(ctx context.Context, text string, overlay *Overlay) (*domain.ClassificationResult, bool) {
	key := cacheKey(text)

	if e.cache != nil {
		cached, err := e.cache.Get(ctx, key)
		if err != nil {
			logger.WithError(err).Debug("[Classifier] cache get failed")
		} else if cached != nil {
			hit := *cached
			hit.AssignedTeam = e.rules.teamFor(hit.Intent, overlay)
			hit.Method = domain.MethodCache
			return &hit, true
		}
	}

	aiCtx, cancel := context.WithTimeout(ctx, e.cfg.AITimeout)
	defer cancel()

	raw, err := e.ai.ClassifyQuery(aiCtx, text)
	if err != nil {
		logger.WithError(err).Warn("[Classifier] AI classification failed, using fallback")
		return nil, false
	}

	result, err := validateAI(raw)
	if err != nil {
		logger.WithError(err).Warn("[Classifier] AI output rejected, using fallback")
		return nil, false
	}

	if e.cache != nil && e.cfg.CacheTTL > 0 {
		if err := e.cache.Set(ctx, key, result, e.cfg.CacheTTL); err != nil {
			logger.WithError(err).Debug("[Classifier] cache set failed")
		}
	}

	result.AssignedTeam = e.rules.teamFor(result.Intent, overlay)
	result.Method = domain.MethodAI
	return result, true
}

// Refresh rebuilds the overlay from the learned source and swaps it in.
// Concurrent callers share one rebuild. On error the previous overlay stays.
func (e *Engine) Refresh(ctx context.Context) (*Overlay, error) {
	if e.learned == nil {
		return e.overlay.Load(), nil
	}

	v, err, _ := e.group.Do("refresh", func() (any, error) {
		keywords := make(map[domain.Intent][]string, len(domain.Intents))
		teams := make(map[domain.Intent]string)

		for _, intent := range domain.Intents {
			kw, err := e.learned.GetLearnedKeywordsForIntent(ctx, intent)
			if err != nil {
				return nil, err
			}
			keywords[intent] = kw

			team, ok, err := e.learned.GetLearnedTeamForIntent(ctx, intent)
			if err != nil {
				return nil, err
			}
			if ok {
				teams[intent] = team
			}
		}

		next := e.rules.NewOverlay(keywords, teams)
		e.overlay.Store(next)

		kwCount, teamCount := next.Size()
		logger.WithFields(map[string]any{
			"learned_keywords": kwCount,
			"learned_teams":    teamCount,
		}).Info("[Classifier] overlay refreshed")
		return next, nil
	})
	if err != nil {
		return e.overlay.Load(), err
	}
	return v.(*Overlay), nil
}

func fullText(message string, subject *string) string {
	if subject == nil {
		return strings.TrimSpace(message)
	}
	return strings.TrimSpace(*subject + "\n" + message)
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
