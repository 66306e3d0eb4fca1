// Package bootstrap builds the engine-side components from configuration.
// It is shared by the API server, the worker, and the CLI so all three wire
// the complex-plane core identically.
package bootstrap

import (
	"github.com/diagnovera/diagnovera/internal/config"
	"github.com/diagnovera/diagnovera/internal/domain/complexplane"
	domaindiag "github.com/diagnovera/diagnovera/internal/domain/diagnosis"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/logging"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

// NewLogger builds the process logger from config.
func NewLogger(cfg config.LogConfig) (logging.Logger, error) {
	return logging.NewLogger(logging.Config{
		Level:            cfg.Level,
		Format:           cfg.Format,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: cfg.ErrorOutputPaths,
	})
}

// DomainRanges converts the string-keyed config ranges into typed domain
// keys, dropping entries for unknown domains.
func DomainRanges(cfg config.EngineConfig) map[clinical.Domain]map[string]clinical.Range {
	out := make(map[clinical.Domain]map[string]clinical.Range, len(cfg.Ranges))
	for rawDomain, vars := range cfg.Ranges {
		domain, err := clinical.ParseDomain(rawDomain)
		if err != nil {
			continue
		}
		m := make(map[string]clinical.Range, len(vars))
		for name, r := range vars {
			m[name] = clinical.Range{Min: r.Min, Max: r.Max}
		}
		out[domain] = m
	}
	return out
}

// NewMapper builds the allocator and mapper pair from engine config.
func NewMapper(cfg config.EngineConfig, log logging.Logger) (*complexplane.Allocator, *complexplane.Mapper) {
	alloc := complexplane.NewAllocator(complexplane.AllocatorConfig{
		IncrementDegrees: cfg.SectorIncrementDegrees,
	})
	mapper := complexplane.NewMapper(alloc, complexplane.MapperOptions{
		Ranges:           DomainRanges(cfg),
		PresenceFallback: cfg.PresenceFallback,
	}, log)
	return alloc, mapper
}

// NewEngine builds the similarity engine from engine config.
func NewEngine(cfg config.EngineConfig, log logging.Logger) (*domaindiag.Engine, error) {
	return domaindiag.NewEngine(domaindiag.Options{
		Weights: domaindiag.Weights{
			Bayesian: cfg.Weights.Bayesian,
			Kuramoto: cfg.Weights.Kuramoto,
			Markov:   cfg.Weights.Markov,
		},
		TopK:     cfg.TopK,
		Workers:  cfg.ScoreWorkers,
		Deadline: cfg.ScoreDeadline,
	}, log)
}
