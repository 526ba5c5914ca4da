package services

import (
	"time"

	"github.com/skillgate/attempt-service/internal/cache"
	"github.com/skillgate/attempt-service/internal/config"
	"github.com/skillgate/attempt-service/internal/events"
	"github.com/skillgate/attempt-service/internal/repositories"
	"github.com/skillgate/attempt-service/internal/utils"
	"github.com/skillgate/attempt-service/internal/validator"
)

// ServiceManager wires the service layer together and hands out its
// interfaces.
type ServiceManager interface {
	Attempt() AttemptService
	Scoring() ScoringService
	Export() ExportService
}

type serviceManager struct {
	attempt AttemptService
	scoring ScoringService
	export  ExportService
}

func NewServiceManager(
	repo repositories.Repository,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	v *validator.Validator,
	logger utils.Logger,
	cfg *config.Config,
) ServiceManager {
	catalog := NewTestCatalog(repo.Test())
	if cacheService != nil {
		ttl := time.Duration(cfg.TestCacheTTLSecs) * time.Second
		catalog = NewCachedTestCatalog(catalog, cacheService, ttl, logger)
	}

	oracle := NewQuestionOracle(repo.Question())
	scoring := NewScoringService(oracle)
	attempt := NewAttemptService(repo, catalog, scoring, publisher, logger, v, cfg.ViolationThreshold)
	export := NewExportService(repo, catalog, logger)

	return &serviceManager{
		attempt: attempt,
		scoring: scoring,
		export:  export,
	}
}

func (m *serviceManager) Attempt() AttemptService { return m.attempt }
func (m *serviceManager) Scoring() ScoringService { return m.scoring }
func (m *serviceManager) Export() ExportService   { return m.export }
