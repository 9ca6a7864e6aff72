package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"slotengine/internal/database"
	"slotengine/internal/domain"
	"slotengine/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrCatalogReadOnly = errors.New("service catalog has no repository")
)

// CatalogService keeps the active service list in memory. It is seeded from
// configuration and reloaded from the repository on Refresh.
type CatalogService struct {
	repo       domain.ServiceRepository
	logger     *zerolog.Logger
	services   []models.Service
	servicesID map[string]models.Service
	mu         sync.RWMutex
}

func NewCatalogService(repo domain.ServiceRepository, services []models.Service, logger *zerolog.Logger) *CatalogService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &CatalogService{repo: repo, logger: logger}
	s.set(services)
	return s
}

func (s *CatalogService) set(services []models.Service) {
	active := make([]models.Service, 0, len(services))
	byID := make(map[string]models.Service, len(services))
	for _, svc := range services {
		if !svc.IsActive {
			continue
		}
		active = append(active, svc)
		byID[svc.ID] = svc
	}
	slices.SortStableFunc(active, func(a, b models.Service) int {
		return cmp.Compare(a.SortOrder, b.SortOrder)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = active
	s.servicesID = byID
}

// ServiceDuration returns the configured duration, or the default for unknown
// ids and non-positive durations.
func (s *CatalogService) ServiceDuration(serviceID string) int {
	s.mu.RLock()
	svc, ok := s.servicesID[serviceID]
	s.mu.RUnlock()
	if !ok || svc.DurationMinutes <= 0 {
		return models.DefaultServiceDurationMinutes
	}
	return svc.DurationMinutes
}

func (s *CatalogService) ActiveServices() []models.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Service(nil), s.services...)
}

func (s *CatalogService) GetService(serviceID string) (*models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.servicesID[serviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceID)
	}
	return &svc, nil
}

// SyncToDB writes every configured service to the repository and reloads.
func (s *CatalogService) SyncToDB(ctx context.Context, services []models.Service) error {
	if s.repo == nil {
		return nil
	}
	for i := range services {
		if err := s.repo.UpsertService(ctx, &services[i]); err != nil {
			return err
		}
	}
	s.logger.Info().Int("count", len(services)).Msg("services synced to database")
	return s.Refresh(ctx)
}

func (s *CatalogService) UpsertService(ctx context.Context, svc *models.Service) error {
	if s.repo == nil {
		return ErrCatalogReadOnly
	}
	if err := s.repo.UpsertService(ctx, svc); err != nil {
		return err
	}
	s.logger.Info().Str("service_id", svc.ID).Int("duration_minutes", svc.DurationMinutes).Msg("service saved")
	return s.Refresh(ctx)
}

func (s *CatalogService) DeactivateService(ctx context.Context, id string) error {
	if s.repo == nil {
		return ErrCatalogReadOnly
	}
	err := s.repo.DeactivateService(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, id)
	}
	if err != nil {
		return err
	}
	s.logger.Info().Str("service_id", id).Msg("service deactivated")
	return s.Refresh(ctx)
}

func (s *CatalogService) Refresh(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	services, err := s.repo.GetActiveServices(ctx)
	if err != nil {
		return err
	}
	s.set(services)
	return nil
}
