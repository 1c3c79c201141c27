package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
	"github.com/spec-kit/helpdesk-chat/internal/observability"
	apperrors "github.com/spec-kit/helpdesk-chat/pkg/util/errorutil"
)

// Advisor suggests a technician among candidates. Implementations must never
// fail loudly: any problem is reported as no suggestion.
type Advisor interface {
	Suggest(ctx context.Context, problem string, candidates []domain.Technician, load map[string]int) (technicianID string, ok bool)
}

// Assignment is the outcome of routing a problem to a technician.
type Assignment struct {
	Technician domain.Technician
	Specialty  Specialty
	Load       int
	Advised    bool
}

// AssignmentService picks a technician for a problem description.
type AssignmentService struct {
	classifier *SpecialtyClassifier
	advisor    Advisor
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Classifier *SpecialtyClassifier
	Advisor    Advisor
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	if deps.Classifier == nil {
		deps.Classifier = NewSpecialtyClassifier()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &AssignmentService{
		classifier: deps.Classifier,
		advisor:    deps.Advisor,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// Classify exposes the keyword classification used for routing.
func (s *AssignmentService) Classify(problem string) Specialty {
	return s.classifier.Classify(problem)
}

// Assign filters technicians by the classified specialty and picks the least
// loaded one. An advisory pick is honored only when its load does not exceed
// the minimum. Load counts come from the caller, keyed by technician id.
func (s *AssignmentService) Assign(ctx context.Context, problem string, technicians []domain.Technician, load map[string]int) (Assignment, error) {
	tag := s.classifier.Classify(problem)

	var candidates []domain.Technician
	for _, t := range technicians {
		if MatchesSpecialty(tag, t.Specialty) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return Assignment{Specialty: tag}, apperrors.NewNoTechnicianAvailable()
	}

	least := leastLoaded(candidates, load)
	result := Assignment{Technician: least, Specialty: tag, Load: load[least.ID]}

	if s.advisor == nil {
		return result, nil
	}
	suggestedID, ok := s.advisor.Suggest(ctx, problem, candidates, load)
	if !ok {
		s.metrics.RecordAdvisory("none")
		return result, nil
	}
	suggested, found := findTechnician(candidates, suggestedID)
	if !found {
		s.metrics.RecordAdvisory("rejected")
		s.logger.Warn("advisory named a technician outside the candidates", zap.String("technician_id", suggestedID))
		return result, nil
	}
	if load[suggested.ID] > result.Load {
		s.metrics.RecordAdvisory("overridden")
		s.logger.Info("advisory overridden by load",
			zap.String("suggested", suggested.Name),
			zap.Int("suggested_load", load[suggested.ID]),
			zap.String("assigned", least.Name),
			zap.Int("assigned_load", result.Load))
		return result, nil
	}
	s.metrics.RecordAdvisory("used")
	return Assignment{Technician: suggested, Specialty: tag, Load: load[suggested.ID], Advised: true}, nil
}

// AssignAny picks the least loaded technician regardless of specialty.
func (s *AssignmentService) AssignAny(technicians []domain.Technician, load map[string]int) (Assignment, error) {
	if len(technicians) == 0 {
		return Assignment{Specialty: SpecialtyUndefined}, apperrors.NewNoTechnicianAvailable()
	}
	least := leastLoaded(technicians, load)
	return Assignment{Technician: least, Specialty: SpecialtyUndefined, Load: load[least.ID]}, nil
}

// leastLoaded keeps the first technician encountered among equal loads.
func leastLoaded(technicians []domain.Technician, load map[string]int) domain.Technician {
	best := technicians[0]
	for _, t := range technicians[1:] {
		if load[t.ID] < load[best.ID] {
			best = t
		}
	}
	return best
}

func findTechnician(technicians []domain.Technician, id string) (domain.Technician, bool) {
	for _, t := range technicians {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Technician{}, false
}
