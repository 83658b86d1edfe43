package appliance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/wattwise/internal/domain/models"
	repo "github.com/mamadbah2/wattwise/internal/repository/mongodb"
)

// ErrUnknownAppliance indicates the appliance name is not in the tracked set.
var ErrUnknownAppliance = errors.New("unknown appliance")

// ErrNegativeConsumption indicates a command carried a negative increment,
// which would corrupt the day-wise totals.
var ErrNegativeConsumption = errors.New("negative consumption amount")

// Controller applies start/stop commands to a user's appliance records.
type Controller interface {
	Start(ctx context.Context, userID, appliance string, consumption float64) (models.ConsumptionDelta, error)
	Stop(ctx context.Context, userID, appliance string) (models.ConsumptionDelta, error)
}

// Service implements the Controller interface on top of the user repository.
type Service struct {
	repo   repo.UserRepository
	logger *zap.Logger
	now    func() time.Time

	// Commands for the same user must serialize: the aggregate is loaded,
	// mutated and replaced as a whole document, so two interleaved commands
	// would lose one another's update. The map holds one mutex per userId
	// ever seen and is never evicted, growing with the user population the
	// same way the day-wise buckets grow with the days of activity.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService constructs an appliance controller.
func NewService(repository repo.UserRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repository,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// Start marks the appliance running, folds the consumption increment into the
// session, lifetime and day-wise accumulators, persists the aggregate and
// returns the broadcast delta. The operation is not idempotent: a repeated
// start with the same amount counts the amount twice.
func (s *Service) Start(ctx context.Context, userID, appliance string, consumption float64) (models.ConsumptionDelta, error) {
	if consumption < 0 {
		return nil, fmt.Errorf("%w: %f", ErrNegativeConsumption, consumption)
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}

	name := models.ApplianceName(appliance)
	record := user.Appliance(name)
	if record == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAppliance, appliance)
	}

	now := s.now()
	record.IsRunning = true
	record.Consumption += consumption
	record.TotalConsumption += consumption
	record.UpTime = &now
	record.ApplyConsumption(now, consumption)

	if err := s.repo.Replace(ctx, user); err != nil {
		return nil, fmt.Errorf("persist user %s: %w", userID, err)
	}

	s.logger.Info("appliance started",
		zap.String("user_id", userID),
		zap.String("appliance", appliance),
		zap.Float64("consumption", consumption))

	return models.NewStartDelta(userID, name, record.Consumption), nil
}

// Stop marks the appliance idle and clears its up-time. The consumption
// accumulators are deliberately untouched: stop reports only the boolean
// transition, and any tail consumption must arrive as a final start increment
// before the stop command.
func (s *Service) Stop(ctx context.Context, userID, appliance string) (models.ConsumptionDelta, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}

	name := models.ApplianceName(appliance)
	record := user.Appliance(name)
	if record == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAppliance, appliance)
	}

	record.IsRunning = false
	record.UpTime = nil

	if err := s.repo.Replace(ctx, user); err != nil {
		return nil, fmt.Errorf("persist user %s: %w", userID, err)
	}

	s.logger.Info("appliance stopped",
		zap.String("user_id", userID),
		zap.String("appliance", appliance))

	return models.NewStopDelta(userID, name), nil
}
