// Package scheduling holds the business rules of the publish scheduler:
// validation, the schedule state machine, execution of one schedule,
// statistics, templates and the maintenance passes run before each sweep.
package scheduling

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/premiere/internal/content"
	"github.com/Nixie-Tech-LLC/premiere/internal/db"
	"github.com/Nixie-Tech-LLC/premiere/internal/notify"
)

const (
	DefaultPublishTimeout = 30 * time.Second
	DefaultListLimit      = 50
	MaxListLimit          = 500

	abandonedClaimMessage = "claim abandoned"

	// upper bound for the status writes that follow a successful claim
	finishTimeout = 10 * time.Second
)

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	PublishTimeout time.Duration
	Now            func() time.Time
	Logger         *zerolog.Logger
}

type Service struct {
	store          db.Store
	content        *content.Registry
	notifier       notify.Dispatcher
	now            func() time.Time
	publishTimeout time.Duration
	log            zerolog.Logger
}

func NewService(store db.Store, registry *content.Registry, notifier notify.Dispatcher, opts Options) *Service {
	s := &Service{
		store:          store,
		content:        registry,
		notifier:       notifier,
		now:            opts.Now,
		publishTimeout: opts.PublishTimeout,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.publishTimeout <= 0 {
		s.publishTimeout = DefaultPublishTimeout
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	s.log = logger.With().Str("component", "scheduling").Logger()
	return s
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}
