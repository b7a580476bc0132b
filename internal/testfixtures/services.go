package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

// ServiceFactory builds application services with a deterministic clock and
// id generator.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Window      scheduler.Window
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory returns a factory using ReferenceTime and the default
// operating window.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Window:      scheduler.DefaultWindow(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

// WithClock overrides the clock.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Clock = clock }
}

// WithIDGenerator overrides the id generator.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.IDGenerator = generator }
}

// WithLogger routes service logs to logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Logger = logger }
}

// Repositories groups the stores the services run on.
type Repositories struct {
	Bookings    application.BookingRepository
	Invitations application.InvitationRepository
	Rooms       application.RoomRepository
	Users       application.UserRepository
}

// Services is a fully wired service set sharing one lock table.
type Services struct {
	Bookings    *application.BookingService
	Batch       *application.BatchCoordinator
	Invitations *application.InvitationService
	Suggestions *application.SuggestionService
	Rooms       *application.RoomService
	Users       *application.UserService
}

// Build wires every service over repos. notifier may be nil.
func (f *ServiceFactory) Build(repos Repositories, notifier application.Notifier) Services {
	now := f.Clock.NowFunc()
	ids := f.IDGenerator.NextFunc()
	locks := application.NewKeyedLocker()

	bookings := application.NewBookingService(application.BookingServiceDeps{
		Bookings:    repos.Bookings,
		Rooms:       repos.Rooms,
		Users:       repos.Users,
		Window:      f.Window,
		Locks:       locks,
		Notifier:    notifier,
		IDGenerator: ids,
		Now:         now,
		Logger:      f.Logger,
	})

	return Services{
		Bookings:    bookings,
		Batch:       application.NewBatchCoordinator(bookings, f.Logger),
		Invitations: application.NewInvitationService(repos.Invitations, repos.Bookings, locks, notifier, now, f.Logger),
		Suggestions: application.NewSuggestionService(repos.Rooms, repos.Bookings, bookings.Availability(), nil, nil, f.Logger),
		Rooms:       application.NewRoomServiceWithLogger(repos.Rooms, ids, now, f.Logger),
		Users:       application.NewUserService(repos.Users, ids, now, f.Logger),
	}
}
