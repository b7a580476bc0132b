package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/config"
	httptransport "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/persistence/sqlite"
	"github.com/example/room-booking/internal/persistence/sqlite/migration"
)

const roomCacheTTL = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "bookingd:", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	seed        bool
	migrateOnly bool
	help        bool
}

func parseFlags(args []string, out io.Writer) (options, *pflag.FlagSet, error) {
	var opts options
	fs := pflag.NewFlagSet("bookingd", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.configPath, "config", "", "path to a YAML configuration file (default $BOOKING_CONFIG)")
	fs.BoolVar(&opts.seed, "seed", false, "insert the configured seed rooms when the catalog is empty")
	fs.BoolVar(&opts.migrateOnly, "migrate-only", false, "apply schema migrations and exit")
	fs.BoolVarP(&opts.help, "help", "h", false, "show usage")
	if err := fs.Parse(args); err != nil {
		return options{}, fs, err
	}
	return opts, fs, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, fs, err := parseFlags(args, out)
	if err != nil {
		return err
	}
	if opts.help {
		fmt.Fprintln(out, "Usage: bookingd [flags]")
		fs.PrintDefaults()
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel, out)
	if err != nil {
		return err
	}

	storage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if opts.migrateOnly {
		logger.Info("migrations applied", "path", cfg.SQLitePath)
		return nil
	}

	wired := newApp(cfg, storage, logger, func() string { return uuid.NewString() }, time.Now)
	defer wired.hub.Close()

	if opts.seed {
		if err := seedRooms(ctx, wired.rooms, cfg.SeedRooms, logger); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           wired.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		wired.hub.Close()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("booking API listening", "addr", server.Addr, "window", cfg.Window.Open.String()+"-"+cfg.Window.Close.String())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sqlite.Storage, error) {
	sqlCfg := migration.DefaultSQLiteConfig(cfg.SQLitePath)
	sqlCfg.BusyTimeout = cfg.SQLiteBusyTimeout

	storage, err := sqlite.Open(sqlCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		storage.Close()
		return nil, err
	}
	return storage, nil
}

type app struct {
	handler http.Handler
	hub     *httptransport.NotificationHub
	rooms   *application.RoomService
}

// newApp wires repositories, services and handlers over one storage.
func newApp(cfg config.Config, storage *sqlite.Storage, logger *slog.Logger, idGenerator func() string, now func() time.Time) *app {
	users := newUserRepositoryAdapter(storage)
	rooms := application.NewRoomCache(newRoomRepositoryAdapter(storage), roomCacheTTL, 0, now)
	bookings := newBookingRepositoryAdapter(storage)
	invitations := newInvitationRepositoryAdapter(storage)

	hub := httptransport.NewNotificationHub(cfg.CORSOrigins, logger)
	locks := application.NewKeyedLocker()

	bookingService := application.NewBookingService(application.BookingServiceDeps{
		Bookings:    bookings,
		Rooms:       rooms,
		Users:       users,
		Window:      cfg.Window,
		Locks:       locks,
		Notifier:    hub,
		IDGenerator: idGenerator,
		Now:         now,
		Logger:      logger,
	})
	batch := application.NewBatchCoordinator(bookingService, logger)
	invitationService := application.NewInvitationService(invitations, bookings, locks, hub, now, logger)
	suggestionService := application.NewSuggestionService(rooms, bookings, bookingService.Availability(), nil, nil, logger)
	roomService := application.NewRoomServiceWithLogger(rooms, idGenerator, now, logger)
	userService := application.NewUserService(users, idGenerator, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Rooms:       httptransport.NewRoomHandler(roomService, logger),
		Users:       httptransport.NewUserHandler(userService, logger),
		Bookings:    httptransport.NewBookingHandler(bookingService, bookingService.Availability(), batch, logger),
		Invitations: httptransport.NewInvitationHandler(invitationService, logger),
		Suggestions: httptransport.NewSuggestionHandler(suggestionService, logger),
		Hub:         hub,
		Logger:      logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.CORS(cfg.CORSOrigins),
		},
	})

	return &app{handler: router, hub: hub, rooms: roomService}
}

var seedPrincipal = application.Principal{UserID: "bookingd-seed", IsManager: true}

// seedRooms inserts the configured rooms when the catalog is empty.
func seedRooms(ctx context.Context, rooms *application.RoomService, seeds []config.SeedRoom, logger *slog.Logger) error {
	if len(seeds) == 0 {
		logger.Info("no seed rooms configured")
		return nil
	}

	existing, err := rooms.ListRooms(ctx, application.ListRoomsParams{Principal: seedPrincipal})
	if err != nil {
		return fmt.Errorf("seed: list rooms: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("catalog not empty, skipping seed", "room_count", len(existing))
		return nil
	}

	for _, seed := range seeds {
		input := application.RoomInput{
			Name:         seed.Name,
			Capacity:     seed.Capacity,
			PricePerHour: seed.PricePerHour,
			Amenities:    seed.Amenities,
		}
		if d := strings.TrimSpace(seed.Description); d != "" {
			input.Description = &d
		}
		if _, err := rooms.CreateRoom(ctx, application.CreateRoomParams{Principal: seedPrincipal, Input: input}); err != nil {
			return fmt.Errorf("seed room %q: %w", seed.Name, err)
		}
	}
	logger.Info("seed rooms inserted", "room_count", len(seeds))
	return nil
}
