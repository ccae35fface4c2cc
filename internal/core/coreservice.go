package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jo-hoe/gophotobooth/internal/backend/commands"
	"github.com/jo-hoe/gophotobooth/internal/backend/commandstructure"
	"github.com/jo-hoe/gophotobooth/internal/backend/database"
	"github.com/jo-hoe/gophotobooth/internal/events"
	"github.com/jo-hoe/gophotobooth/internal/printing"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

var ErrInvalidInput = errors.New("invalid input")

// Dependencies lets callers replace the outside world; nil fields are built from config
type Dependencies struct {
	Database  database.DatabaseService
	Fs        afero.Fs
	Lease     printing.Lease
	Publisher events.Publisher
	Spooler   printing.Spooler
	Now       func() time.Time
}

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	registry        *printing.Registry
	dispatcher      *printing.Dispatcher
	publisher       events.Publisher
	redisClient     *redis.Client
	leaseRefresh    time.Duration
	location        *time.Location
	now             func() time.Time

	runCancel context.CancelFunc
	runDone   chan struct{}
	closeOnce sync.Once
}

// NewCoreService wires the service against real devices, database, redis and broker
func NewCoreService(config *ServiceConfig) (*CoreService, error) {
	return NewCoreServiceWith(config, Dependencies{})
}

func NewCoreServiceWith(config *ServiceConfig, deps Dependencies) (*CoreService, error) {
	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
	}

	service := &CoreService{
		config:   config,
		location: location,
		now:      deps.Now,
	}
	if service.now == nil {
		service.now = time.Now
	}

	service.databaseService = deps.Database
	if service.databaseService == nil {
		service.databaseService, err = getDatabaseService(config)
		if err != nil {
			return nil, err
		}
	}
	if err := service.seedVenue(context.Background()); err != nil {
		_ = service.databaseService.Close()
		return nil, err
	}

	lease := deps.Lease
	if lease == nil {
		lease = service.newLease()
	}
	fs := deps.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	service.registry = printing.NewRegistry(lease, config.Printer.Owner,
		printing.NewUSBDiscoverer(fs, config.Printer.USB.Pattern, config.Printer.USB.Devices),
		printing.NewBluetoothDiscoverer(fs, config.Printer.Bluetooth.Pattern, config.Printer.Bluetooth.Devices),
	)

	spooler := deps.Spooler
	if spooler == nil {
		spooler = printing.NewCommandSpooler(config.Printer.Spool.Command, config.Printer.Spool.Args...)
	}
	transport, err := newTransport(config.Printer, spooler)
	if err != nil {
		_ = service.databaseService.Close()
		return nil, err
	}
	transcoder := printing.Transcoder{
		Encoding: printing.Encoding(config.Printer.Encoding),
		EscPos:   config.Printer.escPosOptions(),
	}
	service.dispatcher = printing.NewDispatcher(service.registry, transcoder, transport, printing.RetryPolicy{
		MaxAttempts: config.Printer.Retry.MaxAttempts,
		Backoff:     config.Printer.Retry.Backoff,
	})

	publisher := deps.Publisher
	if publisher == nil {
		publisher = newPublisher(config.MQTT)
	}
	// events leave the print path without a broker round trip
	service.publisher = events.NewAsyncPublisher(publisher, events.DefaultEventBuffer)
	venueID := config.Venue.ID
	service.registry.OnStatusChange(func(device printing.PrinterDevice) {
		service.publish(events.PrinterEvent(venueID, device))
	})
	service.dispatcher.OnStateChange(func(status printing.Status) {
		service.publish(events.PrintEvent(venueID, status))
	})

	return service, nil
}

// Start runs an initial scan and the background USB auto-scan
func (service *CoreService) Start(ctx context.Context) {
	devices := service.registry.Scan(ctx)
	slog.Info("initial printer scan complete", "devices", len(devices))

	runCtx, cancel := context.WithCancel(ctx)
	service.runCancel = cancel
	service.runDone = make(chan struct{})
	go func() {
		defer close(service.runDone)
		service.registry.Run(runCtx, service.config.Printer.AutoScanInterval, service.leaseRefresh)
	}()
}

func (service *CoreService) Close() error {
	var errs []error
	service.closeOnce.Do(func() {
		if service.runCancel != nil {
			service.runCancel()
			<-service.runDone
		}
		if err := service.registry.Close(context.Background()); err != nil {
			errs = append(errs, err)
		}
		service.publisher.Close()
		if service.redisClient != nil {
			if err := service.redisClient.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := service.databaseService.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

func (service *CoreService) Printers() []printing.PrinterDevice {
	return service.registry.Devices()
}

// ScanPrinters rescans the given family, or every family when deviceType is empty
func (service *CoreService) ScanPrinters(ctx context.Context, deviceType string) ([]printing.PrinterDevice, error) {
	switch printing.DeviceType(deviceType) {
	case "":
		return service.registry.Scan(ctx), nil
	case printing.DeviceTypeUSB, printing.DeviceTypeBluetooth:
		return service.registry.ScanType(ctx, printing.DeviceType(deviceType)), nil
	default:
		return nil, fmt.Errorf("unknown device type %q: %w", deviceType, ErrInvalidInput)
	}
}

func (service *CoreService) ConnectPrinter(ctx context.Context, id string) (printing.PrinterDevice, error) {
	return service.registry.Connect(ctx, id)
}

func (service *CoreService) DisconnectPrinter(ctx context.Context, id string) error {
	return service.registry.Disconnect(ctx, id)
}

func (service *CoreService) PrintStatus() printing.Status {
	return service.dispatcher.Status()
}

// PhotoRequest is a captured image plus the edits chosen on the kiosk
type PhotoRequest struct {
	Src     string
	Filter  string
	Frame   string
	Caption string
}

// CreatePhoto normalizes the capture to PNG, applies the configured photo
// commands and the chosen edits, and stores original and result together
func (service *CoreService) CreatePhoto(ctx context.Context, req PhotoRequest) (*database.Photo, error) {
	original, _, err := printing.DecodeDataURL(req.Src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if req.Filter == "" {
		req.Filter = "none"
	}
	if req.Frame == "" {
		req.Frame = "none"
	}

	configs := []commandstructure.CommandConfig{{Name: "PngConverterCommand"}}
	configs = append(configs, toCommandConfigs(service.config.PhotoCommands)...)
	configs = append(configs,
		commandstructure.CommandConfig{Name: "FilterCommand", Params: map[string]any{"filter": req.Filter}},
		commandstructure.CommandConfig{Name: "FrameCommand", Params: map[string]any{"frame": req.Frame}},
		commandstructure.CommandConfig{Name: "CaptionCommand", Params: map[string]any{"text": req.Caption}},
	)
	invoker, err := commandstructure.NewCommandInvokerFromConfigs(commandstructure.DefaultRegistry, configs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	processed, err := invoker.Execute(original)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to process photo: %w", ErrInvalidInput, err)
	}

	photo, err := service.databaseService.CreatePhoto(ctx, &database.Photo{
		VenueID:        service.config.Venue.ID,
		Filter:         req.Filter,
		Frame:          req.Frame,
		Caption:        req.Caption,
		OriginalImage:  original,
		ProcessedImage: processed,
		CreatedAt:      service.now().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}
	slog.Info("photo stored", "photo_id", photo.ID, "filter", photo.Filter, "frame", photo.Frame, "size_bytes", len(processed))
	return photo, nil
}

func (service *CoreService) GetPhotos(ctx context.Context) ([]*database.Photo, error) {
	return service.databaseService.GetPhotos(ctx, service.config.Venue.ID)
}

func (service *CoreService) GetPhoto(ctx context.Context, id string) (*database.Photo, error) {
	return service.databaseService.GetPhotoByID(ctx, id)
}

func (service *CoreService) GetPhotoImage(ctx context.Context, id string) ([]byte, error) {
	return service.databaseService.GetProcessedImageByID(ctx, id)
}

// GetPhotoThumbnail scales the processed image down to the configured thumbnail width
func (service *CoreService) GetPhotoThumbnail(ctx context.Context, id string) ([]byte, error) {
	image, err := service.databaseService.GetProcessedImageByID(ctx, id)
	if err != nil {
		return nil, err
	}
	command, err := commands.NewPixelScaleCommand(map[string]any{
		"width":         service.config.ThumbnailWidth,
		"interpolation": "bilinear",
		"noUpscale":     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create thumbnail command: %w", err)
	}
	thumbnail, err := command.Execute(image)
	if err != nil {
		return nil, fmt.Errorf("failed to generate thumbnail: %w", err)
	}
	return thumbnail, nil
}

func (service *CoreService) DeletePhoto(ctx context.Context, id string) error {
	return service.databaseService.DeletePhoto(ctx, id)
}

// PrintPhoto prints the photo's processed image copies times. Every accepted
// copy is counted in analytics right away, so a later failure keeps earlier copies.
func (service *CoreService) PrintPhoto(ctx context.Context, id string, copies int) (printing.Status, error) {
	if copies <= 0 {
		copies = 1
	}
	if copies > 10 {
		return printing.Status{}, fmt.Errorf("at most 10 copies per request, got %d: %w", copies, ErrInvalidInput)
	}

	processed, err := service.databaseService.GetProcessedImageByID(ctx, id)
	if err != nil {
		return printing.Status{}, err
	}
	ready, err := commandstructure.ExecuteCommands(processed, toCommandConfigs(service.config.PrintCommands))
	if err != nil {
		return printing.Status{}, fmt.Errorf("failed to prepare photo %s for print: %w", id, err)
	}
	src := printing.EncodeDataURL("image/png", ready)

	for n := 1; n <= copies; n++ {
		jobID := fmt.Sprintf("%s-%d", id, n)
		if err := service.dispatcher.Print(ctx, jobID, src); err != nil {
			return service.dispatcher.Status(), err
		}
		if err := service.recordPrint(ctx); err != nil {
			slog.Error("failed to record print in analytics", "photo_id", id, "error", err)
		}
	}
	return service.dispatcher.Status(), nil
}

func (service *CoreService) recordPrint(ctx context.Context) error {
	date := service.now().In(service.location).Format(time.DateOnly)
	cents := int64(math.Round(service.config.PricePerPrint * 100))
	return service.databaseService.AddPrints(ctx, service.config.Venue.ID, date, 1, cents)
}

func (service *CoreService) publish(event events.Event) {
	if err := service.publisher.Publish(context.Background(), event); err != nil {
		slog.Warn("failed to publish event", "kind", event.Kind, "error", err)
	}
}

func (service *CoreService) seedVenue(ctx context.Context) error {
	_, err := service.databaseService.GetVenue(ctx, service.config.Venue.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to load venue: %w", err)
	}
	v := service.config.Venue
	slog.Info("seeding venue from config", "venue_id", v.ID, "name", v.Name)
	return service.databaseService.UpsertVenue(ctx, &database.Venue{
		ID:             v.ID,
		Name:           v.Name,
		Logo:           v.Logo,
		PrimaryColor:   v.PrimaryColor,
		SecondaryColor: v.SecondaryColor,
		ContactEmail:   v.ContactEmail,
	})
}

func (service *CoreService) newLease() printing.Lease {
	if service.config.Redis.Address == "" {
		return printing.NewMemoryLease()
	}
	service.redisClient = redis.NewClient(&redis.Options{
		Addr:     service.config.Redis.Address,
		Password: service.config.Redis.Password,
		DB:       service.config.Redis.DB,
	})
	lease := printing.NewRedisLease(service.redisClient, "", service.config.Redis.LeaseTTL)
	service.leaseRefresh = lease.TTL() / 3
	slog.Info("using redis device lease", "address", service.config.Redis.Address, "ttl", lease.TTL())
	return lease
}

func newTransport(p Printer, spooler printing.Spooler) (printing.Transport, error) {
	switch printing.TransportKind(p.Transport) {
	case printing.TransportChunked:
		return printing.NewChunkedTransport(p.ChunkSize, p.ChunkDelay), nil
	case printing.TransportRender:
		page := printing.PageSize{Width: p.Spool.Page.Width, Height: p.Spool.Page.Height, Margin: p.Spool.Page.Margin}
		return printing.NewRenderTransport(spooler, page, p.Spool.Destination), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", p.Transport)
	}
}

func newPublisher(cfg events.MQTTConfig) events.Publisher {
	if cfg.Broker == "" {
		return events.NopPublisher{}
	}
	publisher, err := events.NewMQTTPublisher(cfg)
	if err != nil {
		slog.Warn("mqtt broker unavailable, events disabled", "broker", cfg.Broker, "error", err)
		return events.NopPublisher{}
	}
	return publisher
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(context.Background(), config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}
