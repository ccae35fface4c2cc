package core

import (
	"fmt"
	"os"
	"time"

	"github.com/jo-hoe/gophotobooth/internal/backend/commandstructure"
	"github.com/jo-hoe/gophotobooth/internal/events"
	"github.com/jo-hoe/gophotobooth/internal/printing"
	"gopkg.in/yaml.v3"
)

// CommandConfig represents a generic command configuration
type CommandConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

// Redis is optional; when Address is set device leases are shared through it
type Redis struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LeaseTTL time.Duration `yaml:"leaseTTL"`
}

// Venue seeds the venue row on first start
type Venue struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Logo           string `yaml:"logo"`
	PrimaryColor   string `yaml:"primaryColor"`
	SecondaryColor string `yaml:"secondaryColor"`
	ContactEmail   string `yaml:"contactEmail"`
}

type Retry struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

type Discovery struct {
	Pattern string                  `yaml:"pattern"`
	Devices []printing.StaticDevice `yaml:"devices"`
}

type Page struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Margin int `yaml:"margin"`
}

type Spool struct {
	Command     string   `yaml:"command"`
	Args        []string `yaml:"args"`
	Destination string   `yaml:"destination"`
	Page        Page     `yaml:"page"`
}

type Printer struct {
	// Transport has no default: chunked or render must be chosen per deployment
	Transport        string        `yaml:"transport"`
	Encoding         string        `yaml:"encoding"`
	ChunkSize        int           `yaml:"chunkSize"`
	ChunkDelay       time.Duration `yaml:"chunkDelay"`
	Retry            Retry         `yaml:"retry"`
	EscPos           bool          `yaml:"escpos"`
	Align            string        `yaml:"align"`
	FeedLines        int           `yaml:"feedLines"`
	Cut              bool          `yaml:"cut"`
	PartialCut       bool          `yaml:"partialCut"`
	USB              Discovery     `yaml:"usb"`
	Bluetooth        Discovery     `yaml:"bluetooth"`
	AutoScanInterval time.Duration `yaml:"autoScanInterval"`
	Owner            string        `yaml:"owner"`
	Spool            Spool         `yaml:"spool"`
}

type ServiceConfig struct {
	Port           int               `yaml:"port"`
	Database       Database          `yaml:"database"`
	Redis          Redis             `yaml:"redis"`
	MQTT           events.MQTTConfig `yaml:"mqtt"`
	Venue          Venue             `yaml:"venue"`
	PricePerPrint  float64           `yaml:"pricePerPrint"`
	Timezone       string            `yaml:"timezone"`
	ThumbnailWidth int               `yaml:"thumbnailWidth"`
	Printer        Printer           `yaml:"printer"`
	PhotoCommands  []CommandConfig   `yaml:"photoCommands"`
	PrintCommands  []CommandConfig   `yaml:"printCommands"`
	AllowedOrigins []string          `yaml:"allowedOrigins"`
}

// a free booth sets pricePerPrint: 0 explicitly
const defaultPricePerPrint = 20

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML over the defaults that zero can't stand in for
	config := ServiceConfig{PricePerPrint: defaultPricePerPrint}
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	applyDefaults(&config)

	if err := validatePrinter(config.Printer); err != nil {
		return nil, fmt.Errorf("invalid printer configuration: %w", err)
	}
	if _, err := time.LoadLocation(config.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
	}
	if config.PricePerPrint < 0 {
		return nil, fmt.Errorf("pricePerPrint must not be negative, got %v", config.PricePerPrint)
	}

	// Validate commands
	if err := validateCommands(config.PhotoCommands); err != nil {
		return nil, fmt.Errorf("invalid photo command configuration: %w", err)
	}
	if err := validateCommands(config.PrintCommands); err != nil {
		return nil, fmt.Errorf("invalid print command configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *ServiceConfig) {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.Database.Type == "" {
		config.Database.Type = "sqlite"
	}
	if config.Database.ConnectionString == "" {
		config.Database.ConnectionString = "photobooth.db"
	}
	if config.Timezone == "" {
		config.Timezone = "Local"
	}
	if config.ThumbnailWidth <= 0 {
		config.ThumbnailWidth = 240
	}

	v := &config.Venue
	if v.ID == "" {
		v.ID = "default"
	}
	if v.Name == "" {
		v.Name = "Polaroid Booth"
	}
	if v.PrimaryColor == "" {
		v.PrimaryColor = "#3498db"
	}
	if v.SecondaryColor == "" {
		v.SecondaryColor = "#e91e63"
	}
	if v.ContactEmail == "" {
		v.ContactEmail = "contact@polaroidbooth.com"
	}

	p := &config.Printer
	if p.Encoding == "" {
		p.Encoding = string(printing.EncodingRaw)
	}
	if p.ChunkSize == 0 {
		p.ChunkSize = printing.DefaultChunkSize
	}
	if p.ChunkDelay == 0 {
		p.ChunkDelay = printing.DefaultChunkDelay
	}
	if p.Retry.MaxAttempts == 0 {
		p.Retry.MaxAttempts = printing.DefaultRetryPolicy.MaxAttempts
	}
	if p.Retry.Backoff == 0 {
		p.Retry.Backoff = printing.DefaultRetryPolicy.Backoff
	}
	if p.Align == "" {
		p.Align = "center"
	}
	if p.Owner == "" {
		if host, err := os.Hostname(); err == nil {
			p.Owner = host
		} else {
			p.Owner = "kiosk"
		}
	}
}

var alignments = map[string]printing.Alignment{
	"left":   printing.AlignLeft,
	"center": printing.AlignCenter,
	"right":  printing.AlignRight,
}

func validatePrinter(p Printer) error {
	switch printing.TransportKind(p.Transport) {
	case printing.TransportChunked, printing.TransportRender:
	case "":
		return fmt.Errorf("transport is required (chunked or render)")
	default:
		return fmt.Errorf("unknown transport %q (chunked or render)", p.Transport)
	}

	switch printing.Encoding(p.Encoding) {
	case printing.EncodingRaw, printing.EncodingEscPosRaster:
	default:
		return fmt.Errorf("unknown encoding %q (raw or escpos-raster)", p.Encoding)
	}
	if printing.TransportKind(p.Transport) == printing.TransportRender &&
		(p.Encoding != string(printing.EncodingRaw) || p.EscPos) {
		return fmt.Errorf("render transport needs the plain image: use encoding raw without escpos")
	}

	if p.ChunkSize < 0 {
		return fmt.Errorf("chunkSize must be positive, got %d", p.ChunkSize)
	}
	if p.ChunkDelay < 0 || p.Retry.Backoff < 0 || p.AutoScanInterval < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if p.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.maxAttempts must be positive, got %d", p.Retry.MaxAttempts)
	}
	if p.FeedLines < 0 || p.FeedLines > 255 {
		return fmt.Errorf("feedLines must be between 0 and 255, got %d", p.FeedLines)
	}
	if _, ok := alignments[p.Align]; !ok {
		return fmt.Errorf("unknown align %q (left, center or right)", p.Align)
	}
	return nil
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		// Validate name is not empty
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}

		// Validate name is unique
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true

		if !commandstructure.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("unknown command: %s", cmd.Name)
		}
	}

	return nil
}

func toCommandConfigs(configs []CommandConfig) []commandstructure.CommandConfig {
	out := make([]commandstructure.CommandConfig, 0, len(configs))
	for _, c := range configs {
		out = append(out, commandstructure.CommandConfig{Name: c.Name, Params: c.Params})
	}
	return out
}

// escPosOptions maps the printer section onto transcoder options
func (p Printer) escPosOptions() printing.EscPosOptions {
	return printing.EscPosOptions{
		Wrap:       p.EscPos,
		Align:      alignments[p.Align],
		FeedLines:  p.FeedLines,
		Cut:        p.Cut,
		PartialCut: p.PartialCut,
	}
}
