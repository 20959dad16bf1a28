package constants

import "time"

// Application constants centralized in one location to improve type safety
// and eliminate magic strings throughout the codebase

// Default Configuration Values
const (
	// Server defaults
	DefaultPort     = 6660
	DefaultLogLevel = "INFO"
	DefaultMinFloor = 0
	DefaultMaxFloor = 9

	// Timing defaults
	DefaultTravelTimePerFloor = 500 * time.Millisecond
	DefaultDoorOpenTime       = 2 * time.Second

	// WebSocket update interval
	StatusUpdateInterval = 1 * time.Second

	// Bank/strategy defaults
	DefaultEstimationLimit = 30 * time.Second
	DefaultUseFreeFirst    = true
	DefaultNrOfElevators   = 3
	DefaultInitialFloor    = 0
)

// HTTP Content Types
const (
	ContentTypeJSON      = "application/json"
	ContentTypeTextPlain = "text/plain"
)

// HTTP Methods
const (
	MethodGET  = "GET"
	MethodPOST = "POST"
)

// Component Names for Logging
const (
	ComponentHTTPServer  = "http-server"
	ComponentHTTPHandler = "http_handler"
	ComponentElevator    = "elevator"
	ComponentBank        = "bank"
	ComponentRoute       = "route"
	ComponentStrategy    = "strategy"
	ComponentCabIO       = "cabio"
)

// Floor Validation Limits
const (
	MinAllowedFloor = -100 // Reasonable minimum for basements
	MaxAllowedFloor = 200  // Reasonable maximum for skyscrapers
)

// Metrics
const (
	MetricsNamespace  = "elevator"
	ElevatorNameLabel = "elevator"
)

// Default Elevator Names
const (
	DefaultElevatorPrefix = "Elevator"
)
