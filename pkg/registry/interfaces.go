package registry

//go:generate mockgen -destination=mock_registry.go -package=registry github.com/carverauto/ssdpradar/pkg/registry Enricher,SocketManager,Clock,Ticker,Listener

import (
	"context"
	"time"

	"github.com/carverauto/ssdpradar/pkg/logger"
	"github.com/carverauto/ssdpradar/pkg/models"
	"github.com/carverauto/ssdpradar/pkg/netif"
	"github.com/carverauto/ssdpradar/pkg/transport"
)

// Enricher fetches descriptive detail for an announced device. A nil result
// or an error both count as failure.
type Enricher interface {
	EnrichDevice(ctx context.Context, ann *models.Announcement, level models.DetailLevel) (models.Details, error)
}

// SocketManager is the part of the transport the registry drives.
type SocketManager interface {
	SendMSearch(ctx context.Context, searchTarget string, family netif.Family) error
	CloseAll() []transport.CloseResult
}

// SocketOpener creates the SocketManager on Start.
type SocketOpener func(
	ctx context.Context,
	opts transport.Options,
	onMessage transport.MessageHandler,
	onError transport.ErrorHandler,
	log logger.Logger,
) (SocketManager, error)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Listener receives registry lifecycle events.
type Listener interface {
	HandleEvent(evt Event)
}
