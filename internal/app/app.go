package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"npkchat/internal/bot"
	"npkchat/internal/campaign"
	"npkchat/internal/chat"
	"npkchat/internal/config"
	"npkchat/internal/identity"
	"npkchat/internal/poller"
	"npkchat/internal/pricing"
	"npkchat/internal/storage"
	"npkchat/internal/workflow"
)

// App owns the long-lived pieces: the federated identity session, the
// gateways, and the socket transport the router dispatches from.
type App struct {
	log    *slog.Logger
	socket *chat.SocketClient

	cancel context.CancelFunc
}

// New loads configuration, logs on to the identity provider, and wires every
// component into the dispatch router. Login is required up front; nothing
// downstream works with unsigned requests.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session := identity.NewSession(log, cfg.AWSRegion, cfg.Cognito)
	if err := session.Init(ctx); err != nil {
		return nil, fmt.Errorf("identity login: %w", err)
	}

	storageGW, err := storage.NewGateway(log, session, session, cfg.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}

	pricingClient := pricing.NewClient(log, cfg.APIGatewayURL, session)
	campaignClient := campaign.NewClient(log, cfg.APIGatewayURL, session, storageGW, cfg.UserdataBucket, cfg.AWSRegion)

	socket := chat.NewSocketClient(log, cfg.Chat.Endpoint, cfg.Chat.Token)
	router := chat.NewRouter(log, socket)

	polls := poller.NewManager(log, socket, campaignClient, storageGW, cfg)
	wf := workflow.New(log, socket, pricingClient, storageGW, campaignClient, polls, cfg)
	commands := bot.New(log, socket, wf, campaignClient, storageGW, cfg)

	wf.Register(router)
	polls.Register(router)
	commands.Register(router)
	socket.SetRouter(router)

	return &App{log: log, socket: socket}, nil
}

// Start runs the socket event loop until Shutdown or a connection failure.
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.log.Info("connecting to chat transport")
	return a.socket.Run(ctx)
}

func (a *App) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}
