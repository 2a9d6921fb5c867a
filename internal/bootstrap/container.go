package bootstrap

import (
	"context"
	"log"

	"algo-collab-be/internal/config"
	"algo-collab-be/internal/controller"
	"algo-collab-be/internal/document"
	"algo-collab-be/internal/handler"
	"algo-collab-be/internal/pkg/logger"
	"algo-collab-be/internal/pkg/mailer"
	"algo-collab-be/internal/presence"
	"algo-collab-be/internal/repository/unitofwork"
	"algo-collab-be/internal/service"
	"algo-collab-be/internal/session"
	"algo-collab-be/internal/websocket"

	pktNats "algo-collab-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	SessionController controller.ISessionController
	CommentController controller.ICommentController

	// WebSockets
	CollabHandler *handler.CollabHandler
	WebSocketHub  *websocket.Hub

	// Background services (exposed for main.go to run)
	FlushWorkerService service.IFlushWorkerService
	PresenceTracker    *presence.Tracker
	DocumentStore      *document.Store
	SessionManager     *session.Manager
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.Email,
		cfg.SMTP.SenderName,
		cfg.App.ClientURL,
	)

	// 2. Flush queue (in-process)
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	publisherService := service.NewPublisherService(pubSub, cfg.Collab.FlushTopicName)
	flushWorker := service.NewFlushWorkerService(
		pubSub,
		cfg.Collab.FlushTopicName,
		uowFactory,
		sysLogger,
		cfg.Collab.FlushRetryLimit,
	)

	// 2.5 Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// Events are best effort; a nil publisher just disables them.
	var eventPublisher service.IEventPublisher
	if natsPub != nil {
		eventPublisher = natsPub
	}

	// 3. Realtime core
	wsLogger := logger.NewIsolatedLogger("logs/collab.log")

	tracker := presence.NewTracker(cfg.Collab.HeartbeatTimeout, wsLogger)
	docStore := document.NewStore(
		cfg.Collab.DocGracePeriod,
		service.NewSnapshotSink(publisherService),
		uowFactory,
		sysLogger,
	)
	sessionManager := session.NewManager(uowFactory, sysLogger)

	wsHub := websocket.NewHub(rdb, docStore, wsLogger)
	go wsHub.Run()

	// 4. Services
	sessionService := service.NewSessionService(sessionManager, tracker, docStore, eventPublisher, sysLogger)
	commentService := service.NewCommentService(uowFactory, eventPublisher, sysLogger)

	gateway := websocket.NewGateway(
		wsHub,
		sessionService,
		commentService,
		docStore,
		tracker,
		wsLogger,
		cfg.Collab.OutboundBuffer,
	)
	tracker.OnLeave(gateway.NotifyLeft)

	// Mention mailer worker off the durable event stream
	if natsSub != nil {
		mentionWorker := service.NewMentionWorkerService(natsSub, uowFactory, emailService, sysLogger)
		if err := mentionWorker.Start(); err != nil {
			log.Printf("[WARN] Mention worker failed to start: %v", err)
		}
	}

	return &Container{
		SessionController: controller.NewSessionController(sessionService),
		CommentController: controller.NewCommentController(commentService),

		CollabHandler: handler.NewCollabHandler(gateway, wsLogger),
		WebSocketHub:  wsHub,

		FlushWorkerService: flushWorker,
		PresenceTracker:    tracker,
		DocumentStore:      docStore,
		SessionManager:     sessionManager,
	}
}
