package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/duet/chat-app/internal/ban"
	"github.com/duet/chat-app/internal/config"
	"github.com/duet/chat-app/internal/engine"
	"github.com/duet/chat-app/internal/messaging"
	"github.com/duet/chat-app/internal/metrics"
	"github.com/duet/chat-app/internal/prefs"
	"github.com/duet/chat-app/internal/protocol"
	"github.com/duet/chat-app/internal/ratelimit"
	"github.com/duet/chat-app/internal/session"
	"github.com/duet/chat-app/internal/ws"
)

func main() {
	log.Println("Starting Duet pairing server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Redis backs settings persistence and rate limiting.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	cancel()

	// NATS carries the abuse bus to the moderator service.
	natsConfig := messaging.DefaultConfig()
	natsConfig.URL = cfg.NatsURL
	natsConfig.Name = "duet-server"
	natsClient, err := messaging.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	policy := ban.NewPolicy()
	policy.SetOnReport(func(n ban.Notice) {
		ev := messaging.ReportEvent{
			ReporterID: n.ReporterID,
			ReportedID: n.ReportedID,
			Count:      n.Count,
			At:         time.Now(),
		}
		if err := natsClient.PublishReport(ev); err != nil {
			log.Printf("[main] publish report event: %v", err)
		}
		if n.Banned {
			metrics.BansTotal.Inc()
			bev := messaging.BanEvent{
				UserID:   n.ReportedID,
				Count:    n.Count,
				BanUntil: n.BanUntil,
				At:       time.Now(),
			}
			if err := natsClient.PublishBan(bev); err != nil {
				log.Printf("[main] publish ban event: %v", err)
			}
		}
	})

	sessions := session.NewStore()
	prefsStore := prefs.NewStore(rdb)
	limiter := ratelimit.NewLimiter(rdb)

	eng := engine.New(sessions, policy)
	eng.SetStats(prefsStore)

	dispatcher := ws.NewDispatcher()
	server := ws.NewServer(ws.ServerConfig{
		ListenAddr:     cfg.ListenAddr,
		WorkerPoolSize: cfg.WorkerPoolSize,
		MaxConnections: cfg.MaxConnections,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	}, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	app := &application{
		engine:   eng,
		sessions: sessions,
		policy:   policy,
		prefs:    prefsStore,
		limiter:  limiter,
		server:   server,
	}
	app.registerHandlers(dispatcher)

	// A dropped connection is an implicit leave: the partner is told and
	// the user's queue slot and skip record are released.
	server.SetOnDisconnect(func(userID string) {
		app.deliver(eng.Leave(userID))
	})

	ctx, stop := context.WithCancel(context.Background())
	eng.StartSweeper(ctx, cfg.SweepInterval)
	startBanSweeper(ctx, policy, cfg.SweepInterval)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	log.Printf("Duet pairing server running")
	log.Printf("  listen_addr: %s", cfg.ListenAddr)
	log.Printf("  redis_addr:  %s", cfg.RedisAddr)
	log.Printf("  nats_url:    %s", cfg.NatsURL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	stop()
	if err := server.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	natsClient.Close()
	rdb.Close()
}

// startBanSweeper periodically drops stale report records.
func startBanSweeper(ctx context.Context, policy *ban.Policy, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := policy.Sweep(); n > 0 {
					log.Printf("[ban] swept %d stale report records", n)
				}
			}
		}
	}()
}

// application glues the transport to the pairing engine: it registers the
// per-message handlers and translates engine events into wire messages.
type application struct {
	engine   *engine.Engine
	sessions *session.Store
	policy   *ban.Policy
	prefs    *prefs.Store
	limiter  *ratelimit.Limiter
	server   *ws.Server
}

func (a *application) registerHandlers(d *ws.Dispatcher) {
	d.Register(protocol.TypeJoin, a.handleJoin)
	d.Register(protocol.TypeLeave, a.handleLeave)
	d.Register(protocol.TypeSkip, a.handleSkip)
	d.Register(protocol.TypeUndoSkip, a.handleUndoSkip)
	d.Register(protocol.TypeMessage, a.handleMessage)
	d.Register(protocol.TypeTyping, a.handleTyping)
	d.Register(protocol.TypeReport, a.handleReport)
	d.Register(protocol.TypeRevealRequest, a.handleRevealRequest)
	d.Register(protocol.TypeRevealDecline, a.handleRevealDecline)
	d.Register(protocol.TypeSetProfile, a.handleSetProfile)
}

func (a *application) handleJoin(conn *ws.Connection, msg interface{}) {
	m, ok := msg.(protocol.JoinMsg)
	if !ok {
		return
	}

	if banned, until := a.policy.IsBanned(conn.ID); banned {
		a.send(conn.ID, protocol.TypeBanned, protocol.BannedMsg{Until: until.Unix()})
		return
	}
	if !a.limiter.Allow(context.Background(), conn.ID, ratelimit.RuleJoin) {
		a.send(conn.ID, protocol.TypeRateLimited, protocol.RateLimitedMsg{
			RetryAfter: int(ratelimit.RuleJoin.Window.Seconds()),
		})
		return
	}

	filters := &engine.Filters{
		Gender:     m.Gender,
		Preference: m.Preference,
		Language:   m.Language,
	}
	a.deliver(a.engine.Join(conn.ID, conn.ID, filters))
	a.persistProfile(conn.ID)
}

func (a *application) handleLeave(conn *ws.Connection, msg interface{}) {
	a.deliver(a.engine.Leave(conn.ID))
}

func (a *application) handleSkip(conn *ws.Connection, msg interface{}) {
	if !a.limiter.Allow(context.Background(), conn.ID, ratelimit.RuleJoin) {
		a.send(conn.ID, protocol.TypeRateLimited, protocol.RateLimitedMsg{
			RetryAfter: int(ratelimit.RuleJoin.Window.Seconds()),
		})
		return
	}
	a.deliver(a.engine.Skip(conn.ID, conn.ID))
}

func (a *application) handleUndoSkip(conn *ws.Connection, msg interface{}) {
	a.deliver(a.engine.UndoSkip(conn.ID, conn.ID))
}

func (a *application) handleMessage(conn *ws.Connection, msg interface{}) {
	m, ok := msg.(protocol.ChatMsg)
	if !ok {
		return
	}

	if err := protocol.ValidateChat(m); err != nil {
		a.send(conn.ID, protocol.TypeError, protocol.ErrorMsg{
			Code:    "invalid_message",
			Message: err.Error(),
		})
		return
	}
	if !a.limiter.Allow(context.Background(), conn.ID, ratelimit.RuleMessage) {
		a.send(conn.ID, protocol.TypeRateLimited, protocol.RateLimitedMsg{
			RetryAfter: int(ratelimit.RuleMessage.Window.Seconds()),
		})
		return
	}

	kind := "text"
	if m.MediaID != "" {
		kind = "media"
	}
	a.deliver(a.engine.ForwardMessage(conn.ID, engine.Payload{
		Kind:    kind,
		Text:    m.Text,
		MediaID: m.MediaID,
		Caption: m.Caption,
	}))
}

func (a *application) handleTyping(conn *ws.Connection, msg interface{}) {
	m, ok := msg.(protocol.TypingMsg)
	if !ok {
		return
	}

	for _, ev := range a.engine.Typing(conn.ID) {
		// Delivery respects the recipient's indicator preference.
		if sess, found := a.sessions.Lookup(ev.UserID); found && !sess.ShowTyping {
			continue
		}
		a.send(ev.Address, protocol.TypeTyping, protocol.ServerTypingMsg{IsTyping: m.IsTyping})
	}
}

func (a *application) handleReport(conn *ws.Connection, msg interface{}) {
	a.deliver(a.engine.ReportPartner(conn.ID))
}

func (a *application) handleRevealRequest(conn *ws.Connection, msg interface{}) {
	a.deliver(a.engine.RequestReveal(conn.ID))
}

func (a *application) handleRevealDecline(conn *ws.Connection, msg interface{}) {
	a.deliver(a.engine.DeclineReveal(conn.ID))
}

func (a *application) handleSetProfile(conn *ws.Connection, msg interface{}) {
	m, ok := msg.(protocol.SetProfileMsg)
	if !ok {
		return
	}

	a.sessions.SetProfile(conn.ID, m.Gender, m.Preference, m.Language)
	if m.Age > 0 {
		a.sessions.SetAge(conn.ID, m.Age)
	}
	if m.ShowTyping != nil {
		a.sessions.SetShowTyping(conn.ID, *m.ShowTyping)
	}
	a.persistProfile(conn.ID)
}

// persistProfile mirrors the session's current settings to Redis.
func (a *application) persistProfile(userID string) {
	sess, found := a.sessions.Lookup(userID)
	if !found {
		return
	}
	a.prefs.SaveProfile(userID, prefs.Profile{
		Gender:     sess.Gender,
		Preference: sess.Preference,
		Language:   sess.Language,
		Age:        sess.Age,
		ShowTyping: sess.ShowTyping,
	})
}

// deliver translates engine events into wire messages and sends them.
// A matched event carries both sides and is delivered to each.
func (a *application) deliver(events []engine.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case engine.EventMatched:
			a.send(ev.Address, protocol.TypeMatched, nil)
			a.send(ev.PartnerAddress, protocol.TypeMatched, nil)

		case engine.EventForwardMessage:
			a.send(ev.Address, protocol.TypeMessage, protocol.ServerChatMsg{
				Text:    ev.Payload.Text,
				MediaID: ev.Payload.MediaID,
				Caption: ev.Payload.Caption,
				Ts:      time.Now().Unix(),
			})

		case engine.EventTyping:
			// Typing events from non-typing operations do not occur; the
			// typing handler delivers these itself with the client's state.

		case engine.EventRevealAccepted:
			a.send(ev.Address, protocol.TypeRevealAccepted, protocol.RevealAcceptedMsg{
				PartnerID: ev.PartnerID,
			})

		default:
			a.send(ev.Address, wireType(ev.Kind), nil)
		}
	}
}

// wireType maps an engine event kind to its wire message type.
func wireType(kind engine.EventKind) string {
	switch kind {
	case engine.EventWaiting:
		return protocol.TypeWaiting
	case engine.EventPartnerLeft:
		return protocol.TypePartnerLeft
	case engine.EventSkipped:
		return protocol.TypeSkipped
	case engine.EventAlreadyChatting:
		return protocol.TypeAlreadyChatting
	case engine.EventAlreadyWaiting:
		return protocol.TypeAlreadyWaiting
	case engine.EventNotInChat:
		return protocol.TypeNotInChat
	case engine.EventUndoExpired:
		return protocol.TypeUndoExpired
	case engine.EventPartnerBusy:
		return protocol.TypePartnerBusy
	case engine.EventRevealRequested:
		return protocol.TypeRevealRequested
	case engine.EventRevealDeclined:
		return protocol.TypeRevealDeclined
	case engine.EventRevealAlreadyRequested:
		return protocol.TypeRevealPending
	case engine.EventReportReceived:
		return protocol.TypeReportReceived
	case engine.EventReportAlreadySubmitted:
		return protocol.TypeReportDuplicate
	default:
		return protocol.TypeError
	}
}

func (a *application) send(address, msgType string, payload interface{}) {
	if address == "" {
		return
	}
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		log.Printf("[main] build %s message: %v", msgType, err)
		return
	}
	if err := a.server.SendMessage(address, data); err != nil {
		log.Printf("[main] send %s to %s: %v", msgType, address, err)
	}
}
