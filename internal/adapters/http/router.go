package http

import (
	"context"
	"net"
	nethttp "net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pierrecuevas/Tarea-Chat/internal/adapters/udp"
	"github.com/pierrecuevas/Tarea-Chat/internal/adapters/ws"
	"github.com/pierrecuevas/Tarea-Chat/internal/app"
	"github.com/pierrecuevas/Tarea-Chat/internal/config"
)

// ConnServer runs the control protocol over a connection.
type ConnServer interface {
	ServeConn(ctx context.Context, conn net.Conn)
}

// RelayStats exposes UDP relay counters.
type RelayStats interface {
	Snapshot() udp.Snapshot
}

type Deps struct {
	Directory *app.Directory
	Calls     *app.CallRegistry
	Relay     RelayStats
	Control   ConnServer
}

const clientTokenKey = "client_token"

// ClientTokenMiddleware gives every browser a stable token kept in the
// signed session cookie. It only labels logs; it grants nothing.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Str("module", "adapters.http").Err(err).Msg("session save")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("ChatSessions", store))
	r.Use(ClientTokenMiddleware())

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok", "online": deps.Directory.Count()})
	})
	api.GET("/users/online", func(c *gin.Context) {
		users := deps.Directory.Online()
		if users == nil {
			users = []string{}
		}
		c.JSON(nethttp.StatusOK, gin.H{"users": users})
	})
	api.GET("/calls", func(c *gin.Context) {
		resp := gin.H{"pairs": deps.Calls.Pairs()}
		if deps.Relay != nil {
			resp["relay"] = deps.Relay.Snapshot()
		}
		c.JSON(nethttp.StatusOK, resp)
	})
	api.GET("/ws", func(c *gin.Context) {
		serveWS(ctx, c, deps.Control)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *nethttp.Request) bool { return true },
}

// serveWS upgrades and runs the control session until it ends.
func serveWS(ctx context.Context, c *gin.Context, control ConnServer) {
	token := c.GetString(clientTokenKey)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Str("module", "adapters.http").Err(err).Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "adapters.http").Str("client", token).Msg("ws control connection")
	control.ServeConn(ctx, ws.NewConn(conn))
}
