package app

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/Yunichie/Play-This-Next/internal/auth/credentials"
	"github.com/Yunichie/Play-This-Next/internal/auth/handler"
	"github.com/Yunichie/Play-This-Next/internal/auth/issuer"
	"github.com/Yunichie/Play-This-Next/internal/auth/linkstate"
	"github.com/Yunichie/Play-This-Next/internal/auth/resolver"
	"github.com/Yunichie/Play-This-Next/internal/auth/steam"
	"github.com/Yunichie/Play-This-Next/internal/config"
	"github.com/Yunichie/Play-This-Next/internal/directory"
	"github.com/Yunichie/Play-This-Next/internal/library"
	"github.com/Yunichie/Play-This-Next/internal/middleware"
	"github.com/Yunichie/Play-This-Next/internal/recommend"
	"github.com/Yunichie/Play-This-Next/internal/session"
	"github.com/Yunichie/Play-This-Next/internal/stats"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	sessionStore := session.NewRedisStore(infra.Redis.Client)
	userDirectory := directory.NewPostgres(infra.DB)

	deriver, err := credentials.NewDeriver(cfg.ServerSecret)
	if err != nil {
		return nil, nil, err
	}

	states, err := linkstate.NewManager(cfg.ServerSecret)
	if err != nil {
		return nil, nil, err
	}

	openIDClient := steam.NewOpenIDClient()
	webAPI := steam.NewWebAPI(cfg.SteamAPIKey)

	identityResolver := resolver.NewDirectoryResolver(userDirectory, deriver)
	sessionIssuer := issuer.New(userDirectory, deriver, sessionStore)
	authMiddleware := middleware.NewAuthMiddleware(sessionStore)

	authHandler := handler.NewHandler(
		openIDClient,
		webAPI,
		states,
		identityResolver,
		sessionIssuer,
		sessionStore,
		authMiddleware,
		userDirectory,
		cfg.BaseURL,
	)

	librarySvc := library.NewService(infra.DB)
	librarySyncer := library.NewSyncer(librarySvc, userDirectory, webAPI)
	libraryHandler := library.NewHandler(librarySvc, librarySyncer)

	statsHandler := stats.NewHandler(stats.NewService(infra.DB))

	gemini := recommend.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	recommendHandler := recommend.NewHandler(
		recommend.NewService(gemini, librarySvc, infra.Redis.Client),
	)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	authHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))

	authHandler.RegisterProtectedRoutes(api)
	libraryHandler.RegisterRoutes(api)
	statsHandler.RegisterRoutes(api)
	recommendHandler.RegisterRoutes(api)

	return router, func() error {
		return infra.DB.Close()
	}, nil
}
