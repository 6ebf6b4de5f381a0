package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dockerplatform/registry-gate/pkg/cache"
	"github.com/dockerplatform/registry-gate/pkg/domain"
	"github.com/dockerplatform/registry-gate/pkg/domain/sync"
	"github.com/dockerplatform/registry-gate/pkg/domain/token"
	"github.com/dockerplatform/registry-gate/pkg/http/handler"
	"github.com/dockerplatform/registry-gate/pkg/http/middleware"
	"github.com/dockerplatform/registry-gate/pkg/storage/memory"
	"github.com/dockerplatform/registry-gate/pkg/storage/sqlite"
)

const (
	configLogLevel  = "log.level"
	configLogFormat = "log.format"

	configServerAddress         = "server.address"
	configServerTimeoutRead     = "server.timeout.read"
	configServerTimeoutWrite    = "server.timeout.write"
	configServerShutdownTimeout = "server.shutdown.timeout"
	configServerLogRequests     = "server.log.requests"

	configTokenIssuer   = "token.issuer"
	configTokenKeyId    = "token.key.id"
	configTokenKeyPath  = "token.key.path"
	configTokenAudience = "token.audience"

	configStorageDriver     = "storage.driver"
	configStorageSqlitePath = "storage.sqlite.path"

	configCacheTtl = "cache.ttl"

	configUsers        = "users"
	configRepositories = "repositories"
)

var (
	Build   = "unknown"
	Version = "unknown"
)

func loadConfiguration() {
	// Verbose is a shortcut for `log.level = debug`
	viper.SetDefault("verbose", false)
	pflag.BoolP("verbose", "v", false, "Shortcut for verbose logs (debug level)")

	// Config file flag
	pflag.StringP("config", "c", "", "Config file")

	pflag.String(configLogLevel, "info", "Log level")
	pflag.String(configLogFormat, "json", "Log output format")

	// HTTP server config
	pflag.String(configServerAddress, "0.0.0.0:8000", "HTTP server bind address")
	pflag.Duration(configServerTimeoutRead, 5*time.Second, "HTTP server read timeout")
	pflag.Duration(configServerTimeoutWrite, 10*time.Second, "HTTP server write timeout")
	pflag.Duration(configServerShutdownTimeout, 30*time.Second, "HTTP server graceful shutdown timeout")
	pflag.Bool(configServerLogRequests, true, "HTTP server request logging")

	// Registry token config; issuer, key id and key path must match what the
	// registry is configured to trust (auth.token.issuer etc.)
	pflag.String(configTokenIssuer, "registry-gate", "Token issuer claim")
	pflag.String(configTokenKeyId, "", "Key id (kid) of the signing key")
	pflag.String(configTokenKeyPath, "registry-auth.key", "Path to the PKCS#8 PEM signing key")
	pflag.String(configTokenAudience, "local-registry", "Default token audience when the request names no service")

	// Tag catalog storage
	pflag.String(configStorageDriver, "memory", "Tag catalog storage driver (memory, sqlite)")
	pflag.String(configStorageSqlitePath, "registry-gate.db", "SQLite database path")

	// Listing cache
	pflag.Duration(configCacheTtl, 5*time.Minute, "Listing cache TTL")

	pflag.Parse()

	// NOTE: we don't have logger configured yet as we haven't read all sources of configuration
	// so we're using default logrus logger as fallback
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		logrus.WithError(err).Fatal("Couldn't bind flags")
	}

	// Read config from environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("registrygate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config from config file
	if configFile := viper.GetString("config"); configFile != "" {
		// If user do specify config file, then this file MUST exist and be valid
		// so missing file is a fatal error

		viper.SetConfigFile(configFile)

		if err := viper.ReadInConfig(); err != nil {
			logrus.WithError(err).Fatal("Couldn't read config file")
		}
	} else {
		// If user does not specify config file, then we'll still try to find appropriate config,
		// but missing file is not an error

		viper.SetConfigName("registry-gate")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/registry-gate")

		if err := viper.ReadInConfig(); err != nil {
			logrus.WithError(err).Warn("Couldn't read config file")
		}
	}
}

func mustCreateLoggers() (logrus.FieldLogger, *log.Logger) {
	// logrus logger is used anywhere throughout the app
	logrusLogger := logrus.StandardLogger()

	level, err := logrus.ParseLevel(viper.GetString(configLogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	if viper.GetBool("verbose") {
		level = logrus.DebugLevel
	}

	logrusLogger.SetLevel(level)

	switch viper.GetString(configLogFormat) {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{})
	default:
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	loggerWriter := logrusLogger.Writer()
	// NOTE: loggerWriter is never closed, but logger is supposed to live until application is closed, so this is fine

	// default logger writer is used as sink for `http.Server`'s `ErrorLog`
	defaultLogger := log.New(loggerWriter, "", 0)

	return logrusLogger, defaultLogger
}

// User and repository directories belong to the main application; this
// service reads a snapshot of them from config.
type userConfig struct {
	Id           int64  `mapstructure:"id"`
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
}

type repositoryConfig struct {
	Id       int64  `mapstructure:"id"`
	OwnerId  int64  `mapstructure:"owner_id"`
	Owner    string `mapstructure:"owner"`
	Name     string `mapstructure:"name"`
	Public   bool   `mapstructure:"public"`
	Official bool   `mapstructure:"official"`
}

func mustLoadDirectories(logger logrus.FieldLogger) (*memory.UserRepository, *memory.RepositoryRepository) {
	var userConfigs []userConfig
	if err := viper.UnmarshalKey(configUsers, &userConfigs); err != nil {
		logger.WithError(err).Fatal("Couldn't read users from config")
	}

	users := make([]domain.User, 0, len(userConfigs))
	for _, u := range userConfigs {
		users = append(users, domain.User{
			Id:           u.Id,
			Username:     u.Username,
			PasswordHash: u.PasswordHash,
			Role:         domain.Role(u.Role),
		})
	}

	var repositoryConfigs []repositoryConfig
	if err := viper.UnmarshalKey(configRepositories, &repositoryConfigs); err != nil {
		logger.WithError(err).Fatal("Couldn't read repositories from config")
	}

	repositories := make([]domain.Repository, 0, len(repositoryConfigs))
	for _, r := range repositoryConfigs {
		repositories = append(repositories, domain.Repository{
			Id:       r.Id,
			OwnerId:  r.OwnerId,
			Owner:    r.Owner,
			Name:     r.Name,
			Public:   r.Public,
			Official: r.Official,
		})
	}

	return memory.NewUserRepository(users), memory.NewRepositoryRepository(repositories)
}

func mustCreateTagRepository(logger logrus.FieldLogger) domain.TagRepository {
	switch driver := viper.GetString(configStorageDriver); driver {
	case "memory":
		return memory.NewTagRepository()
	case "sqlite":
		db, err := sqlite.Open(viper.GetString(configStorageSqlitePath))
		if err != nil {
			logger.WithError(err).Fatal("Couldn't open tag catalog database")
		}
		return sqlite.NewTagRepository(db)
	default:
		logger.Fatalf("Unknown storage driver '%s'", driver)
		return nil
	}
}

func main() {
	loadConfiguration()

	// we have to create both logrus logger and adapter of default golang logger specially for http.Server
	logger, httpErrorLogger := mustCreateLoggers()

	logger.WithFields(logrus.Fields{
		"build":   Build,
		"version": Version,
	}).Info("Registry Gate is starting...")

	// Services and dependencies
	userRepository, repositoryRepository := mustLoadDirectories(logger)
	tagRepository := mustCreateTagRepository(logger)
	listingCache := cache.NewListingCache(viper.GetDuration(configCacheTtl))

	// Signing key failure is fatal: nothing useful can be served without it
	signingContext, err := token.LoadSigningContext(
		viper.GetString(configTokenKeyPath),
		viper.GetString(configTokenKeyId),
		viper.GetString(configTokenIssuer),
		viper.GetString(configTokenAudience),
	)
	if err != nil {
		logger.WithError(err).Fatal("Couldn't load token signing key")
	}

	tokenService := token.NewService(userRepository, repositoryRepository, signingContext)
	syncService := sync.NewService(repositoryRepository, tagRepository, listingCache)

	// HTTP router, handlers and middleware
	router := mux.NewRouter()

	healthHandler := handler.NewHealthHandler()
	tokenHandler := handler.NewTokenHandler(userRepository, tokenService)
	eventsHandler := handler.NewEventsHandler(syncService)
	tagsHandler := handler.NewTagsHandler(repositoryRepository, tagRepository, listingCache)

	router.Handle("/health", healthHandler)
	router.Handle("/auth/token", tokenHandler).Methods(http.MethodGet)
	router.Handle("/registry/events", eventsHandler).Methods(http.MethodPost)
	router.Handle("/registry/repositories/{owner}/{name}/tags", tagsHandler).Methods(http.MethodGet)

	var httpHandler http.Handler = router

	if viper.GetBool(configServerLogRequests) {
		httpHandler = middleware.WithRequestLogging(httpHandler)
	}
	httpHandler = middleware.WithLogger(httpHandler, logger)
	httpHandler = middleware.WithRequestId(httpHandler, middleware.DefaultRequestIdProvider)

	addr := viper.GetString(configServerAddress)

	// HTTP server
	server := &http.Server{
		Addr:         addr,
		Handler:      httpHandler,
		ErrorLog:     httpErrorLogger,
		ReadTimeout:  viper.GetDuration(configServerTimeoutRead),
		WriteTimeout: viper.GetDuration(configServerTimeoutWrite),
	}

	// Shutdown notification channels
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)

	// Graceful shutdown
	go func() {
		<-quit
		logger.Info("Registry Gate is shutting down...")
		healthHandler.SetHealth(false)

		ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration(configServerShutdownTimeout))
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.WithError(err).Fatal("Could not gracefully shutdown the server")
		}
		close(done)
	}()

	// Run HTTP server
	logger.Infof("Server is ready to handle requests at %s", addr)
	healthHandler.SetHealth(true)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatalf("Could not listen on %s", addr)
	}

	// Wait for graceful shutdown
	<-done
	logger.Info("Registry Gate stopped")
}
