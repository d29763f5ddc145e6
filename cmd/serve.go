package cmd

import (
	"github.com/sepetli/kimlik/api"
	"github.com/sepetli/kimlik/tokens"
	"github.com/sepetli/kimlik/user"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCommand = cobra.Command{
	Use:   "serve",
	Short: "starts the http server",
	Long:  `Starts a http server and serves the service`,
	Run: func(cmd *cobra.Command, args []string) {
		//this is our composite root - might wanna shift that somewhere else later

		//setup datastore
		dataStore := mustResolveUsableDataStore()

		//events dispatcher
		dispatcher := bootstrapDispatcher(dataStore.Auditor())

		//redis backed components degrade to memory when redis is absent
		redisClient := resolveRedisClient()
		pending := resolvePendingStore(redisClient)
		tracker := resolveAttemptTracker(redisClient, dispatcher)

		//setup token issuer
		issuer := tokens.NewIssuer(TopLevelLogger.Named("token_issuer"), LoadedConfig.JWT)

		//setup mailer
		mailer := mustResolveMailer()

		//the decoder only parses, the verifier consults the blacklist too
		decoder := tokens.NewTokenVerifier(TopLevelLogger.Named("token_decoder"), issuer, nil)
		blacklist := tokens.NewBlacklist(
			TopLevelLogger.Named("token_blacklist"),
			dataStore,
			decoder,
			dispatcher,
		)
		verifier := tokens.NewTokenVerifier(TopLevelLogger.Named("token_verifier"), issuer, blacklist)

		//setup business services
		userService := user.New(
			dataStore,
			pending,
			TopLevelLogger.Named("user_service"),
			LoadedConfig.Behaviour,
			mailer,
			dispatcher,
		)
		signInService := user.NewSignInService(
			dataStore,
			TopLevelLogger.Named("signin_service"),
			tracker,
			issuer,
			verifier,
			blacklist,
			dispatcher,
		)

		//background housekeeping sweep
		cleaner := tokens.NewCleaner(
			TopLevelLogger.Named("cleaner"),
			blacklist,
			dataStore,
			LoadedConfig.Behaviour.CleanupInterval,
		)

		server, err := api.NewServer(LoadedConfig, TopLevelLogger.Named("server"),
			userService,
			signInService,
			verifier,
			dataStore,
			pending,
			redisClient,
			cleaner,
		)
		if err != nil {
			TopLevelLogger.Fatal("Failed to create server", zap.Error(err))
		}
		server.Start()
		TopLevelLogger.Info("Shutdown complete")
	},
}

func init() {
	viper.SetDefault("port", "3000")
	viper.SetDefault("log_level", "debug")
}
