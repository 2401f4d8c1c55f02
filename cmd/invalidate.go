package cmd

import (
	"context"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/youthguide-na/opportunity-finder/internal/corpus"
	"github.com/youthguide-na/opportunity-finder/internal/logger"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Tell running searches that the opportunity data changed",
	Long: "Publishes the data changed signal on the configured Redis channel. " +
		"Run it after a scrape run has written new data so cached corpora are reloaded.",
	Run: func(cmd *cobra.Command, _ []string) {
		invalidate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(invalidateCmd)

	invalidateCmd.Flags().String("reason", "scrape finished", "payload sent with the signal")
}

func invalidate(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config.Redis == nil || strings.TrimSpace(config.Redis.URL) == "" {
		logger.Fatal("redis is not configured",
			zap.String("hint", "set redis.url in the configuration file or OPPFINDER_REDIS_URL"),
		)
	}

	client, err := corpus.NewRedisClient(ctx, config.Redis.URL)
	if err != nil {
		logger.Fatal("connecting to redis", zap.Error(err))
	}
	defer client.Close()

	reason, _ := cmd.Flags().GetString("reason")
	receivers, err := corpus.PublishInvalidation(ctx, client, config.Redis.Channel, reason)
	if err != nil {
		logger.Fatal("publishing data changed signal", zap.Error(err))
	}

	logger.Info("data changed signal published",
		zap.String("channel", config.Redis.Channel),
		zap.Int64("receivers", receivers),
	)
}
