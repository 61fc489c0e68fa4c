package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/feed-system/warbler/internal/config"
	"github.com/feed-system/warbler/internal/repository"
	"github.com/feed-system/warbler/internal/seed"
	"github.com/feed-system/warbler/internal/services"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/feed-system/warbler/pkg/queue"
	"github.com/spf13/cobra"
)

var opts seed.Options

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with fake users, follows, messages and likes",
	Long: `Migrate the configured database and populate it with generated data.

Every seeded account uses the password "` + seed.DefaultPassword + `".

Examples:
  seed --users 50 --messages 10
  WARBLER_DATABASE_DRIVER=sqlite WARBLER_DATABASE_PATH=dev.db seed`,
	SilenceUsage: true,
	RunE:         runSeed,
}

func init() {
	rootCmd.Flags().IntVar(&opts.Users, "users", 20, "number of users to create")
	rootCmd.Flags().IntVar(&opts.MessagesPerUser, "messages", 5, "messages per user")
	rootCmd.Flags().IntVar(&opts.FollowsPerUser, "follows", 5, "follows per user")
	rootCmd.Flags().IntVar(&opts.LikesPerUser, "likes", 10, "likes per user")
	rootCmd.Flags().Int64Var(&opts.Seed, "seed", time.Now().UnixNano(), "random seed")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// 种子数据不发送事件
	publisher := queue.NopPublisher{}

	userRepo := repository.NewUserRepository(db.DB)
	followRepo := repository.NewFollowRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	likeRepo := repository.NewLikeRepository(db.DB)

	seeder := seed.NewSeeder(
		services.NewAuthService(userRepo, publisher, log),
		services.NewUserService(db.DB, userRepo, followRepo, messageRepo, likeRepo, publisher, log),
		services.NewMessageService(db.DB, messageRepo, likeRepo, userRepo, publisher, log),
		services.NewLikeService(db.DB, likeRepo, messageRepo, userRepo, publisher, log),
		log,
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	summary, err := seeder.Run(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d messages, %d follows, %d likes\n",
		summary.Users, summary.Messages, summary.Follows, summary.Likes)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
