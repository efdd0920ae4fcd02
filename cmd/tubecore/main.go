package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/freetube/tubecore"
	"github.com/freetube/tubecore/async"
	"github.com/freetube/tubecore/downloads"
	"github.com/freetube/tubecore/gateway"
	"github.com/freetube/tubecore/provider/youtube"
	"github.com/freetube/tubecore/resolver"
	"github.com/freetube/tubecore/store/boltdb"
	"github.com/freetube/tubecore/store/sqlitestore"
)

func main() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	logger, err := config.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = tubecore.WithLogger(ctx, logger)

	app := &cli.App{
		Name:  "tubecore",
		Usage: "browse, search and download videos",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  "session-token",
				Usage: "authenticated session cookie for the subscription feed",
			},
			&cli.StringFlag{
				Name:  "library",
				Value: "tubecore.db",
				Usage: "path to the library `DB`",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				config.Level.SetLevel(zapcore.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			trendingCommand(ctx),
			searchCommand(ctx),
			suggestCommand(ctx),
			infoCommand(ctx),
			downloadCommand(ctx),
			subscribeCommand(ctx),
			subscriptionsCommand(),
			historyCommand(),
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
		if err != nil {
			logger.Fatal(err.Error())
		}
	case <-ctx.Done():
		stop()
		if err = <-result; err != nil {
			logger.Fatal(err.Error())
		}
	}
}

func newResolver(c *cli.Context) (*resolver.Resolver, error) {
	gw := gateway.New(gateway.DefaultConfig, youtube.New())
	cfg := resolver.DefaultConfig
	cfg.Gateway = gw
	cfg.SessionToken = c.String("session-token")
	return resolver.New(cfg)
}

func openLibrary(c *cli.Context) (*sqlitestore.Store, error) {
	store, err := sqlitestore.New(c.String("library"))
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func trendingCommand(ctx context.Context) *cli.Command {
	return &cli.Command{
		Name:  "trending",
		Usage: "list trending videos",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "cursor",
				Usage: "continue from a previous page `CURSOR`",
			},
		},
		Action: func(c *cli.Context) error {
			r, err := newResolver(c)
			if err != nil {
				return err
			}
			page, err := r.Trending(ctx, c.String("cursor"))
			if err != nil {
				return err
			}
			for _, v := range page.Items {
				printVideo(v)
			}
			if page.NextCursor != "" {
				fmt.Printf("next page: --cursor %s\n", page.NextCursor)
			}
			return nil
		},
	}
}

func searchCommand(ctx context.Context) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "search for videos, channels and playlists",
		ArgsUsage: "QUERY",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "kind",
				Usage: "restrict results to `KIND` (video, channel, playlist)",
			},
			&cli.StringFlag{
				Name:  "cursor",
				Usage: "continue from a previous page `CURSOR`",
			},
		},
		Action: func(c *cli.Context) error {
			query := c.Args().First()
			if query == "" {
				return fmt.Errorf("search: missing query")
			}
			r, err := newResolver(c)
			if err != nil {
				return err
			}
			filters := tubecore.SearchFilters{Kind: tubecore.SearchResultKind(c.String("kind"))}
			page, err := r.Search(ctx, query, filters, c.String("cursor"))
			if err != nil {
				return err
			}
			if library, lerr := openLibrary(c); lerr == nil {
				if herr := library.RecordSearch(query); herr != nil {
					zap.S().Warnw("failed to record search", "error", herr)
				}
				_ = library.Close()
			}
			for _, result := range page.Items {
				printSearchResult(result)
			}
			if page.NextCursor != "" {
				fmt.Printf("next page: --cursor %s\n", page.NextCursor)
			}
			return nil
		},
	}
}

func suggestCommand(ctx context.Context) *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "show search suggestions for a partial query",
		ArgsUsage: "QUERY",
		Action: func(c *cli.Context) error {
			r, err := newResolver(c)
			if err != nil {
				return err
			}
			suggestions, err := r.Suggestions(ctx, c.Args().First())
			if err != nil {
				return err
			}
			for _, s := range suggestions {
				fmt.Println(s)
			}
			return nil
		},
	}
}

func infoCommand(ctx context.Context) *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "show details for a video, channel or playlist URL",
		ArgsUsage: "URL...",
		Action: func(c *cli.Context) error {
			r, err := newResolver(c)
			if err != nil {
				return err
			}
			for _, arg := range c.Args().Slice() {
				ref, err := tubecore.ParseRef(arg)
				if err != nil {
					return fmt.Errorf("%s: %w", arg, err)
				}
				switch ref.Kind {
				case tubecore.KindVideo:
					v, err := r.Video(ctx, ref)
					if err != nil {
						return err
					}
					printVideo(v)
				case tubecore.KindChannel:
					ch, err := r.Channel(ctx, ref)
					if err != nil {
						return err
					}
					fmt.Printf("%s (%d subscribers)\n", ch.Name, ch.SubscriberCount)
				case tubecore.KindPlaylist:
					pl, err := r.Playlist(ctx, ref)
					if err != nil {
						return err
					}
					fmt.Printf("%s by %s (%d videos)\n", pl.Title, pl.Channel.Name, pl.VideoCount)
				}
			}
			return nil
		},
	}
}

func downloadCommand(ctx context.Context) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "download videos",
		ArgsUsage: "URL...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "target",
				Value: ".",
				Usage: "save downloaded videos to `DIR`",
			},
			&cli.StringFlag{
				Name:  "quality",
				Usage: "preferred quality label, e.g. `720p`",
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "track download state in `DB`",
			},
		},
		Action: func(c *cli.Context) error {
			r, err := newResolver(c)
			if err != nil {
				return err
			}
			cfg := downloads.DefaultConfig
			cfg.SavePath = c.String("target")
			cfg.Source = downloadSource(r)
			if path := c.String("state"); path != "" {
				store, err := boltdb.New(path)
				if err != nil {
					return err
				}
				defer store.Close()
				cfg.Store = store
			}
			manager, err := downloads.New(cfg, ctx)
			if err != nil {
				return err
			}
			defer manager.Close()

			for _, arg := range c.Args().Slice() {
				ref, err := tubecore.ParseVideoRef(arg)
				if err != nil {
					return fmt.Errorf("%s: %w", arg, err)
				}
				if err := download(ctx, manager, ref, tubecore.QualityPref(c.String("quality"))); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func download(ctx context.Context, manager *downloads.Manager, ref tubecore.ResourceRef, quality tubecore.QualityPref) error {
	events, err := manager.Subscribe()
	if err != nil {
		return err
	}
	defer events.Close()

	id, err := manager.Start(ref, quality)
	if err != nil {
		return err
	}

	bar := progressbar.Default(100, ref.ID)
	for {
		select {
		case event, ok := <-events.Receive():
			if !ok {
				return nil
			}
			if event.JobID() != id {
				continue
			}
			switch e := event.(type) {
			case downloads.Progress:
				_ = bar.Set(e.Percent)
			case downloads.StateChanged:
				if !e.State.IsTerminal() && e.State != downloads.StatePaused {
					continue
				}
				_ = bar.Finish()
				if e.State == downloads.StateFailed {
					return fmt.Errorf("download %s failed: %w", id, e.Err)
				}
				fmt.Printf("%s: %s\n", id, e.State)
				return nil
			}
		case <-ctx.Done():
			manager.Pause(id)
			return ctx.Err()
		}
	}
}

// downloadSource resolves a video's metadata and stream bundle, then picks
// the best playable URL for the preferred quality.
func downloadSource(r *resolver.Resolver) downloads.SourceFunc {
	return func(ctx context.Context, ref tubecore.ResourceRef, quality tubecore.QualityPref) (downloads.Target, error) {
		v, err := r.Video(ctx, ref)
		if err != nil {
			return downloads.Target{}, err
		}
		bundle, err := r.Streams(ctx, ref)
		if err != nil {
			return downloads.Target{}, err
		}
		url, ok := tubecore.SelectPlaybackURL(bundle, quality)
		if !ok {
			return downloads.Target{}, tubecore.NewError(tubecore.KindUnavailable, "download",
				fmt.Errorf("no playable stream for %q", ref.ID))
		}
		var size int64
		for _, s := range bundle.Progressive {
			if s.URL == url {
				size = s.SizeBytes
			}
		}
		return downloads.Target{URL: url, Title: v.Title, SizeBytes: size}, nil
	}
}

func subscribeCommand(ctx context.Context) *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "add a channel to the library's subscriptions",
		ArgsUsage: "URL",
		Action: func(c *cli.Context) error {
			ref, err := tubecore.ParseChannelRef(c.Args().First())
			if err != nil {
				return err
			}
			r, err := newResolver(c)
			if err != nil {
				return err
			}
			ch, err := r.Channel(ctx, ref)
			if err != nil {
				return err
			}
			library, err := openLibrary(c)
			if err != nil {
				return err
			}
			defer library.Close()
			if err := library.Subscribe(sqlitestore.Subscription{
				ChannelID: ch.ID,
				Name:      ch.Name,
				AvatarURL: ch.AvatarURL,
			}); err != nil {
				return err
			}
			fmt.Printf("subscribed to %s\n", ch.Name)
			return nil
		},
	}
}

func subscriptionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "subscriptions",
		Usage: "list the library's subscriptions",
		Action: func(c *cli.Context) error {
			library, err := openLibrary(c)
			if err != nil {
				return err
			}
			defer library.Close()
			subs, err := library.ListSubscriptions()
			if err != nil {
				return err
			}
			for _, sub := range subs {
				fmt.Printf("%s\t%s\n", sub.ChannelID, sub.Name)
			}
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "list recent search queries",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Value: 20,
				Usage: "show at most `N` queries",
			},
		},
		Action: func(c *cli.Context) error {
			library, err := openLibrary(c)
			if err != nil {
				return err
			}
			defer library.Close()
			queries, err := library.ListRecentSearches(c.Int("limit"))
			if err != nil {
				return err
			}
			for _, q := range queries {
				fmt.Println(q)
			}
			return nil
		},
	}
}

func printVideo(v tubecore.VideoInfo) {
	views := ""
	if v.ViewCount != tubecore.CountUnknown {
		views = fmt.Sprintf("\t%d views", v.ViewCount)
	}
	fmt.Printf("%s\t%s\t%s%s\n", v.ID, v.Title, v.Channel.Name, views)
}

func printSearchResult(result tubecore.SearchResult) {
	switch result.Kind() {
	case tubecore.SearchResultVideo:
		printVideo(*result.Video())
	case tubecore.SearchResultChannel:
		ch := result.Channel()
		fmt.Printf("%s\t%s\t(channel)\n", ch.ID, ch.Name)
	case tubecore.SearchResultPlaylist:
		pl := result.Playlist()
		fmt.Printf("%s\t%s\t(playlist, %d videos)\n", pl.ID, pl.Title, pl.VideoCount)
	}
}
