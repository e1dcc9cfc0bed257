package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/redstring/corkboard/internal/queue"
	"github.com/redstring/corkboard/internal/util"
	"github.com/redstring/corkboard/pkg/agent"
	"github.com/redstring/corkboard/pkg/ai"
	oai "github.com/redstring/corkboard/pkg/ai/ollama"
	gai "github.com/redstring/corkboard/pkg/ai/openai"
	"github.com/redstring/corkboard/pkg/common"
	"github.com/redstring/corkboard/pkg/logger"
	"github.com/redstring/corkboard/pkg/logger/console"
	"github.com/redstring/corkboard/pkg/narrator"
	"github.com/redstring/corkboard/pkg/search"
	"github.com/redstring/corkboard/pkg/store"
	storepgx "github.com/redstring/corkboard/pkg/store/pgx"

	_ "github.com/lib/pq"
)

// cliSink prints run progress to stdout.
type cliSink struct {
	rounds int
}

func (s *cliSink) Publish(_ context.Context, event agent.Event) error {
	switch event.Type {
	case agent.EventRound:
		r := event.Round
		fmt.Printf("\n--- Round %d/%d ---\n", r.RoundNumber+1, s.rounds)
		fmt.Printf("New entities: %d | Connections touched: %d | Intensity: %.2f\n",
			r.EntitiesAdded, r.RelationshipsTouched, r.IntensityAfter)
		if r.Skipped > 0 {
			fmt.Printf("Dropped malformed findings: %d\n", r.Skipped)
		}
	case agent.EventNarration:
		fmt.Printf("\n%s\n", event.Narration)
	}
	return nil
}

func main() {
	util.LoadEnv()

	rounds := flag.Int("rounds", 3, "number of investigation rounds")
	flag.Parse()
	if flag.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [--rounds N] <topic-a> <topic-b>\n", os.Args[0])
		os.Exit(2)
	}
	topicA, topicB := flag.Arg(0), flag.Arg(1)

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter := util.GetEnv("AI_ADAPTER")
	var aiClient ai.Client

	switch adapter {
	case "ollama":
		client, err := oai.NewBoardOllamaClient(oai.NewBoardOllamaClientParams{
			ChatModel:  util.GetEnv("AI_CHAT_MODEL"),
			ImageModel: util.GetEnv("AI_IMAGE_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		aiClient = client
	default:
		aiClient = gai.NewBoardOpenAIClient(gai.NewBoardOpenAIClientParams{
			ChatModel:  util.GetEnv("AI_CHAT_MODEL"),
			ImageModel: util.GetEnv("AI_IMAGE_MODEL"),

			ChatURL:  util.GetEnv("AI_CHAT_URL"),
			ChatKey:  util.GetEnv("AI_CHAT_KEY"),
			ImageURL: util.GetEnv("AI_IMAGE_URL"),
			ImageKey: util.GetEnv("AI_IMAGE_KEY"),
		})
	}

	searchClient := search.NewTavilyClient(search.NewTavilyClientParams{
		APIKey:      util.GetEnv("SEARCH_API_KEY"),
		Endpoint:    util.GetEnv("SEARCH_URL"),
		EnrichPages: util.GetEnvBool("SEARCH_ENRICH", false),
	})

	var graphStore store.GraphStore
	if databaseURL := util.GetEnv("DATABASE_URL"); databaseURL != "" {
		s, err := storepgx.NewGraphDBStore(ctx, storepgx.NewGraphDBStoreParams{
			DatabaseURL:   databaseURL,
			MigrationsURL: util.GetEnvString("MIGRATIONS_URL", "file://migrations"),
		})
		if err != nil {
			logger.Fatal("Unable to connect to database", "err", err)
		}
		defer s.Close()
		graphStore = s
	}

	sinks := agent.MultiSink{&cliSink{rounds: *rounds}}
	if util.GetEnv("RABBITMQ_HOST") != "" {
		que, err := queue.Init()
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", "err", err)
		}
		defer que.Close()
		sinks = append(sinks, que)
	}

	session, err := agent.NewSession(topicA, topicB, *rounds)
	if err != nil {
		logger.Fatal("Invalid investigation request", "err", err)
	}

	loop, err := agent.NewLoop(agent.LoopParams{
		Search:    searchClient,
		Extractor: ai.NewExtractor(aiClient, ""),
		Vision: func(ctx context.Context, topicA, topicB, imageURL string) string {
			return ai.AnalyzeImage(ctx, aiClient, topicA, topicB, imageURL)
		},
		Narrator: narrator.NewNarrator(aiClient),
		Sink:     sinks,
		Store:    graphStore,
		Durable:  util.GetEnvBool("STORE_REQUIRED", false),
	})
	if err != nil {
		logger.Fatal("Failed to assemble loop", "err", err)
	}

	fmt.Printf("Investigating %q and %q over %d rounds (run %s)\n",
		topicA, topicB, *rounds, session.RunID())

	if err := loop.Run(ctx, session); err != nil {
		logger.Fatal("Investigation failed", "run", session.RunID(), "err", err)
	}

	printDigest(session)

	metrics := aiClient.GetMetrics()
	logger.Info(
		"AI Metrics",
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"total_tokens", metrics.TotalTokens,
	)
}

func printDigest(session *agent.Session) {
	snapshot := session.Snapshot()

	fmt.Printf("\n=== Final board (%d entities, %d connections, intensity %.2f) ===\n",
		len(snapshot.Entities), len(snapshot.Relationships), session.Intensity())
	if session.SkippedTotal() > 0 {
		fmt.Printf("Malformed findings dropped: %d\n", session.SkippedTotal())
	}

	rels := make([]common.Relationship, len(snapshot.Relationships))
	copy(rels, snapshot.Relationships)
	sort.SliceStable(rels, func(i, j int) bool {
		return rels[i].Weight > rels[j].Weight
	})
	if len(rels) > 5 {
		rels = rels[:5]
	}
	for _, rel := range rels {
		fmt.Printf("  %s <-> %s: %s (x%d)\n", rel.SourceID, rel.TargetID, rel.Description, rel.Weight)
	}
}
