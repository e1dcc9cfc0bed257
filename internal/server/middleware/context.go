package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"

	"github.com/redstring/corkboard/internal/server/runs"
	"github.com/redstring/corkboard/internal/util"
	"github.com/redstring/corkboard/pkg/agent"
	"github.com/redstring/corkboard/pkg/ai"
	oai "github.com/redstring/corkboard/pkg/ai/ollama"
	gai "github.com/redstring/corkboard/pkg/ai/openai"
	"github.com/redstring/corkboard/pkg/logger"
	"github.com/redstring/corkboard/pkg/search"
	"github.com/redstring/corkboard/pkg/store"
)

type AppUser struct {
	Subject string
	Role    string
}

type App struct {
	Registry *runs.Registry
	Key      *keyfunc.Keyfunc
	S3       *s3.Client
	Sink     agent.ProgressSink
	Store    store.GraphStore
	Search   search.Provider
	AiClient ai.Client

	MasterAPIKey string
	AuthEnabled  bool
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

// AppContextMiddleware attaches shared capabilities to every request. The AI
// client is rebuilt per request from env so adapter or model changes take
// effect without a restart.
func AppContextMiddleware(
	registry *runs.Registry,
	key *keyfunc.Keyfunc,
	s3Client *s3.Client,
	sink agent.ProgressSink,
	graphStore store.GraphStore,
	searchClient search.Provider,
	masterAPIKey string,
	authEnabled bool,
) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
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
					logger.Fatal("Failed to create Ollama client", "err", err)
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

			app := &App{
				Registry: registry,
				Key:      key,
				S3:       s3Client,
				Sink:     sink,
				Store:    graphStore,
				Search:   searchClient,
				AiClient: aiClient,

				MasterAPIKey: masterAPIKey,
				AuthEnabled:  authEnabled,
			}
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
