package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"medassist/internal/config"
	"medassist/internal/embedding"
	"medassist/internal/helper"
	"medassist/internal/index"
	"medassist/internal/ingest"
	"medassist/internal/rag"
	"medassist/internal/retrieval"
	"medassist/internal/server"
	"medassist/internal/synthesis"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	_ = godotenv.Load()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Ingest a single document and exit")
	query := flag.String("query", "", "Answer a single question and exit")
	exportIndex := flag.Bool("export", false, "Export an encrypted snapshot of the chromem index and exit")
	importIndex := flag.Bool("import", false, "Restore the chromem index from an exported snapshot and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config, refusing to start")
	}

	ctx := log.Logger.WithContext(context.Background())
	app, err := buildApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing pipeline")
	}

	switch {
	case *filePath != "":
		results := app.pipeline.IngestAll(ctx, []string{*filePath})
		helper.PrettyPrint(results)
	case *query != "":
		response, err := app.rag.Answer(ctx, *query)
		if err != nil {
			log.Fatal().Err(err).Msg("Error answering query")
		}
		fmt.Printf("%s\n\n", response.Answer)
		helper.PrettyPrint(response.Sources)
	case *exportIndex:
		if err := chromemStore(app).Export(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error exporting index")
		}
		log.Info().Msg("Index exported")
	case *importIndex:
		if err := chromemStore(app).Import(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error importing index")
		}
		log.Info().Msg("Index imported")
	default:
		serve(cfg, app)
	}
}

type app struct {
	pipeline *ingest.Pipeline
	rag      *rag.RAG
	store    index.Store
}

func chromemStore(app *app) *index.ChromemStore {
	store, ok := app.store.(*index.ChromemStore)
	if !ok {
		log.Fatal().Msg("Export/import requires the chromem index provider")
	}
	return store
}

// all external clients are constructed here, once; missing credentials or an
// unreachable index abort startup
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	gateway, err := embedding.NewGateway(&cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	synth, err := synthesis.NewSynthesizer(&cfg.InferLLM)
	if err != nil {
		return nil, err
	}

	engine := retrieval.NewEngine(gateway, store, cfg.RAG.TopK)
	return &app{
		pipeline: ingest.NewPipeline(gateway, store, cfg.RAG),
		rag:      rag.NewRAG(engine, synth),
		store:    store,
	}, nil
}

func newStore(ctx context.Context, cfg *config.Config) (index.Store, error) {
	switch cfg.Index.Provider {
	case "postgres":
		return index.NewPostgresStore(ctx, &cfg.Index, cfg.EmbedLLM.Dimensions)
	default:
		return index.NewChromemStore(&cfg.Index)
	}
}

func serve(cfg *config.Config, app *app) {
	srv := server.New(app.pipeline, app.rag, cfg.Server.UploadDir)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", cfg.Server.Addr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
