package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dealflow-backend/internal/deals"
	"dealflow-backend/internal/documents"
	"dealflow-backend/internal/extractions"
	"dealflow-backend/internal/intake"
	"dealflow-backend/internal/jobs"
	"dealflow-backend/internal/pipeline"
	"dealflow-backend/internal/queue"
	"dealflow-backend/internal/shared/config"
	"dealflow-backend/internal/shared/server"
	"dealflow-backend/internal/shared/storage/db"
	"dealflow-backend/internal/shared/storage/object"
	localstore "dealflow-backend/internal/shared/storage/object/local"
)

// App holds shared dependencies wired by Build.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client

	DocumentsRepo   documents.Repo
	JobsRepo        jobs.Repo
	ExtractionsRepo extractions.Repo
	DealsRepo       deals.Repo

	IntakeService   *intake.Service
	PipelineService *pipeline.Service

	IntakeHandler   *intake.Handler
	JobsHandler     *jobs.Handler
	PipelineHandler *pipeline.Handler
	DealsHandler    *deals.Handler

	stopCleanup chan struct{}
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  localstore.New(cfg.LocalStoreDir),
		Queue:  queueClient,
	}

	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		IntakeHandler:   app.IntakeHandler,
		JobsHandler:     app.JobsHandler,
		PipelineHandler: app.PipelineHandler,
		DealsHandler:    app.DealsHandler,
	})

	return app, nil
}

// Close releases background resources held by the app.
func (a *App) Close() {
	if a.stopCleanup != nil {
		close(a.stopCleanup)
		a.stopCleanup = nil
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func buildServices(app *App) {
	var (
		docRepo  documents.Repo
		jobRepo  jobs.Repo
		extRepo  extractions.Repo
		dealRepo deals.Repo
	)

	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
		jobRepo = &jobs.PGRepo{DB: app.DB}
		extRepo = &extractions.PGRepo{DB: app.DB}
		dealRepo = &deals.PGRepo{DB: app.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
		memJobs := jobs.NewMemoryRepoTTL(app.Config.JobTTL)
		jobRepo = memJobs
		extRepo = extractions.NewMemoryRepo()
		dealRepo = deals.NewMemoryRepo()
		if app.Config.JobTTL > 0 {
			app.stopCleanup = startJobCleanup(memJobs, app.Config.JobTTL)
		}
	}

	intakeSvc := &intake.Service{
		Jobs:        jobRepo,
		Docs:        docRepo,
		Extractions: extRepo,
		Store:       app.Store,
		Engine:      intake.StubEngine{},
		DelayMin:    app.Config.IntakeDelayMin,
		DelayMax:    app.Config.IntakeDelayMax,
	}

	pipelineSvc := &pipeline.Service{
		Jobs:         jobRepo,
		Docs:         docRepo,
		Intake:       intakeSvc,
		Extractions:  extRepo,
		Deals:        dealRepo,
		Queue:        app.Queue,
		PollAttempts: app.Config.RunePollAttempts,
		PollInterval: app.Config.RunePollInterval,
	}

	app.DocumentsRepo = docRepo
	app.JobsRepo = jobRepo
	app.ExtractionsRepo = extRepo
	app.DealsRepo = dealRepo
	app.IntakeService = intakeSvc
	app.PipelineService = pipelineSvc
	app.IntakeHandler = intake.NewHandler(intakeSvc, extRepo, app.Config.MaxUploadBytes)
	app.JobsHandler = jobs.NewHandler(jobRepo)
	app.PipelineHandler = pipeline.NewHandler(pipelineSvc, app.Config.MaxUploadBytes)
	app.DealsHandler = deals.NewHandler(dealRepo)
}

func startJobCleanup(repo *jobs.MemoryRepo, ttl time.Duration) chan struct{} {
	stop := make(chan struct{})
	interval := ttl
	if interval > time.Minute {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				repo.Cleanup()
			case <-stop:
				return
			}
		}
	}()
	return stop
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
