package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/config"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/generate"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/llm"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/llm/anthropic"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/llm/openai"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/mirror"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/mirror/neo4j"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/observability"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/project"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/scan"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/secrets"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/server"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/store"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/tui"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/vector"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/vector/qdrant"
)

func main() {
	var (
		projectPath string
		configPath  string
	)

	rootCmd := &cobra.Command{
		Use:   "brainstormer",
		Short: "LLM-assisted function design canvas",
	}
	rootCmd.PersistentFlags().StringVar(&projectPath, "project", "project.json", "Project file path")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "brainstormer.yaml", "Config file path")

	var projectName string
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Create an empty project file",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := &model.Project{Name: projectName}
			if err := project.Save(projectPath, project.NewFile(p, nil)); err != nil {
				return err
			}
			fmt.Printf("Created project %q at %s\n", projectName, projectPath)
			return nil
		},
	}
	newCmd.Flags().StringVar(&projectName, "name", "untitled", "Project display name")

	var addIdentifier string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a function with a user-edited identifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := project.Load(projectPath)
			if err != nil {
				return err
			}
			s := store.FromProject(f.Project)
			id := s.CreateFunction(&model.Function{
				Identifier: model.AspectValue{Text: addIdentifier, Lifecycle: model.LifecycleEdited},
			})
			if err := project.Save(projectPath, project.NewFile(s.Project(), f.Positions)); err != nil {
				return err
			}
			fmt.Printf("Added function %q (%s)\n", addIdentifier, id)
			return nil
		},
	}
	addCmd.Flags().StringVar(&addIdentifier, "identifier", "", "Identifier text")
	_ = addCmd.MarkFlagRequired("identifier")

	var (
		editFunction string
		editAspect   string
		editValue    string
		editReroll   bool
		editNoGen    bool
	)
	editCmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit one aspect of a function and run a generation cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd.Context(), configPath, projectPath,
				editFunction, editAspect, editValue, editReroll, editNoGen)
		},
	}
	editCmd.Flags().StringVar(&editFunction, "function", "", "Function identifier")
	editCmd.Flags().StringVar(&editAspect, "aspect", "", "Aspect to edit (identifier|signature|specification|implementation)")
	editCmd.Flags().StringVar(&editValue, "value", "", "New aspect text")
	editCmd.Flags().BoolVar(&editReroll, "reroll", false, "Regenerate the edited aspect itself as well")
	editCmd.Flags().BoolVar(&editNoGen, "no-generate", false, "Apply the edit without triggering generation")
	_ = editCmd.MarkFlagRequired("function")
	_ = editCmd.MarkFlagRequired("aspect")
	_ = editCmd.MarkFlagRequired("value")

	var (
		lockFunction string
		lockAspect   string
		unlock       bool
	)
	lockCmd := &cobra.Command{
		Use:   "lock",
		Short: "Freeze (or release) an aspect so generation never overwrites it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLock(projectPath, lockFunction, lockAspect, unlock)
		},
	}
	lockCmd.Flags().StringVar(&lockFunction, "function", "", "Function identifier")
	lockCmd.Flags().StringVar(&lockAspect, "aspect", "", "Aspect to lock")
	lockCmd.Flags().BoolVar(&unlock, "unlock", false, "Release the lock instead (aspect becomes edited)")
	_ = lockCmd.MarkFlagRequired("function")
	_ = lockCmd.MarkFlagRequired("aspect")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the function graph and its call edges",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(projectPath)
		},
	}

	var scanFunction string
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Print call references found in a function's implementation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(projectPath, scanFunction)
		},
	}
	scanCmd.Flags().StringVar(&scanFunction, "function", "", "Function identifier")
	_ = scanCmd.MarkFlagRequired("function")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Push the function graph and call edges to the Neo4j mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), configPath, projectPath)
		},
	}

	var calleesFunction string
	calleesCmd := &cobra.Command{
		Use:   "callees",
		Short: "Query the Neo4j mirror for the functions a function calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCallees(cmd.Context(), configPath, projectPath, calleesFunction)
		},
	}
	calleesCmd.Flags().StringVar(&calleesFunction, "function", "", "Function identifier")
	_ = calleesCmd.MarkFlagRequired("function")

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Embed function specifications into the Qdrant index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), configPath, projectPath)
		},
	}

	var serveAddr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the editor HTTP API and event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, projectPath, serveAddr)
		},
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")

	browseCmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the function graph in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := project.Load(projectPath)
			if err != nil {
				return err
			}
			return tui.Run(store.FromProject(f.Project))
		},
	}

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available LLM providers:")
			fmt.Println()
			for name, url := range llm.KnownProviders {
				fmt.Printf("  %-10s %s\n", name, url)
			}
			fmt.Println("  custom     (set base_url to any OpenAI-compatible endpoint)")
			fmt.Println("  none       (edits apply without generation)")
			fmt.Println()
			fmt.Println("Configure in brainstormer.yaml or via environment:")
			fmt.Println("  BRAINSTORMER_LLM_PROVIDER=anthropic")
			fmt.Println("  BRAINSTORMER_LLM_API_KEY=sk-...")
			fmt.Println("  BRAINSTORMER_LLM_MODEL=claude-sonnet-4-5")
		},
	}

	rootCmd.AddCommand(newCmd, addCmd, editCmd, lockCmd, showCmd, scanCmd,
		syncCmd, calleesCmd, indexCmd, serveCmd, browseCmd, providersCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFactory registers the built-in provider constructors.
func newFactory() *llm.ProviderFactory {
	factory := llm.NewFactory()
	factory.Register("anthropic", func(c llm.ProviderConfig) (llm.Provider, error) {
		return anthropic.New(c.APIKey, c.Model, c.BaseURL), nil
	})
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New(c.APIKey, c.Model, c.BaseURL, c.EmbedModel), nil
	})
	for _, p := range []struct{ name, url string }{
		{"groq", llm.KnownProviders["groq"]},
		{"ollama", llm.KnownProviders["ollama"]},
		{"together", llm.KnownProviders["together"]},
		{"deepseek", llm.KnownProviders["deepseek"]},
		{"custom", ""},
	} {
		baseURL := p.url
		factory.Register(p.name, func(c llm.ProviderConfig) (llm.Provider, error) {
			url := c.BaseURL
			if url == "" {
				url = baseURL
			}
			return openai.New(c.APIKey, c.Model, url, c.EmbedModel), nil
		})
	}
	return factory
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

// newSecretsManager builds the credential resolver from config. Errors fall
// back to environment lookups so a bad vault config never blocks local use.
func newSecretsManager(cfg *config.Config) *secrets.Manager {
	sc := secrets.DefaultConfig()
	sc.Provider = cfg.Secrets.Provider
	if cfg.Secrets.FilePath != "" {
		sc.File = &secrets.FileConfig{Path: cfg.Secrets.FilePath}
	}
	if cfg.Secrets.VaultAddress != "" {
		sc.Vault = &secrets.VaultConfig{
			Address: cfg.Secrets.VaultAddress,
			Token:   cfg.Secrets.VaultToken,
		}
	}

	m, err := secrets.NewManager(sc)
	if err != nil {
		slog.Warn("secrets backend unavailable, using environment", "error", err)
		m, _ = secrets.NewManager(nil)
	}
	return m
}

func buildProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	pc := llm.DefaultProviderConfig()
	pc.Provider = cfg.LLM.Provider
	pc.APIKey = cfg.LLM.APIKey
	if pc.APIKey == "" {
		pc.APIKey = newSecretsManager(cfg).GetOrDefault(ctx, secrets.KeyLLMAPIKey, "")
	}
	pc.Model = cfg.LLM.Model
	pc.BaseURL = cfg.LLM.BaseURL
	pc.EmbedModel = cfg.LLM.EmbedModel
	if cfg.LLM.Timeout > 0 {
		pc.Timeout = cfg.LLM.Timeout
	}
	if cfg.LLM.MaxRetries > 0 {
		pc.MaxRetries = cfg.LLM.MaxRetries
	}
	return newFactory().Create(pc)
}

func requestOptions(cfg *config.Config) *llm.RequestOptions {
	opts := &llm.RequestOptions{}
	if cfg.LLM.MaxTokens > 0 {
		mt := cfg.LLM.MaxTokens
		opts.MaxTokens = &mt
	}
	if cfg.LLM.Temperature > 0 {
		t := cfg.LLM.Temperature
		opts.Temperature = &t
	}
	return opts
}

func runEdit(ctx context.Context, configPath, projectPath, function, aspect, value string, reroll, noGenerate bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "brainstormer",
		ServiceVersion: "0.1.0",
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	f, err := project.Load(projectPath)
	if err != nil {
		return err
	}
	s := store.FromProject(f.Project)

	fn, ok := s.FindByName(function)
	if !ok {
		return fmt.Errorf("function %q not found", function)
	}
	a := model.Aspect(aspect)
	if !a.Valid() {
		return fmt.Errorf("unknown aspect %q", aspect)
	}

	// Apply the user edit first; the snapshot sent to the service must
	// contain it.
	s.UpdateFunction(fn.UniqueID, store.Update{
		Aspects: []store.AspectUpdate{{
			Aspect: a,
			Value:  model.AspectValue{Text: value, Lifecycle: model.LifecycleEdited},
		}},
	})

	if !noGenerate {
		provider, err := buildProvider(ctx, cfg)
		if err != nil {
			return err
		}
		if provider == nil {
			fmt.Println("No LLM provider configured; edit applied without generation.")
		} else {
			var retriever generate.ContextRetriever
			if cfg.Vector.Host != "" {
				repo, err := qdrant.New(ctx, cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection)
				if err != nil {
					slog.Warn("vector index unavailable", "error", err)
				} else {
					defer repo.Close()
					retriever = vector.NewEmbedder(provider, repo)
				}
			}

			service := generate.NewLLMService(provider, requestOptions(cfg), retriever)
			orch := generate.NewOrchestrator(s, service)
			cycle, err := orch.Generate(ctx, generate.Edit{
				FunctionID: fn.UniqueID,
				Aspect:     a,
				Value:      value,
				Reroll:     reroll,
			})
			if err != nil {
				return err
			}

			report := generate.NewExecutor(s).Apply(cycle.Commands)
			fmt.Printf("Generation: %d commands applied, %d skipped, %d invalid dropped (%.1fs)\n",
				report.Applied, report.Skipped, cycle.Dropped, cycle.Duration.Seconds())
			for _, name := range report.Discovered {
				fmt.Printf("  discovered new function: %s\n", name)
			}
			if cycle.Rationale != "" {
				fmt.Printf("Rationale: %s\n", cycle.Rationale)
			}
		}
	}

	return project.Save(projectPath, project.NewFile(s.Project(), f.Positions))
}

func runServe(ctx context.Context, configPath, projectPath, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "brainstormer",
		ServiceVersion: "0.1.0",
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}

	f, err := project.Load(projectPath)
	if err != nil {
		return err
	}
	s := store.FromProject(f.Project)

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return err
	}

	var retriever generate.ContextRetriever
	if cfg.Vector.Host != "" && provider != nil {
		repo, err := qdrant.New(ctx, cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection)
		if err != nil {
			slog.Warn("vector index unavailable", "error", err)
		} else {
			defer repo.Close()
			retriever = vector.NewEmbedder(provider, repo)
		}
	}

	// With no provider configured the service rejects generation requests;
	// edits with skipGeneration still work.
	service := generate.NewLLMService(provider, requestOptions(cfg), retriever)
	orch := generate.NewOrchestrator(s, service)
	exec := generate.NewExecutor(s)

	serverCfg := server.DefaultConfig()
	if cfg.Server.ListenAddr != "" {
		serverCfg.ListenAddr = cfg.Server.ListenAddr
	}
	if addr != "" {
		serverCfg.ListenAddr = addr
	}

	save := func(p *model.Project) error {
		return project.Save(projectPath, project.NewFile(p, f.Positions))
	}
	srv := server.NewServer(serverCfg, s, orch, exec, save)

	shutdown := server.NewShutdownHandler(nil)
	shutdown.AddHook(server.HTTPServerShutdownHook("editor-api", srv.Stop))
	shutdown.AddHook(server.ProjectSaveShutdownHook(func() error {
		return save(s.Project())
	}))
	shutdown.AddHook(server.TracingShutdownHook(tp.Shutdown))
	shutdown.Start()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		shutdown.Shutdown()
		shutdown.Wait()
		return err
	case <-shutdown.Done():
		srv.Stats().PrintSummary(os.Stdout)
		return nil
	}
}

func runLock(projectPath, function, aspect string, unlock bool) error {
	f, err := project.Load(projectPath)
	if err != nil {
		return err
	}
	s := store.FromProject(f.Project)

	fn, ok := s.FindByName(function)
	if !ok {
		return fmt.Errorf("function %q not found", function)
	}
	a := model.Aspect(aspect)
	if !a.Valid() {
		return fmt.Errorf("unknown aspect %q", aspect)
	}

	lifecycle := model.LifecycleLocked
	if unlock {
		lifecycle = model.LifecycleEdited
	}
	s.UpdateFunction(fn.UniqueID, store.Update{
		Aspects: []store.AspectUpdate{{
			Aspect: a,
			Value:  model.AspectValue{Text: fn.AspectValue(a).Text, Lifecycle: lifecycle},
		}},
	})

	return project.Save(projectPath, project.NewFile(s.Project(), f.Positions))
}

func runShow(projectPath string) error {
	f, err := project.Load(projectPath)
	if err != nil {
		return err
	}

	fmt.Printf("Project: %s (%d functions)\n", f.Project.Name, len(f.Project.Functions))
	for _, fn := range f.Project.Functions {
		fmt.Printf("\n%s [%s]\n", displayName(fn), fn.UniqueID)
		for _, a := range model.AspectOrder {
			v := fn.AspectValue(a)
			if v.Lifecycle == model.LifecycleUnset {
				continue
			}
			fmt.Printf("  %-14s (%s) %s\n", a, v.Lifecycle, firstLine(v.Text))
		}
	}

	edges := scan.Edges(f.Project)
	if len(edges) > 0 {
		fmt.Printf("\nCall edges:\n")
		for _, e := range edges {
			fmt.Printf("  %s -> %s (#%d)\n", shortID(e.CallerID), e.CalleeName, e.Occurrence)
		}
	}
	return nil
}

func runScan(projectPath, function string) error {
	f, err := project.Load(projectPath)
	if err != nil {
		return err
	}
	s := store.FromProject(f.Project)

	fn, ok := s.FindByName(function)
	if !ok {
		return fmt.Errorf("function %q not found", function)
	}

	refs := scan.Calls(fn.Implementation.Text)
	if len(refs) == 0 {
		fmt.Println("No call references.")
		return nil
	}
	for _, ref := range refs {
		_, resolved := s.FindByName(ref.Name)
		marker := " "
		if !resolved {
			marker = "?"
		}
		fmt.Printf("%s %s (#%d)\n", marker, ref.Name, ref.Occurrence)
	}
	return nil
}

// openMirror connects to the configured Neo4j mirror, resolving the password
// through the secrets manager when the config leaves it empty.
func openMirror(ctx context.Context, cfg *config.Config) (*neo4j.Repository, error) {
	if cfg.Mirror.URI == "" {
		return nil, fmt.Errorf("mirror.uri is not configured")
	}
	password := cfg.Mirror.Password
	if password == "" {
		password = newSecretsManager(cfg).GetOrDefault(ctx, secrets.KeyMirrorPassword, "")
	}
	return neo4j.New(ctx, cfg.Mirror.URI, cfg.Mirror.Username, password)
}

func runSync(ctx context.Context, configPath, projectPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	f, err := project.Load(projectPath)
	if err != nil {
		return err
	}

	repo, err := openMirror(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close(ctx)

	edges := scan.Edges(f.Project)
	if err := repo.SyncProject(ctx, f.Project, edges); err != nil {
		return err
	}
	fmt.Printf("Synced %d functions and %d call edges\n", len(f.Project.Functions), len(edges))
	return nil
}

func runCallees(ctx context.Context, configPath, projectPath, name string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	f, err := project.Load(projectPath)
	if err != nil {
		return err
	}

	repo, err := openMirror(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close(ctx)

	callees, err := mirror.Callees(ctx, repo, f.Project, name)
	if err != nil {
		return err
	}
	if len(callees) == 0 {
		fmt.Printf("%s calls no functions in the mirror (run sync first?)\n", name)
		return nil
	}
	fmt.Printf("%s calls:\n", name)
	for _, callee := range callees {
		fmt.Printf("  %s\n", callee)
	}
	return nil
}

func runIndex(ctx context.Context, configPath, projectPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	if cfg.Vector.Host == "" {
		return fmt.Errorf("vector.host is not configured")
	}

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return err
	}
	if provider == nil {
		return fmt.Errorf("indexing requires an LLM provider with embedding support")
	}

	f, err := project.Load(projectPath)
	if err != nil {
		return err
	}

	repo, err := qdrant.New(ctx, cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection)
	if err != nil {
		return err
	}
	defer repo.Close()

	count, err := vector.NewEmbedder(provider, repo).IndexProject(ctx, f.Project)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d specifications\n", count)
	return nil
}

func displayName(fn *model.Function) string {
	if fn.Identifier.Text != "" {
		return fn.Identifier.Text
	}
	return "(unnamed)"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
