package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/neuroti/Psi/internal/app"
	"github.com/neuroti/Psi/internal/config"
	"github.com/neuroti/Psi/internal/database"
	"github.com/neuroti/Psi/internal/logging"
	"github.com/neuroti/Psi/internal/metrics"
	"github.com/neuroti/Psi/internal/recipe"
)

// optionalFloat is a float flag that stays nil unless set.
type optionalFloat struct {
	v *float64
}

func (f *optionalFloat) String() string {
	if f.v == nil {
		return ""
	}
	return strconv.FormatFloat(*f.v, 'f', -1, 64)
}

func (f *optionalFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.v = &v
	return nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx := context.Background()
	command, args := os.Args[1], os.Args[2:]

	switch command {
	case "metrics-cleanup":
		runMetricsCleanup(ctx, cfg, args)
		return
	case "seed":
		runSeed(ctx, cfg, args)
		return
	case "analyze-food", "scan-fridge", "wellness", "trends", "food-history", "wellness-history", "import-recipe":
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	rt, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize")
	}
	defer rt.Close()

	var result any
	switch command {
	case "analyze-food":
		result, err = runAnalyzeFood(ctx, rt.App, args)
	case "scan-fridge":
		result, err = runScanFridge(ctx, rt.App, args)
	case "wellness":
		result, err = runWellness(ctx, rt.App, args)
	case "trends":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		user := fs.String("user", "", "User ID")
		period := fs.String("period", "week", "week, month or year")
		fs.Parse(args)
		result, err = rt.App.EmotionTrends(ctx, *user, *period)
	case "food-history":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		user := fs.String("user", "", "User ID")
		limit := fs.Int("limit", 10, "Records per page")
		offset := fs.Int("offset", 0, "Records to skip")
		fs.Parse(args)
		result, err = rt.App.FoodHistory(ctx, *user, *limit, *offset)
	case "wellness-history":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		user := fs.String("user", "", "User ID")
		days := fs.Int("days", 7, "Days to summarize")
		fs.Parse(args)
		result, err = rt.App.WellnessHistory(ctx, *user, *days)
	case "import-recipe":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		url := fs.String("url", "", "Recipe page URL")
		fs.Parse(args)
		importer := recipe.NewImporter(&http.Client{Timeout: 30 * time.Second}, rt.App.Recipes())
		result, err = importer.Import(ctx, *url)
	}
	if err != nil {
		logging.Fatal().Err(err).Str("command", command).Msg("command failed")
	}
	printJSON(result)
}

func runAnalyzeFood(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := flag.NewFlagSet("analyze-food", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	path := fs.String("image", "", "Path to a meal photo")
	var hrv, hr optionalFloat
	fs.Var(&hrv, "hrv", "Heart rate variability in ms")
	fs.Var(&hr, "hr", "Heart rate in bpm")
	fs.Parse(args)

	image, err := os.ReadFile(*path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return a.AnalyzeFoodImage(ctx, app.FoodRequest{
		UserID:      *user,
		Image:       image,
		Filename:    filepath.Base(*path),
		Variability: hrv.v,
		Rate:        hr.v,
	})
}

func runScanFridge(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := flag.NewFlagSet("scan-fridge", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	var hrv, hr optionalFloat
	fs.Var(&hrv, "hrv", "Heart rate variability in ms")
	fs.Var(&hr, "hr", "Heart rate in bpm")
	fs.Parse(args)

	images := make([][]byte, 0, fs.NArg())
	for _, path := range fs.Args() {
		img, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image %s: %w", path, err)
		}
		images = append(images, img)
	}
	return a.DetectFridgeIngredients(ctx, app.FridgeRequest{
		UserID:      *user,
		Images:      images,
		Variability: hrv.v,
		Rate:        hr.v,
	})
}

func runWellness(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := flag.NewFlagSet("wellness", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	var hrv, hr optionalFloat
	fs.Var(&hrv, "hrv", "Heart rate variability in ms")
	fs.Var(&hr, "hr", "Heart rate in bpm")
	fs.Parse(args)

	return a.CheckWellness(ctx, app.WellnessRequest{UserID: *user, Variability: hrv.v, Rate: hr.v})
}

func runSeed(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	force := fs.Bool("force", false, "Upsert the bundled data even when tables are populated")
	fs.Parse(args)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	foods, err := app.SeedNutrition(ctx, db.SQL, !*force)
	if err != nil {
		logging.Fatal().Err(err).Msg("nutrition seed failed")
	}
	recipes, err := app.SeedRecipes(ctx, recipe.NewRepository(db.SQL), !*force)
	if err != nil {
		logging.Fatal().Err(err).Msg("recipe seed failed")
	}
	fmt.Printf("Seeded %d foods and %d recipes.\n", foods, recipes)
}

func runMetricsCleanup(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
	days := fs.Int("days", 30, "Keep records for the last N days")
	fs.Parse(args)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	affected, err := metrics.NewStore(db.SQL).Cleanup(ctx, *days)
	if err != nil {
		logging.Fatal().Err(err).Msg("cleanup failed")
	}
	fmt.Printf("Successfully removed %d old metric records.\n", affected)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to encode result")
	}
	fmt.Println(string(out))
}

func printUsage() {
	fmt.Println("Usage: psi <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze-food       Analyze a meal photo (-user, -image, -hrv, -hr)")
	fmt.Println("  scan-fridge        Suggest recipes from fridge photos (-user, -hrv, -hr, files...)")
	fmt.Println("  wellness           Run a wellness check (-user, -hrv, -hr)")
	fmt.Println("  trends             Show emotion trends (-user, -period)")
	fmt.Println("  food-history       List analyzed meals (-user, -limit, -offset)")
	fmt.Println("  wellness-history   Summarize daily wellness (-user, -days)")
	fmt.Println("  import-recipe      Import a recipe from a web page (-url)")
	fmt.Println("  seed               Load the bundled nutrition table and recipes (-force)")
	fmt.Println("  metrics-cleanup    Remove old metric records (-days)")
}
