// Command provision creates every resource listed in a YAML seed file through the
// same pipeline as POST /booking_system/createResource.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bookinggate/internal/config"
	"bookinggate/internal/logging"
	"bookinggate/internal/models"
	"bookinggate/internal/service"
	"bookinggate/internal/upstream"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

const defaultSeedPath = "configs/resources.yaml"

type seedFile struct {
	Resources []models.ProvisionRequest `yaml:"resources"`
}

type provisioner interface {
	Provision(ctx context.Context, req models.ProvisionRequest) (*models.ProvisionResult, error)
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	seedPath := flag.String("file", envOr("RESOURCES_PATH", defaultSeedPath), "YAML file with the resources to provision")
	dryRun := flag.Bool("dry-run", false, "parse and validate the seed file without calling the upstream")
	flag.Parse()

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	base, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := logging.Component(base, "provision")

	requests, err := loadSeed(*seedPath)
	if err != nil {
		logger.Error().Err(err).Str("file", *seedPath).Msg("read seed file")
		return err
	}
	logger.Info().Str("file", *seedPath).Int("resources", len(requests)).Msg("seed file loaded")
	if *dryRun {
		problems := checkSeed(requests)
		for _, p := range problems {
			logger.Warn().Str("file", *seedPath).Msg(p)
		}
		if len(problems) > 0 {
			return fmt.Errorf("seed file has %d problem(s)", len(problems))
		}
		logger.Info().Str("file", *seedPath).Msg("seed file is valid")
		return nil
	}

	client, err := upstream.New(cfg.Upstream, nil, logging.Component(base, "upstream"))
	if err != nil {
		return fmt.Errorf("init upstream client: %w", err)
	}
	lookup := service.NewLookupService(client, nil, 0, logging.Component(base, "lookup"))
	schedules := service.NewScheduleService(client, lookup, nil, cfg.Reconciler.Concurrency, logging.Component(base, "schedules"))
	provisioning := service.NewProvisioningService(client, lookup, schedules, nil, nil, logging.Component(base, "provisioning"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := provisionAll(ctx, provisioning, requests, logger)
	logger.Info().
		Int("created", summary.created).
		Int("existing", summary.existing).
		Int("failed", summary.failed).
		Msg("provisioning finished")
	if summary.failed > 0 {
		return fmt.Errorf("%d of %d resources failed", summary.failed, len(requests))
	}
	return nil
}

type provisionSummary struct {
	created  int
	existing int
	failed   int
}

// provisionAll runs one request at a time and keeps going after failures.
func provisionAll(ctx context.Context, p provisioner, requests []models.ProvisionRequest, logger *zerolog.Logger) provisionSummary {
	var summary provisionSummary
	for _, req := range requests {
		if ctx.Err() != nil {
			break
		}
		result, err := p.Provision(ctx, req)
		switch {
		case err != nil:
			summary.failed++
			logger.Error().Err(err).Str("resource_name", req.ResourceName).Msg("provisioning failed")
		case result.AlreadyExists:
			summary.existing++
			logger.Info().Str("resource_name", req.ResourceName).Str("resource_id", result.ResourceID).Msg("already exists")
		default:
			summary.created++
			event := logger.Info().
				Str("resource_name", req.ResourceName).
				Str("resource_id", result.ResourceID).
				Str("service_id", result.ServiceID)
			if result.Blocks != nil {
				event = event.Int("blocks_created", len(result.Blocks.Data)).Int("blocks_failed", len(result.Blocks.Failed))
			}
			event.Msg("provisioned")
		}
	}
	return summary
}

// checkSeed runs the local provisioning checks on every entry without calling the upstream.
func checkSeed(requests []models.ProvisionRequest) []string {
	var problems []string
	for i, req := range requests {
		label := fmt.Sprintf("resource %d (%s)", i+1, strings.TrimSpace(req.ResourceName))
		if strings.TrimSpace(req.ResourceName) == "" || strings.TrimSpace(req.StartDate) == "" || strings.TrimSpace(req.LocationID) == "" {
			problems = append(problems, label+": resource_name, start_date and location_id are required")
		}
		if len(req.Rates) > 0 {
			_, rateProblems := service.ValidateRates(req.Rates)
			for _, p := range rateProblems {
				problems = append(problems, label+": "+p)
			}
		}
		for j, b := range req.DefinedTimings {
			if !b.Complete() {
				problems = append(problems, fmt.Sprintf("%s: defined_timings %d needs weekday, start_time and end_time", label, j+1))
				continue
			}
			if _, err := models.ParseWeekday(b.Weekday); err != nil {
				problems = append(problems, fmt.Sprintf("%s: defined_timings %d: %v", label, j+1, err))
			}
		}
	}
	return problems
}

func loadSeed(path string) ([]models.ProvisionRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i := range seed.Resources {
		r := &seed.Resources[i]
		r.Metadata = normalizeMap(r.Metadata)
		r.PhotoURL = normalize(r.PhotoURL)
		r.Capacity = normalize(r.Capacity)
		r.ResourceDetails = normalize(r.ResourceDetails)
		r.EmailConfirm = normalize(r.EmailConfirm)
		r.ResourcePlans = normalize(r.ResourcePlans)
		r.Category = normalize(r.Category)
	}
	return seed.Resources, nil
}

// normalize turns yaml.v2 map[interface{}]interface{} values into JSON-encodable maps.
func normalize(v any) any {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case map[string]any:
		return normalizeMap(t)
	case []interface{}:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
