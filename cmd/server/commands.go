package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/logging"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/report"
	"github.com/warp/attendance-engine/store/sqlite"
	"github.com/warp/attendance-engine/timekeeping"
	"github.com/warp/attendance-engine/timekeeping/store"
)

// Set by the linker at build time.
var version = "dev"

var (
	v   = config.New()
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:           "attendance",
	Short:         "Reconcile planned shifts with badge punches and review anomalies.",
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		file, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(v, file)
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Init(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "attendance"})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, reconcileCmd, recomputeCmd, reportCmd, scenarioCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to config file (default ./attendance.yaml)")
	pf.String("backend", config.BackendSQLite, "Store backend: sqlite or memory")
	pf.String("db", "attendance.db", "SQLite database path, \":memory:\" for a throwaway database")
	pf.String("zone", "Europe/Paris", "IANA zone of planned shifts")
	pf.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	pf.String("log-format", "console", "Log format: console or json")
	pf.Int("concurrency", 8, "Parallel employees in range operations")

	serveCmd.Flags().Int("port", 8080, "HTTP server port")
	serveCmd.Flags().Bool("no-scheduler", false, "Disable the nightly recompute")

	bindings := map[string]string{
		"store.backend": "backend",
		"store.path":    "db",
		"zone":          "zone",
		"log.level":     "log-level",
		"log.format":    "log-format",
		"concurrency":   "concurrency",
	}
	for key, flag := range bindings {
		cobra.CheckErr(v.BindPFlag(key, pf.Lookup(flag)))
	}
	cobra.CheckErr(v.BindPFlag("server.port", serveCmd.Flags().Lookup("port")))

	reconcileCmd.Flags().Bool("persist", false, "Upsert the day's anomalies")

	for _, c := range []*cobra.Command{recomputeCmd, reportCmd} {
		c.Flags().String("from", "", "First day (YYYY-MM-DD), default first day of this month")
		c.Flags().String("to", "", "Last day (YYYY-MM-DD), default last day of this month")
		c.Flags().StringSlice("employee", nil, "Employee IDs, default every known employee")
	}
}

// =============================================================================
// WIRING
// =============================================================================

type backend interface {
	api.Store
	Close() error
}

type memoryBackend struct{ *store.Memory }

func (memoryBackend) Close() error { return nil }

func openStore() (backend, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return memoryBackend{store.NewMemory()}, nil
	default:
		s, err := sqlite.New(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return s, nil
	}
}

func newService(st attendance.Store, log zerolog.Logger) (*attendance.Service, error) {
	clock, err := cfg.Clock()
	if err != nil {
		return nil, err
	}
	svc := attendance.NewService(st, clock, cfg.Tolerances, log)
	svc.Concurrency = cfg.Concurrency
	return svc, nil
}

func periodFlags(cmd *cobra.Command, clock timekeeping.Clock) (timekeeping.Period, []timekeeping.EmployeeID, error) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	ids, _ := cmd.Flags().GetStringSlice("employee")

	employees := make([]timekeeping.EmployeeID, len(ids))
	for i, id := range ids {
		employees[i] = timekeeping.EmployeeID(id)
	}

	if from == "" && to == "" {
		today := timekeeping.Today(clock)
		return timekeeping.MonthPeriod(today.Year(), today.Month()), employees, nil
	}
	start, err := timekeeping.ParseDay(from)
	if err != nil {
		return timekeeping.Period{}, nil, err
	}
	end, err := timekeeping.ParseDay(to)
	if err != nil {
		return timekeeping.Period{}, nil, err
	}
	p, err := timekeeping.NewPeriod(start, end)
	return p, employees, err
}

// =============================================================================
// SERVE
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the nightly scheduler.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		log := *logging.Get()

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		svc, err := newService(st, logging.Named("attendance"))
		if err != nil {
			return err
		}

		handler := api.NewHandler(svc, st, logging.Named("http"))
		router := api.NewRouter(handler, api.RouterOptions{
			AllowedOrigins: cfg.Server.CORSOrigins,
			SlowRequest:    2 * time.Second,
		})

		scheduler := api.NewRecomputeScheduler(svc, logging.Named("scheduler"))
		scheduler.Interval = cfg.Scheduler.Interval
		scheduler.Lookback = cfg.Scheduler.Lookback
		noScheduler, _ := cmd.Flags().GetBool("no-scheduler")
		scheduler.Enabled = cfg.Scheduler.Enabled && !noScheduler
		scheduler.Start()
		defer scheduler.Stop()

		server := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			log.Info().Int("port", cfg.Server.Port).Str("zone", cfg.Zone).Str("backend", cfg.Store.Backend).Msg("server starting")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		select {
		case err := <-errc:
			return fmt.Errorf("server failed: %w", err)
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down server")
		scheduler.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("server stopped")
		return nil
	},
}

// =============================================================================
// BATCH COMMANDS
// =============================================================================

var reconcileCmd = &cobra.Command{
	Use:   "reconcile EMPLOYEE DATE",
	Short: "Reconcile one employee-day and print its deviations.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := timekeeping.ParseDay(args[1])
		if err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		svc, err := newService(st, logging.Named("attendance"))
		if err != nil {
			return err
		}

		employeeID := timekeeping.EmployeeID(args[0])
		persist, _ := cmd.Flags().GetBool("persist")
		ctx := cmd.Context()

		var (
			day     reconcile.DayReconciliation
			records []timekeeping.AnomalyRecord
		)
		if persist {
			day, records, err = svc.Recompute(ctx, employeeID, date)
		} else {
			day, err = svc.ReconcileDay(ctx, employeeID, date)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s  planned %dm  worked %dm  overtime %dm\n",
			employeeID, date, day.PlannedMinutes, day.WorkedMinutes, day.OvertimeMinutes)
		if err := report.RenderDay(out, day); err != nil {
			return err
		}
		if persist {
			fmt.Fprintf(out, "%d anomalies stored\n", len(records))
		}
		return nil
	},
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute and persist anomalies for a date range.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		svc, err := newService(st, logging.Named("attendance"))
		if err != nil {
			return err
		}
		period, employees, err := periodFlags(cmd, svc.Clock())
		if err != nil {
			return err
		}

		summary, err := svc.RecomputeRange(cmd.Context(), employees, period)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d employees, %d days, %d anomalies, %d skipped\n",
			period, summary.Employees, summary.Days, summary.Anomalies, summary.Skipped)
		return err
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print period KPIs for one or more employees.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		svc, err := newService(st, logging.Named("attendance"))
		if err != nil {
			return err
		}
		period, employees, err := periodFlags(cmd, svc.Clock())
		if err != nil {
			return err
		}
		if len(employees) == 0 {
			if employees, err = st.EmployeeIDs(cmd.Context()); err != nil {
				return err
			}
		}

		aggs, err := svc.AggregateTeam(cmd.Context(), employees, period)
		if err != nil {
			return err
		}
		return report.RenderAggregates(cmd.OutOrStdout(), aggs)
	},
}

var scenarioCmd = &cobra.Command{
	Use:       "scenario ID",
	Short:     "Reset the store and load a demo scenario.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: scenarioIDs(),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		svc, err := newService(st, logging.Named("attendance"))
		if err != nil {
			return err
		}

		resp, err := api.NewHandler(svc, st, logging.Named("scenario")).Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s on %s): %s\n", resp.Scenario.Name, resp.EmployeeID, resp.Date, resp.Scenario.Expected)
		return report.RenderDay(out, resp.Day.Reconciliation)
	},
}

func scenarioIDs() []string {
	var ids []string
	for _, s := range api.Scenarios() {
		ids = append(ids, s.ID)
	}
	return ids
}
