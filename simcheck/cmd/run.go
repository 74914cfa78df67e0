package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sarchlab/simcheck/config"
	"github.com/sarchlab/simcheck/examples/trafficlight"
	"github.com/sarchlab/simcheck/scenario"
	"github.com/sarchlab/simcheck/simulation"
	"github.com/sarchlab/simcheck/timing"
)

var errScenarioFailed = errors.New("scenario failed")

type runOptions struct {
	configFiles []string
	monitorPort int
	recordPath  string
	seed        int64
	timeLimit   float64
	verbose     bool
	hold        bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the traffic light demo scenario.",
	Long: "`run` builds a simulation from the given property files, runs the " +
		"traffic light demo scenario on it, and prints the verdict. Flags " +
		"override the properties.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runScenario(cmd, runOpts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringSliceVarP(&runOpts.configFiles, "config", "c", nil,
		"Property files to read, later files override earlier ones")
	f.IntVar(&runOpts.monitorPort, "monitor-port", 0,
		"Serve the monitor on this port")
	f.StringVar(&runOpts.recordPath, "record", "",
		"Record the trace into this SQLite file")
	f.Int64Var(&runOpts.seed, "seed", 1, "Seed of the random source")
	f.Float64Var(&runOpts.timeLimit, "time-limit", 0,
		"Fail the scenario if it runs past this simulated time in seconds")
	f.BoolVarP(&runOpts.verbose, "verbose", "v", false,
		"Print every step as it starts and ends")
	f.BoolVar(&runOpts.hold, "hold", false,
		"Keep the monitor running after the scenario until interrupted")
}

func runScenario(cmd *cobra.Command, opts runOptions) error {
	c, err := loadConfig(opts.configFiles)
	if err != nil {
		return err
	}

	settings, err := c.Settings()
	if err != nil {
		return err
	}

	applyRunFlags(cmd, opts, &settings)

	crossingCfg, err := trafficlight.ConfigFrom(c)
	if err != nil {
		return err
	}

	logger := log.New(cmd.ErrOrStderr(), "", 0)
	for _, key := range c.UnrecognisedProperties() {
		logger.Printf("warning: unrecognised property %s", key)
	}

	sim, err := simulation.MakeBuilder().WithSettings(settings, logger).Build()
	if err != nil {
		return err
	}
	defer func() {
		if err := sim.Terminate(); err != nil {
			logger.Printf("terminating simulation: %v", err)
		}
	}()

	manager := sim.NewScenario()

	crossing, err := trafficlight.NewCrossing(crossingCfg, sim, sim.Random())
	if err != nil {
		return err
	}

	trafficlight.DemoScenario(manager, crossing, crossingCfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	result, err := sim.Run(ctx, manager)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result)
	fmt.Fprintf(cmd.OutOrStdout(), "crossings: %d, pedestrians: %d\n",
		crossing.Controller.Crossings(), crossing.Pedestrians.Arrived())

	if opts.hold && sim.Monitor() != nil {
		logger.Printf("monitor is still running, press Ctrl+C to exit")
		<-ctx.Done()
	}

	switch result.Outcome {
	case scenario.OutcomePassed, scenario.OutcomeExpectedFailure:
		return nil
	default:
		return errScenarioFailed
	}
}

func applyRunFlags(cmd *cobra.Command, opts runOptions, s *config.Settings) {
	flags := cmd.Flags()

	if flags.Changed("monitor-port") {
		s.MonitorPort = opts.monitorPort
	}

	if flags.Changed("record") {
		s.RecordPath = opts.recordPath
	}

	if flags.Changed("seed") {
		s.Seed = opts.seed
	}

	if flags.Changed("time-limit") {
		s.TimeLimit = timing.VTimeInSec(opts.timeLimit)
	}

	if flags.Changed("verbose") {
		s.Verbose = opts.verbose
	}
}

func loadConfig(files []string) (*config.Config, error) {
	if len(files) == 0 {
		return config.FromMap(nil), nil
	}

	return config.Load(files...)
}
