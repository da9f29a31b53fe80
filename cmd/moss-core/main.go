// cmd/moss-core is the standalone runner for the simulation core: it
// loads a run config and a scenario (map geometry + traveler
// schedules), builds a sim.Sim, optionally serves a debug HTTP/
// websocket endpoint alongside it, and runs to completion. Grounded on
// the teacher's main.go for the overall "parse flags, load config, set
// up logging, build the orchestrator, run it" shape, rebuilt on cobra
// (rather than the teacher's stdlib flag) the way tidbyt-gtfs's
// cmd/main.go structures a root command with persistent flags.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fiblab-sim/moss-core/persist"
	"github.com/fiblab-sim/moss-core/sim"
	"github.com/fiblab-sim/moss-core/utils/config"
)

var (
	configPath   string
	scenarioPath string
	mongoURI     string
	mongoDB      string
	mongoColl    string
	debugAddr    string
	logLevel     string

	log = logrus.WithField("module", "moss-core")

	logLevels = map[string]logrus.Level{
		"trace": logrus.TraceLevel,
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
	}
)

// moduleFormatter is a small stand-in for the teacher's
// logrus-easy-formatter, which lives in a private module this public
// tree can't fetch. It reproduces the same "[module] [time] [level]
// message" shape from the one exported knob logrus.Formatter needs.
type moduleFormatter struct{}

func (moduleFormatter) Format(e *logrus.Entry) ([]byte, error) {
	module, _ := e.Data["module"].(string)
	if module == "" {
		module = "moss-core"
	}
	line := fmt.Sprintf("[%s] [%s] [%s] %s\n",
		module, e.Time.Format("2006-01-02 15:04:05.0000"), e.Level, e.Message)
	return []byte(line), nil
}

var rootCmd = &cobra.Command{
	Use:          "moss-core",
	Short:        "moss-core traffic microsimulation runner",
	Long:         "Runs a discrete-event traffic microsimulation to completion from a config file and a scenario (map geometry + traveler schedules).",
	SilenceUsage: true,
	RunE:         runSim,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "run config YAML path (step/toggles/tunables/seed)")
	rootCmd.PersistentFlags().StringVar(&scenarioPath, "scenario", "", "scenario YAML path (map geometry + traveler schedules)")
	rootCmd.PersistentFlags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB URI to load additional travelers from (empty disables)")
	rootCmd.PersistentFlags().StringVar(&mongoDB, "mongo-db", "moss_core", "MongoDB database name")
	rootCmd.PersistentFlags().StringVar(&mongoColl, "mongo-collection", "persons", "MongoDB collection holding traveler documents")
	rootCmd.PersistentFlags().StringVar(&debugAddr, "debug-addr", "", "address to serve /status,/metrics,/events on (empty disables)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace debug info warn error)")
}

func main() {
	logrus.SetFormatter(moduleFormatter{})
	if level, ok := logLevels[logLevel]; ok {
		logrus.SetLevel(level)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSim(cmd *cobra.Command, args []string) error {
	if configPath == "" || scenarioPath == "" {
		return fmt.Errorf("--config and --scenario are both required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	m, ps, persons, err := loadScenario(scenarioPath)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}

	if mongoURI != "" {
		store, err := persist.Connect(mongoURI, mongoDB)
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		defer store.Close()
		more, err := store.LoadPersons(context.Background(), mongoColl)
		if err != nil {
			return fmt.Errorf("load persons from mongo: %w", err)
		}
		persons = append(persons, more...)
	}

	s := sim.New(cfg, m, ps)
	for _, p := range persons {
		s.RegisterPerson(p)
	}
	log.Infof("loaded %d travelers, running %s", len(persons), s)

	if debugAddr != "" {
		d := sim.NewDebugServer(s)
		go func() {
			if err := d.ListenAndServe(debugAddr); err != nil {
				log.Errorf("debug server stopped: %v", err)
			}
		}()
	}

	s.Run()
	return nil
}
