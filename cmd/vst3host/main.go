package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justyntemme/vst3host/internal/config"
	"github.com/justyntemme/vst3host/internal/logging"
	"github.com/justyntemme/vst3host/pkg/host"
	"github.com/justyntemme/vst3host/pkg/host/native"
	"github.com/justyntemme/vst3host/pkg/vst3"
)

var (
	flagConfig   string
	flagLogLevel string
)

func main() {
	root := &cobra.Command{
		Use:           "vst3host",
		Short:         "Discover, inspect, and host native VST3 plugins",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(scanCmd(), infoCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads config, builds the logger, and scans the search roots.
func setup() (config.Config, *host.Registry, *zap.Logger, error) {
	cfg := config.Default()
	if flagConfig != "" {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return config.Config{}, nil, nil, err
		}
	}
	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	log, err := logging.New(level)
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	registry := host.NewRegistry(native.NewBackend(log), log)
	roots := append([]string{}, cfg.SearchPaths...)
	roots = append(roots, host.DefaultSearchRoots()...)
	if err := registry.Scan(roots); err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, registry, log, nil
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List every plugin found under the search roots",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, registry, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			descs := registry.Descriptors()
			if len(descs) == 0 {
				fmt.Println("no plugins found")
				return nil
			}
			for _, d := range descs {
				fmt.Printf("%-32s %-20s %s\n", d.Name, d.Vendor, d.BundlePath)
			}
			return nil
		},
	}
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <plugin name>",
		Short: "Show classes, buses, and parameters of a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, registry, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			desc, err := registry.FindByName(args[0])
			if err != nil {
				return err
			}
			inst, err := registry.CreateInstance(desc.ClassID)
			if err != nil {
				return err
			}
			defer inst.Terminate()
			if err := inst.Initialize(vst3.HostContext{Name: "vst3host"}); err != nil {
				return err
			}

			fmt.Printf("Name:     %s\n", desc.Name)
			fmt.Printf("Vendor:   %s\n", desc.Vendor)
			fmt.Printf("Version:  %s\n", desc.Version)
			fmt.Printf("Class ID: %s\n", desc.ClassID)
			fmt.Printf("Bundle:   %s\n", desc.BundlePath)

			printBuses(inst, vst3.MediaAudio, "Audio")
			printBuses(inst, vst3.MediaEvent, "Event")

			params := inst.Params().Infos()
			values := inst.Params().Values()
			fmt.Printf("\nParameters (%d):\n", len(params))
			for i, p := range params {
				flags := ""
				if p.Flags&vst3.ParamIsReadOnly != 0 {
					flags = " [read-only]"
				}
				fmt.Printf("  %6d  %-28s %.4f%s\n", p.ID, p.Title, values[i], flags)
			}

			return nil
		},
	}
}

func printBuses(inst *host.Instance, media vst3.MediaType, label string) {
	for _, dir := range []vst3.BusDirection{vst3.BusInput, vst3.BusOutput} {
		buses, err := inst.Buses(media, dir)
		if err != nil || len(buses) == 0 {
			continue
		}
		side := "inputs"
		if dir == vst3.BusOutput {
			side = "outputs"
		}
		fmt.Printf("\n%s %s:\n", label, side)
		for _, b := range buses {
			fmt.Printf("  %d: %-20s %d channels\n", b.Index, b.Name, b.ChannelCount)
		}
	}
}
