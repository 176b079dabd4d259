package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nichlasrohde/ha-ecl-modbus/internal/catalog"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/codec"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/config"
	"github.com/nichlasrohde/ha-ecl-modbus/internal/controller"
)

var (
	cfgFile string
	debug   bool
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ecl-modbus",
	Short: "Poll a Danfoss ECL 120/220 heating controller over Modbus",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if debug {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the polling daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := buildController()
		if err != nil {
			return err
		}
		defer ctrl.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			logger.Info("shutting down", zap.String("signal", sig.String()))
			cancel()
		}()

		logger.Info("polling started")
		ctrl.Run(ctx)
		return nil
	},
}

var registersCmd = &cobra.Command{
	Use:   "registers",
	Short: "List the register catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.NewECL()
		if err != nil {
			return err
		}
		for _, d := range cat.All() {
			rng := ""
			if d.Min != nil && d.Max != nil {
				rng = fmt.Sprintf(" range=%g..%g", *d.Min, *d.Max)
			}
			fmt.Printf("%-6d %-36s %-8s %-3s %s%s\n",
				d.Address, d.Key, d.Wire, d.Access, d.Unit, rng)
		}
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read <key|address>",
	Short: "Read one register and print its value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := buildController()
		if err != nil {
			return err
		}
		defer ctrl.Close()

		def, err := resolveRegister(ctrl, args[0])
		if err != nil {
			return err
		}
		v, err := ctrl.ReadNow(def.Address)
		if err != nil {
			return err
		}
		fmt.Printf("%s = %s %s\n", def.Key, v, def.Unit)
		return nil
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <key|address> <value>",
	Short: "Write one register after validating against the catalog",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := buildController()
		if err != nil {
			return err
		}
		defer ctrl.Close()

		def, err := resolveRegister(ctrl, args[0])
		if err != nil {
			return err
		}

		var v codec.Value
		switch def.Wire {
		case catalog.String8, catalog.String16:
			v = codec.Text(args[1])
		default:
			f, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("value %q is not numeric: %w", args[1], err)
			}
			v = codec.Number(f)
		}

		if err := ctrl.WriteValue(def.Address, v); err != nil {
			return err
		}
		fmt.Printf("wrote %s = %s\n", def.Key, v)
		return nil
	},
}

func buildController() (*controller.Controller, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.NewECL()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg, cat); err != nil {
		return nil, err
	}
	config.Normalize(cfg)
	return controller.New(cfg, logger)
}

// resolveRegister accepts either a catalog key or a manual address.
func resolveRegister(ctrl *controller.Controller, arg string) (catalog.Definition, error) {
	if addr, err := strconv.ParseUint(arg, 10, 16); err == nil {
		for _, d := range ctrl.ListRegisters() {
			if d.Address == uint16(addr) {
				return d, nil
			}
		}
		return catalog.Definition{}, fmt.Errorf("address %d: %w", addr, catalog.ErrNotFound)
	}
	return ctrl.Register(arg)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "ecl-modbus.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose development logging")

	rootCmd.AddCommand(runCmd, registersCmd, readCmd, writeCmd)
}
