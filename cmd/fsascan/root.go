package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/fsa"
	"github.com/gogpu/fsa/config"
)

// app carries the resolved configuration between commands.
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	return (&app{cfg: config.Default()}).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fsascan",
		Short:         "Evaluate finite-state automata over text on compute devices",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML configuration file")
	pf.String("backend", "", "compute backend (wgpu, cpu); empty picks the first with a device")
	pf.Int("platform", 0, "platform index")
	pf.Int("device", 0, "device index on the platform")
	pf.String("kernel", "", "kernel source file; empty uses the embedded kernel")
	pf.String("entry-point", fsa.DefaultEntryPoint, "kernel entry point")
	pf.Int("workers", 0, "cpu backend workers, 0 for GOMAXPROCS")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")

	root.AddCommand(
		newScanCmd(a),
		newDevicesCmd(a),
		newCompileCmd(),
		newKernelCmd(),
		newVersionCmd(),
	)
	return root
}

// configure loads the configuration file, applies explicitly set flags over
// it and installs the logger.
func (a *app) configure(cmd *cobra.Command) error {
	flags := cmd.Flags()

	if path, _ := flags.GetString("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		a.cfg = cfg
	}

	c := a.cfg
	overrides := []struct {
		name string
		str  *string
		num  *int
	}{
		{name: "backend", str: &c.Backend},
		{name: "platform", num: &c.Platform},
		{name: "device", num: &c.Device},
		{name: "kernel", str: &c.Kernel},
		{name: "entry-point", str: &c.EntryPoint},
		{name: "workers", num: &c.Workers},
		{name: "log-level", str: &c.Log.Level},
		{name: "log-format", str: &c.Log.Format},
		{name: "jobs", num: &c.Jobs},
		{name: "encoding", str: &c.Text.Encoding},
		{name: "normalize", str: &c.Text.Normalize},
		{name: "metrics-file", str: &c.MetricsFile},
	}
	for _, o := range overrides {
		if flags.Lookup(o.name) == nil || !flags.Changed(o.name) {
			continue
		}
		var err error
		if o.str != nil {
			*o.str, err = flags.GetString(o.name)
		} else {
			*o.num, err = flags.GetInt(o.name)
		}
		if err != nil {
			return fmt.Errorf("%w: --%s: %w", errUsage, o.name, err)
		}
	}
	if flags.Lookup("trace") != nil && flags.Changed("trace") {
		c.Trace, _ = flags.GetBool("trace")
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	fsa.SetLogger(c.NewLogger(cmd.ErrOrStderr()))
	return nil
}
