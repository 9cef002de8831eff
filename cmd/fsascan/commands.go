package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gogpu/fsa"
	"github.com/gogpu/fsa/backend/cpu"
	"github.com/gogpu/fsa/compute"
	"github.com/gogpu/fsa/graph"
	"github.com/gogpu/fsa/kernels"
)

func newDevicesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the platforms and devices of every registered backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.listDevices(cmd.OutOrStdout())
		},
	}
}

func (a *app) listDevices(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BACKEND\tPLATFORM\tDEVICE\tNAME\tTYPE\tLITTLE ENDIAN")
	for _, name := range compute.Available() {
		var b compute.Backend
		if name == compute.BackendCPU {
			b = cpu.New(cpu.WithWorkers(a.cfg.Workers))
		} else {
			var err error
			if b, err = compute.Get(name); err != nil {
				continue
			}
		}
		platforms, err := b.Platforms()
		if err != nil {
			fsa.Logger().Warn("fsascan: platforms unavailable", "backend", name, "err", err)
			continue
		}
		for pi, p := range platforms {
			devices, err := p.Devices(compute.DeviceTypeAll)
			if err != nil {
				fsa.Logger().Warn("fsascan: devices unavailable", "backend", name, "platform", p.Name(), "err", err)
				continue
			}
			for di, d := range devices {
				fmt.Fprintf(tw, "%s\t%d %s\t%d\t%s\t%s\t%t\n", name, pi, p.Name(), di, d.Name(), d.Type(), d.LittleEndian())
			}
		}
	}
	return tw.Flush()
}

func newCompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile DESCRIPTION OUTPUT",
		Short: "Compile a YAML automaton description into a binary .fsa file",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			desc, err := graph.LoadDescription(args[0])
			if err != nil {
				return fmt.Errorf("%w: %w", errUsage, err)
			}
			a, err := desc.Build()
			if err != nil {
				return fmt.Errorf("%w: %w", errUsage, err)
			}
			fsa.Logger().Info("fsascan: compiled", "states", a.N, "stride", a.M, "bytes", a.Size())
			return graph.WriteFile(args[1], a)
		},
	}
}

func newKernelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kernel OUTPUT",
		Short: "Write the embedded WGSL automaton kernel",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return kernels.WriteFile(args[0])
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fsa version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "fsascan", fsa.Version)
		},
	}
}
