package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/tlestate/internal/propagation"
	"github.com/star/tlestate/internal/tle"
)

// inputFlags selects where TLE text comes from.
type inputFlags struct {
	file  string
	line1 string
	line2 string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read TLE text from file (\"-\" or empty reads stdin)")
	cmd.Flags().StringVar(&f.line1, "line1", "", "first TLE line")
	cmd.Flags().StringVar(&f.line2, "line2", "", "second TLE line")
}

// load builds the element set from --line1/--line2, or else from the file
// or stdin holding two or three lines.
func (f *inputFlags) load(cmd *cobra.Command) (*tle.TwoLineElement, error) {
	if f.line1 != "" || f.line2 != "" {
		return tle.New(f.line1, f.line2)
	}

	var r io.Reader = cmd.InOrStdin()
	if f.file != "" && f.file != "-" {
		fh, err := os.Open(f.file)
		if err != nil {
			return nil, err
		}
		defer fh.Close()
		r = fh
	}
	data, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading TLE input: %w", err)
	}
	return tle.FromLines(strings.ReplaceAll(string(data), "\r\n", "\n"))
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tlectl",
		Short:        "Validate and propagate two-line element sets",
		SilenceUsage: true,
	}
	root.AddCommand(newValidateCmd(), newEpochCmd(), newPropagateCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that a TLE parses and ingests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			elems, err := in.load(cmd)
			if err != nil {
				return err
			}
			epoch, err := elems.Epoch()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok norad_id=%d epoch=%s\n", elems.NORADID(), epoch.Format(time.RFC3339Nano))
			return nil
		},
	}
	in.register(cmd)
	return cmd
}

func newEpochCmd() *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "epoch",
		Short: "Print the TLE epoch in RFC3339",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			elems, err := in.load(cmd)
			if err != nil {
				return err
			}
			epoch, err := elems.Epoch()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), epoch.Format(time.RFC3339Nano))
			return nil
		},
	}
	in.register(cmd)
	return cmd
}

type stateOutput struct {
	Time     string     `json:"time"`
	Position [3]float64 `json:"position_km"`
	Velocity [3]float64 `json:"velocity_km_s"`
}

func newPropagateCmd() *cobra.Command {
	var (
		in        inputFlags
		at        string
		horizon   time.Duration
		step      time.Duration
		maxPoints int
	)
	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Print TEME state vectors as JSON",
		Long: `Propagates the TLE to --time (RFC3339, default now). With --horizon,
prints one state every --step from --time to --time+horizon inclusive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			elems, err := in.load(cmd)
			if err != nil {
				return err
			}
			start := time.Now().UTC()
			if at != "" {
				if start, err = time.Parse(time.RFC3339Nano, at); err != nil {
					return fmt.Errorf("invalid --time: %w", err)
				}
			}
			n, err := propagation.SeriesLength(horizon, step, maxPoints)
			if err != nil {
				return fmt.Errorf("--horizon/--step: %w", err)
			}

			states := make([]stateOutput, 0, n)
			for i := 0; i < n; i++ {
				t := start.Add(time.Duration(i) * step)
				sv, err := elems.PropagateTo(t)
				if err != nil {
					return fmt.Errorf("at %s: %w", t.Format(time.RFC3339Nano), err)
				}
				states = append(states, stateOutput{
					Time:     t.UTC().Format(time.RFC3339Nano),
					Position: sv.Position,
					Velocity: sv.Velocity,
				})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if horizon == 0 {
				return enc.Encode(states[0])
			}
			return enc.Encode(states)
		},
	}
	in.register(cmd)
	cmd.Flags().StringVar(&at, "time", "", "target instant, RFC3339 (default now)")
	cmd.Flags().DurationVar(&horizon, "horizon", 0, "series length, e.g. 90m")
	cmd.Flags().DurationVar(&step, "step", time.Minute, "series spacing")
	cmd.Flags().IntVar(&maxPoints, "max-points", 3601, "refuse series longer than this")
	return cmd
}
