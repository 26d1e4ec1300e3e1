package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoraid/internal/cli/output"
	"github.com/marmos91/dittoraid/pkg/manifest"
	"github.com/marmos91/dittoraid/pkg/raid"
)

var (
	statusOutput string
	statusEvents bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show array geometry and slot states",
	Long: `Open the member devices read-only and display the array geometry,
the state of every slot and, when a manifest is configured, the recorded
array identity and history.

Examples:
  # Show status from the configuration file
  dittoraid status

  # Show status of an ad-hoc array as JSON
  dittoraid status --block-size 4Ki --device /dev/sdb --device MISSING --device /dev/sdd -o json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
	statusCmd.Flags().BoolVar(&statusEvents, "events", false, "include the manifest history")
}

// StatusResult is the machine-readable status output.
type StatusResult struct {
	Array    raid.SetStatus     `json:"array" yaml:"array"`
	Manifest *manifest.Manifest `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	Events   []manifest.Event   `json:"events,omitempty" yaml:"events,omitempty"`
}

// slotTable renders the slots of a SetStatus.
type slotTable []raid.SlotStatus

func (s slotTable) Headers() []string {
	return []string{"Slot", "Path", "State", "Size"}
}

func (s slotTable) Rows() [][]string {
	rows := make([][]string, len(s))
	for i, slot := range s {
		size := "-"
		if slot.Size > 0 {
			size = output.Bytes(slot.Size)
		}
		rows[i] = []string{strconv.Itoa(slot.Index), slot.Path, slot.State, size}
	}
	return rows
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	spec, err := resolveArray(cfg)
	if err != nil {
		return err
	}

	set, err := openSet(spec, true)
	if err != nil {
		return err
	}
	defer func() { _ = set.Close() }()

	result := StatusResult{Array: set.Status()}

	store, err := openManifest(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()

		ctx := cmd.Context()
		m, err := store.Load(ctx)
		switch {
		case errors.Is(err, manifest.ErrNotFound):
		case err != nil:
			return err
		default:
			result.Manifest = m
		}
		if statusEvents {
			if result.Events, err = store.Events(ctx); err != nil {
				return err
			}
		}
	}

	out := cmd.OutOrStdout()
	if format != output.FormatTable {
		return output.Print(out, format, result)
	}
	return printStatusTable(out, result)
}

func printStatusTable(w io.Writer, r StatusResult) error {
	health := "healthy"
	switch {
	case r.Array.Rebuilding:
		health = "awaiting rebuild"
	case r.Array.Degraded:
		health = "degraded"
	}

	pairs := [][2]string{
		{"Level", r.Array.Level},
		{"Block size", output.Bytes(r.Array.BlockSize)},
		{"Stripes", strconv.FormatInt(r.Array.Stripes, 10)},
		{"Size", output.Bytes(r.Array.LogicalSize)},
		{"Health", health},
	}
	if m := r.Manifest; m != nil {
		pairs = append(pairs, [2]string{"Array ID", m.ID.String()})
		if !m.InitializedAt.IsZero() {
			pairs = append(pairs, [2]string{"Initialized", m.InitializedAt.Local().Format(timeFormat)})
		}
		if !m.RebuiltAt.IsZero() {
			pairs = append(pairs, [2]string{"Last rebuild", fmt.Sprintf("slot %d at %s", m.RebuiltSlot, m.RebuiltAt.Local().Format(timeFormat))})
		}
	}
	if err := output.KeyValue(w, pairs); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(w)
	if err := output.PrintTable(w, slotTable(r.Array.Slots)); err != nil {
		return err
	}

	if len(r.Events) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(w)
	events := output.NewTableData("Time", "Event", "Slot", "Detail")
	for _, ev := range r.Events {
		slot := "-"
		if ev.Slot >= 0 {
			slot = strconv.Itoa(ev.Slot)
		}
		events.AddRow(ev.Time.Local().Format(timeFormat), string(ev.Kind), slot, ev.Detail)
	}
	return output.PrintTable(w, events)
}

// timeFormat is used for local times in table output.
const timeFormat = "Mon Jan 2 15:04:05 2006"
