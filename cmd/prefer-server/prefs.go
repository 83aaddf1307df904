package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configured pref keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tKIND\tDEFAULT\tTITLE")
		for _, g := range a.prefer.Groups() {
			for _, pref := range g.Prefs() {
				fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", pref.Key(), pref.Kind(), pref.AnyDefault(), pref.Meta().Title)
			}
		}
		return w.Flush()
	},
}

var getCmd = &cobra.Command{
	Use:     "get <key>",
	Short:   "Print the current value of a pref",
	Example: `  prefer-server get Settings:IntervalMs`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		pref, err := a.lookupPref(args[0])
		if err != nil {
			return err
		}
		value, err := pref.ValueString(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:     "set <key> <value>",
	Short:   "Store a new value for a pref",
	Example: `  prefer-server set Settings:IsEnabled true`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		pref, err := a.lookupPref(args[0])
		if err != nil {
			return err
		}
		return pref.SetString(cmd.Context(), args[1])
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <key>",
	Short: "Remove the stored value so the pref reads its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		pref, err := a.lookupPref(args[0])
		if err != nil {
			return err
		}
		return a.prefer.Remove(cmd.Context(), pref.Key())
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print raw stored values, as the backend holds them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		lister, ok := a.backend.(interface {
			GetAll(ctx context.Context) (map[string]string, error)
		})
		if !ok {
			return fmt.Errorf("storage driver %s cannot list values", a.cfg.Storage.Driver)
		}
		values, err := lister.GetAll(cmd.Context())
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, values[k])
		}
		return nil
	},
}
