package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pario-ai/oracle/pkg/endpoint"
)

var errNoModels = errors.New("no models configured")

func newModelsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the endpoints models can be dispatched to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			dir, err := endpoint.New(cfg, endpoint.NewKeyLoader(cfg.Credentials.KeysDir))
			if err != nil {
				return err
			}

			eps := dir.List()
			if len(eps) == 0 {
				return errNoModels
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPROTOCOL\tMODEL\tMAX TOKENS\tRATE\tKEY\tDEFAULT")
			for _, ep := range eps {
				rate := "-"
				if ep.Rate > 0 {
					rate = strconv.FormatFloat(ep.Rate, 'g', -1, 64) + "/s"
				}
				key := "missing"
				if ep.Token != "" {
					key = "ok"
				}
				def := ""
				if ep.ID == dir.Default() {
					def = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					ep.ID, ep.Name, ep.Protocol, ep.Model, ep.MaxTokens, rate, key, def)
			}
			return w.Flush()
		},
	}
}
