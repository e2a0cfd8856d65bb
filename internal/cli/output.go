package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/clodoo/internal/core"
)

// output prints run results as text lines or one JSON array.
type output struct {
	format  string
	w       io.Writer
	errW    io.Writer
	results []*core.ImportResult
}

func newOutput(cmd *cobra.Command, format string) *output {
	return &output{format: format, w: cmd.OutOrStdout(), errW: cmd.ErrOrStderr()}
}

func (o *output) result(res *core.ImportResult, err error) {
	if o.format == "json" {
		o.results = append(o.results, res)
		return
	}

	mode := ""
	if res.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(o.w, "%s -> %s: %s%s\n", res.FileName, res.Entity, res.Status, mode)
	fmt.Fprintf(o.w, "  rows %d, created %d, updated %d, unchanged %d, skipped %d, failed %d, malformed %d (%s)\n",
		res.Rows, res.Created, res.Updated, res.Unchanged, res.Skipped, res.Failed, res.Malformed, res.Duration)
	for _, row := range res.FailedRows {
		fmt.Fprintf(o.w, "  line %d [%s] %s: %s\n", row.Line, row.Code, row.Key, row.Reason)
	}
	if err != nil {
		fmt.Fprintf(o.errW, "Error: %s\n", core.FormatUserError(err))
	}
}

// flush writes the collected JSON results.
func (o *output) flush() {
	if o.format == "json" {
		o.json(o.results)
	}
}

func (o *output) json(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
