package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/frewsxcv/template-tally/internal/server"
	"github.com/frewsxcv/template-tally/internal/tally"
	"github.com/frewsxcv/template-tally/internal/types"
)

const (
	statusRendered   = "rendered"
	statusUnrendered = "unrendered"
)

var headerCase = cases.Upper(language.English)

type templateRow struct {
	Template types.TemplateID `json:"template" yaml:"template"`
	Status   string           `json:"status" yaml:"status"`
}

// reportRows lists unrendered templates first, the ones worth a look.
func reportRows(report *tally.Report) []templateRow {
	rows := make([]templateRow, 0, report.Total)
	rows = appendRows(rows, report.Unrendered, statusUnrendered)
	return appendRows(rows, report.Rendered, statusRendered)
}

func appendRows(rows []templateRow, ids []types.TemplateID, status string) []templateRow {
	for _, id := range ids {
		rows = append(rows, templateRow{Template: id, Status: status})
	}
	return rows
}

func outputReport(w io.Writer, flags *StandardFlags, report *tally.Report) error {
	if flags.Quiet {
		return outputQuiet(w, report.Unrendered)
	}

	switch strings.ToLower(flags.OutputFormat) {
	case formatJSON:
		return outputJSON(w, report)
	case formatYAML:
		return outputYAML(w, report)
	case formatTable:
		if err := outputTable(w, reportRows(report)); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "\n%s of %s templates rendered (%.1f%%) within the last %s\n",
			humanize.Comma(int64(len(report.Rendered))),
			humanize.Comma(int64(report.Total)),
			100*report.Coverage(),
			server.FormatWindow(report.Window))
		return err
	case formatCSV:
		return outputCSV(w, reportRows(report))
	default:
		return fmt.Errorf("unsupported format: %s", flags.OutputFormat)
	}
}

func outputTemplates(w io.Writer, flags *StandardFlags, status string, ids []types.TemplateID) error {
	if flags.Quiet {
		return outputQuiet(w, ids)
	}

	if ids == nil {
		ids = []types.TemplateID{}
	}

	switch strings.ToLower(flags.OutputFormat) {
	case formatJSON:
		return outputJSON(w, ids)
	case formatYAML:
		return outputYAML(w, ids)
	case formatTable:
		if err := outputTable(w, appendRows(nil, ids, status)); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "\nTotal: %s %s templates\n", humanize.Comma(int64(len(ids))), status)
		return err
	case formatCSV:
		return outputCSV(w, appendRows(nil, ids, status))
	default:
		return fmt.Errorf("unsupported format: %s", flags.OutputFormat)
	}
}

func outputQuiet(w io.Writer, ids []types.TemplateID) error {
	for _, id := range ids {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func outputYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

func outputTable(w io.Writer, rows []templateRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "%s\t%s\n", headerCase.String("template"), headerCase.String("status"))
	fmt.Fprintf(tw, "%s\t%s\n", strings.Repeat("-", 8), strings.Repeat("-", 6))
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", row.Template, row.Status)
	}

	return tw.Flush()
}

func outputCSV(w io.Writer, rows []templateRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"template", "status"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.Template.String(), row.Status}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
