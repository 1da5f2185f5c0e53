package render

import (
	"encoding/json"
	"io"

	"github.com/dynoinc/vulnreport/internal/report"
)

func JSON(w io.Writer, rep *report.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
