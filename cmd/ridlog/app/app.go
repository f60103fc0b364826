package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/onlyTheOnionNews/drone-phone/internal/storage"
	"github.com/onlyTheOnionNews/drone-phone/internal/telemetry"
)

type sessionReport struct {
	ID        int64                  `json:"id"`
	StartTime time.Time              `json:"startTime"`
	UASID     string                 `json:"uasId"`
	Source    string                 `json:"source"`
	Summary   Summary                `json:"summary"`
	Telemetry []*telemetry.Telemetry `json:"telemetry,omitempty"`
}

func Run(ctx context.Context, config *Config, out io.Writer, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.OpenSqliteReader(config.DBPath)
	defer store.Close()

	var sessions []*storage.FlightSession
	if config.SessionID != 0 {
		sess, err := store.Session(ctx, config.SessionID)
		if err != nil {
			return fmt.Errorf("reading session %d: %w", config.SessionID, err)
		}
		sessions = append(sessions, sess)
	} else {
		var err error
		if sessions, err = store.Sessions(ctx); err != nil {
			return fmt.Errorf("reading sessions: %w", err)
		}
	}

	logger.Debug("reading flight log", slog.String("path", config.DBPath), slog.Int("sessions", len(sessions)))

	reports := make([]sessionReport, 0, len(sessions))
	for _, sess := range sessions {
		records, err := store.Telemetry(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("reading telemetry of session %d: %w", sess.ID, err)
		}

		report := sessionReport{
			ID:        sess.ID,
			StartTime: sess.StartTime,
			UASID:     sess.UASID,
			Source:    sess.Source,
			Summary:   Summarize(records),
		}
		if config.Verbose {
			report.Telemetry = records
		}
		reports = append(reports, report)
	}

	switch config.Format {
	case FormatJSON:
		return writeJSON(out, reports)
	default:
		return writeText(out, reports)
	}
}

func writeJSON(out io.Writer, reports []sessionReport) error {
	enc := json.NewEncoder(out)
	for _, r := range reports {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding session %d: %w", r.ID, err)
		}
	}
	return nil
}

func writeText(out io.Writer, reports []sessionReport) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "ID\tSTARTED\tUAS ID\tSOURCE\tRECORDS\tDURATION\tDISTANCE\tMAX HEIGHT\tMAX SPEED")
	for _, r := range reports {
		s := r.Summary
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.StartTime.Local().Format(time.DateTime),
			r.UASID,
			r.Source,
			humanize.Comma(int64(s.Records)),
			s.Duration().Round(time.Second),
			humanize.SIWithDigits(s.Distance, 1, "m"),
			humanize.FtoaWithDigits(s.MaxHeight, 1)+" m",
			humanize.FtoaWithDigits(s.MaxSpeed, 1)+" m/s",
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, r := range reports {
		if len(r.Telemetry) == 0 {
			continue
		}

		fmt.Fprintf(out, "\nsession %d\n", r.ID)
		w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tLATITUDE\tLONGITUDE\tALTITUDE\tHEIGHT\tSPEED\tCOURSE")
		for _, t := range r.Telemetry {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				t.Timestamp.Local().Format(time.DateTime),
				optional(t.Latitude, 6),
				optional(t.Longitude, 6),
				optional(t.Altitude, 1),
				optional(t.Height, 1),
				optional(t.GroundSpeed, 1),
				optional(t.GroundCourse, 0),
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	return nil
}

func optional(v *float64, digits int) string {
	if v == nil {
		return "-"
	}
	return humanize.FtoaWithDigits(*v, digits)
}
