package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	log "github.com/sirupsen/logrus"
)

// Result summarises one migration run.
type Result struct {
	Imported int
	Total    int
	Valid    int
	// AlreadyDone is set when the flag stopped the run.
	AlreadyDone bool
	// Declined is set when the confirmation callback said no.
	Declined bool
}

// Message is the user-facing outcome line.
func (r Result) Message() string {
	switch {
	case r.AlreadyDone:
		return "Migration already completed or skipped."
	case r.Declined:
		return "Migration cancelled."
	case r.Total == 0 || r.Valid == 0:
		return "No valid tasks found in the export."
	case r.Valid < r.Total:
		return fmt.Sprintf("Imported %d of %d tasks", r.Imported, r.Total)
	default:
		return fmt.Sprintf("Imported %d tasks successfully", r.Imported)
	}
}

// Runner ties the export, the flag and an importer together.
type Runner struct {
	FS       afero.Fs
	Flag     *Flag
	Importer Importer
	Now      func() time.Time
	Log      log.FieldLogger
	// Force ignores the flag.
	Force bool
}

// Run imports the export at path. confirm is asked once there is something
// to import; a nil confirm means yes. The flag is set after a successful
// import or when the export holds nothing to import.
func (r *Runner) Run(ctx context.Context, path string, confirm func(Plan) bool) (Result, error) {
	if r.Flag.Done() && !r.Force {
		return Result{AlreadyDone: true}, nil
	}

	raw, err := ReadExport(r.fs(), path)
	if err != nil {
		return Result{}, err
	}
	plan := Prepare(raw, r.now())
	res := Result{Total: plan.Total, Valid: plan.Valid}
	r.logger().WithFields(log.Fields{
		"total": plan.Total,
		"valid": plan.Valid,
	}).Info("legacy export prepared")

	if plan.Valid == 0 {
		return res, r.Flag.Mark()
	}
	if confirm != nil && !confirm(plan) {
		res.Declined = true
		return res, nil
	}

	n, err := r.Importer.Import(ctx, plan.Tasks)
	if err != nil {
		return res, fmt.Errorf("import tasks: %w", err)
	}
	res.Imported = n
	if err := r.Flag.Mark(); err != nil {
		return res, err
	}
	r.logger().WithField("imported", n).Info("legacy tasks imported")
	return res, nil
}

// Skip records that the user does not want to migrate.
func (r *Runner) Skip() error {
	return r.Flag.Mark()
}

func (r *Runner) fs() afero.Fs {
	if r.FS == nil {
		return afero.NewOsFs()
	}
	return r.FS
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Runner) logger() log.FieldLogger {
	if r.Log == nil {
		return log.StandardLogger()
	}
	return r.Log
}
