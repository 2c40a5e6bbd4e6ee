package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/gastosmart/internal/blobstore"
	"github.com/dvloznov/gastosmart/internal/logger"
	"github.com/dvloznov/gastosmart/internal/receipt"
)

// NewScanReceiptHandler runs the receipt pipeline for each scan job and
// stores the result on the job. A missing image fails the job without
// retries; anything else is retried.
func NewScanReceiptHandler(p *receipt.Pipeline) JobHandler {
	return func(ctx context.Context, job Job) error {
		scan, ok := job.(*ScanReceiptJob)
		if !ok {
			return Permanent(fmt.Errorf("unsupported job type %q", job.GetType()))
		}

		log := logger.FromContext(ctx).With().
			Str("job_id", scan.JobID).
			Str("user_id", scan.UserID).
			Int("attempt", scan.RetryCount+1).
			Logger()

		state := &receipt.ScanState{ImageURI: scan.ImageURI, MIMEType: scan.MIMEType}
		if err := p.Execute(logger.WithContext(ctx, log), state); err != nil {
			log.Warn().Err(err).Msg("Receipt scan failed")
			if errors.Is(err, blobstore.ErrNotFound) {
				return Permanent(err)
			}
			return err
		}

		data := state.Data
		scan.Result = &data
		log.Info().Bool("empty", data.IsEmpty()).Msg("Receipt scanned")
		return nil
	}
}
