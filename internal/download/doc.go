// Package download provides the concurrent image download pipeline.
//
// # Scheduler
//
// The Scheduler takes the filtered image records and:
//
//  1. Creates the output directory (idempotent)
//  2. Opens the attribution ledger
//  3. Fills a work queue with every record
//  4. Runs a fixed pool of workers over the queue
//  5. Writes each image atomically, then records it in the ledger
//
// # Basic Usage
//
//	client := http.NewClient()
//	defer client.Close()
//
//	sched := download.NewScheduler(client, download.Options{
//	    OutDir:  "./panos",
//	    Workers: 4,
//	    Policy:  retry.DefaultPolicy(),
//	}, logger, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//
//	report, err := sched.Run(ctx, records)
//
// # Retry Logic
//
// Each item runs the retry state machine in place: timeouts, connection
// resets, 5xx and 429 back off for BaseDelay*2^(attempt-1) (a Retry-After
// header wins when present) up to Policy.MaxAttempts attempts. Other 4xx
// responses and empty bodies fail at once. One item's failure never stops
// the pool.
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives ProgressEvent:
//
//	type ProgressEvent struct {
//	    Message string
//	    Level   ProgressLevel // Info, Verbose, Warning, Error, Success
//	}
//
// Progress() returns finished and total item counts for progress bars.
package download
