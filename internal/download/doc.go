// Package download provides the orchestration logic for batch artwork
// downloads.
//
// # Manager
//
// The Manager coordinates an entire run:
//
//  1. Resolve the requested discovery source from the registry
//  2. Pull candidate batches page by page
//  3. Parse candidate ids into artwork metadata
//  4. Filter works the request does not want
//  5. Dispatch download tasks under a fixed concurrency budget
//  6. Track every candidate until it is downloaded, failed or excluded
//
// # Basic Usage
//
//	manager := download.NewManager(download.DefaultConfig(), registry, download.Collaborators{
//	    Parse:    parser.Work,
//	    Download: downloader.Work,
//	    OnEvent: func(event download.Event) {
//	        fmt.Println(event.Message)
//	    },
//	}, logger)
//
//	err := manager.Run(ctx, download.Request{
//	    Source: "works",
//	    Args:   []string{"1113943"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Concurrency
//
// At most Config.Concurrency download tasks run at once. When the budget
// is full the Manager waits for the whole wave to settle before
// dispatching again, and a politeness delay separates consecutive
// dispatches. A rate-limited task puts the next dispatch on a longer
// cooldown.
//
// # Progress Tracking
//
// Progress is reported two ways: the OnEvent callback receives the run's
// event stream as it happens, and Snapshot returns the current counters
// for polling UIs:
//
//	state := manager.Snapshot()
//	fmt.Printf("%d/%d done\n", len(state.Succeeded), state.Total)
//
// # Cancellation
//
// Cancel (or canceling the context passed to Run) stops the run at the
// next wait point. Task ids still in flight are handed to the OnAbort
// callback so the caller can tear down the underlying transfers.
package download
