// Package ferry uploads local files to a file hosting service.
//
// Each upload requests a one-shot upload link, then streams the file as a
// multipart body in fixed-size chunks. A progress callback observes every
// chunk and can abort the transfer by returning an error.
//
// # Basic Usage
//
// Create a client and upload a file:
//
//	client, err := ferry.NewClient(ferry.WithCredentials(loginID, loginKey))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.Upload(ctx, "video.mp4",
//	    ferry.WithProgress(func(ev ferry.ProgressEvent) error {
//	        fmt.Printf("%3.0f%%\n", ev.Percent())
//	        return nil
//	    }))
//
// # Batches
//
// A Batch runs many uploads on a fixed number of workers and reports each
// job's progress and terminal state to a Sink:
//
//	batch, err := ferry.NewBatch(client, 2, ferry.WithSink(sink))
//	defer batch.Close()
//	for _, path := range paths {
//	    batch.Add(path)
//	}
//	summary, err := batch.Wait(ctx)
//
// # Cancellation
//
// Returning an error from a progress callback, or calling Batch.Cancel,
// aborts the upload at the next chunk boundary. The upload then fails with
// an error matching ErrCancelled.
package ferry
