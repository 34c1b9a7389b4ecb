package traceship_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/bft-labs/traceship/pkg/traceship"
)

// ExampleNew demonstrates basic usage.
func ExampleNew() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := traceship.New(traceship.Config{
		PublicKey: "pk-example",
		SecretKey: "sk-example",
		BaseURL:   srv.URL,
	})
	if err != nil {
		fmt.Printf("failed to create client: %v\n", err)
		return
	}

	body, _ := json.Marshal(map[string]string{"name": "checkout"})
	ctx := context.Background()
	for _, id := range []string{"t-1", "t-2", "t-3"} {
		if err := client.Add(ctx, traceship.NewIngestionEvent(id, traceship.EventTypeTraceCreate, body)); err != nil {
			fmt.Printf("add: %v\n", err)
		}
	}

	res, err := client.Shutdown(ctx)
	if err != nil {
		fmt.Printf("shutdown: %v\n", err)
		return
	}
	fmt.Printf("delivered %d, failed %d\n", res.SuccessCount, res.FailureCount)
	fmt.Println(client.State())
	// Output:
	// delivered 3, failed 0
	// Stopped
}

// Example_withEventHandler demonstrates observing flushes.
func Example_withEventHandler() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMultiStatus)
		_, _ = w.Write([]byte(`{"successes":[{"id":"a","status":201}],"errors":[{"id":"b","status":400,"message":"invalid body"}]}`))
	}))
	defer srv.Close()

	client, err := traceship.New(traceship.Config{
		PublicKey: "pk-example",
		SecretKey: "sk-example",
		BaseURL:   srv.URL,
	}, traceship.WithEventHandler(&flushPrinter{}))
	if err != nil {
		fmt.Printf("failed to create client: %v\n", err)
		return
	}
	defer client.Shutdown(context.Background())

	ctx := context.Background()
	_ = client.Add(ctx, traceship.NewIngestionEvent("a", traceship.EventTypeEventCreate, json.RawMessage(`{}`)))
	_ = client.Add(ctx, traceship.NewIngestionEvent("b", traceship.EventTypeEventCreate, json.RawMessage(`{}`)))

	if _, err := client.Flush(ctx); err != nil {
		fmt.Printf("flush: %v\n", err)
	}
	// Output:
	// flushed: 1 ok, 1 failed
	// Event b failed: invalid body (code: 400)
}

type flushPrinter struct {
	traceship.BaseEventHandler
}

func (p *flushPrinter) OnFlush(event traceship.FlushEvent) {
	fmt.Printf("flushed: %d ok, %d failed\n", event.Result.SuccessCount, event.Result.FailureCount)
	for _, f := range event.Result.Failures {
		fmt.Println(f.Error())
	}
}
